// Command rlci triggers a pipeline on a running engine server and
// reports success via exit code.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

func main() {
	configureLogger()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configureLogger chooses a human-readable console writer only when
// attached to a real terminal, falling back to structured JSON
// otherwise (piped output, CI logs).
func configureLogger() {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
