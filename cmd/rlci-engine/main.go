// Command rlci-engine runs the pipeline engine server: it loads
// pipeline definitions from a directory, listens on a Unix domain
// socket, and triggers pipelines on request.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/localci/rlci/internal/engine"
	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/internal/report"
	"github.com/localci/rlci/internal/server"
	"github.com/localci/rlci/internal/store"
)

func main() {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := newEngineCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newEngineCmd() *cobra.Command {
	var (
		socketPath   string
		reportPath   string
		pipelinesDir string
	)

	cmd := &cobra.Command{
		Use:           "rlci-engine",
		Short:         "Serve pipeline trigger requests over a unix domain socket",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(socketPath, reportPath, pipelinesDir)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", server.DefaultSocketPath, "path to listen on")
	cmd.Flags().StringVar(&reportPath, "report", report.DefaultPath, "path the post-run HTML report is written to")
	cmd.Flags().StringVar(&pipelinesDir, "pipelines", "/etc/rlci/pipelines", "directory of pipeline YAML definitions")
	return cmd
}

func run(socketPath, reportPath, pipelinesDir string) error {
	s := store.New()
	if pipelinesDir != "" {
		if err := store.LoadDir(s, pipelinesDir); err != nil {
			log.Warn().Err(err).Str("dir", pipelinesDir).Msg("rlci-engine: no pipelines loaded at startup")
		}
	}

	eng := engine.New(s, events.Discard)
	eng.Report = &report.FileWriter{Path: reportPath}

	srv := server.New(socketPath, eng.Trigger, events.Discard)
	if err := srv.Listen(); err != nil {
		log.Error().Err(err).Str("socket", socketPath).Msg("rlci-engine: failed to listen")
		return err
	}
	log.Info().Str("socket", socketPath).Msg("rlci-engine: listening")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Serve(ctx)
}
