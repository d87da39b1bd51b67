package main

import (
	"github.com/spf13/cobra"

	"github.com/localci/rlci/internal/server"
)

type rootFlags struct {
	socket string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	// Usage prints on bad arguments; runtime failures (a failed or
	// unreachable pipeline) silence it from inside RunE so the error
	// alone reaches stderr.
	cmd := &cobra.Command{
		Use:           "rlci",
		Short:         "rlci drives a running pipeline engine over its socket",
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.socket, "socket", server.DefaultSocketPath, "path to the engine's unix domain socket")

	cmd.AddCommand(newTriggerCmd(flags))
	cmd.AddCommand(newListCmd(flags))

	return cmd
}
