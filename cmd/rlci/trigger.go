package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localci/rlci/internal/events"
	"github.com/localci/rlci/internal/server"
)

func newTriggerCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <pipeline-name>",
		Short: "Trigger a pipeline run on the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			client := server.NewClient(events.Discard)
			ok, err := client.Trigger(flags.socket, args[0])
			if err != nil {
				return fmt.Errorf("trigger %s: %w", args[0], err)
			}
			if !ok {
				return fmt.Errorf("pipeline %q failed", args[0])
			}
			return nil
		},
	}
}
