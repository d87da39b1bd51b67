package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localci/rlci/internal/store"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	var pipelinesDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline definitions available in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			s := store.New()
			if err := store.LoadDir(s, pipelinesDir); err != nil {
				return err
			}
			for _, name := range s.ListPipelines() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelinesDir, "pipelines", "/etc/rlci/pipelines", "directory of pipeline YAML definitions")
	return cmd
}
