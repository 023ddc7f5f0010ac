package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "kpipe",
		Short:        "kpipe - pipelined block processing",
		Long:         "Runs processor pipelines on a multi-threaded scheduler.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCheckCommand())

	return cmd
}
