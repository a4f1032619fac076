package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var stateFlag string
	var binaryFlag string

	ctx := newCommandContext(&stateFlag, &binaryFlag)

	rootCmd := &cobra.Command{
		Use:           "aectl",
		Short:         "Inspect and build auto-editor commands from the agent's saved panel state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&stateFlag, "state", "s", "", "Read panel state JSON from this file (- for stdin) instead of the agent database")
	rootCmd.PersistentFlags().StringVar(&binaryFlag, "binary", "", "auto-editor binary to show when the state leaves it blank")

	rootCmd.AddCommand(newPreviewCommand(ctx))
	rootCmd.AddCommand(newExprCommand(ctx))
	rootCmd.AddCommand(newArgsCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newFormCommand(ctx))

	return rootCmd
}
