package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var optionColumns = []column{
	{title: "Flag"},
	{title: "Value", maxWidth: commandWidth},
}

func newArgsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "args",
		Short: "List the flags the panel contributes, in command order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := ctx.loadState(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if export := st.ExportValue(); export != "" {
				fmt.Fprintf(out, "Export: %s\n", export)
			}
			opts := st.Options()
			if len(opts) == 0 {
				fmt.Fprintln(out, "No options set.")
				return nil
			}
			rows := make([][]string, 0, len(opts))
			for _, o := range opts {
				value := o.Value
				if !o.HasValue {
					value = "-"
				}
				rows = append(rows, []string{o.Flag, value})
			}
			fmt.Fprint(out, renderTable(optionColumns, rows))
			return nil
		},
	}
}
