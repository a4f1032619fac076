package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/store"
)

func newFormCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Inspect or reset the saved panel state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the panel state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := ctx.loadState(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the saved panel state to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withRepository(func(repo *store.SQLiteRepository) error {
				form.NewStore(repo, logging.Discard()).Reset(commandCtx(cmd))
				fmt.Fprintln(cmd.OutOrStdout(), "Panel state reset to defaults.")
				return nil
			})
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
