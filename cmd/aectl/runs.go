package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/autoeditor/autoeditor-agent/internal/store"
)

var runColumns = []column{
	{title: "ID"},
	{title: "Started"},
	{title: "Kind"},
	{title: "Status"},
	{title: "Exit", align: text.AlignRight},
	{title: "Command", maxWidth: commandWidth},
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent auto-editor invocations recorded by the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			return ctx.withRepository(func(repo *store.SQLiteRepository) error {
				runs, err := repo.ListRuns(commandCtx(cmd), limit)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), formatRuns(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func formatRuns(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		exit := "-"
		if r.Finished() {
			exit = strconv.Itoa(r.ExitCode)
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.CreatedAt.Local().Format(time.DateTime),
			r.Kind,
			r.Status,
			exit,
			r.Command,
		})
	}
	return renderTable(runColumns, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
