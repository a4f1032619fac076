package main

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
)

var placeholderPattern = regexp.MustCompile(`<[^<>]+>`)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the command the panel would run, with placeholders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := ctx.loadState(cmd)
			if err != nil {
				return err
			}
			line := st.Preview()
			if !noColor && shouldColorize(cmd.OutOrStdout()) {
				line = highlightPlaceholders(line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Never colour placeholders")
	return cmd
}

func newExprCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "expr",
		Short: "Print the --edit expression built from the edit tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := ctx.loadState(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.Expression())
			return nil
		},
	}
}

// shouldColorize reports whether w is a terminal. NO_COLOR always wins.
func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func highlightPlaceholders(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		return ansiYellow + m + ansiReset
	})
}
