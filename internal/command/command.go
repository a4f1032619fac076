// Package command formats complete auto-editor invocations, both executable
// and as placeholder previews, and tracks which export target is in effect.
package command

import (
	"strings"

	"github.com/autoeditor/autoeditor-agent/internal/args"
	"github.com/autoeditor/autoeditor-agent/internal/quoting"
)

const (
	// DefaultBinary is used when no binary is configured.
	DefaultBinary = "auto-editor"

	ClipPlaceholder   = "<clip>"
	OutputPlaceholder = "<path>.fcpxml"
	ModelPlaceholder  = "<model>"
)

// NormalizeBinary trims binary, falls back to DefaultBinary and quotes paths
// containing whitespace.
func NormalizeBinary(binary string) string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return DefaultBinary
	}
	if quoting.HasSpace(binary) && !quoting.IsQuoted(binary) {
		return quoting.Quote(binary)
	}
	return binary
}

// FormatCommand builds
//
//	<binary> <clip> [--export <export>] <args...> [--output <output>]
//
// The export value is inserted verbatim; clip and output are quoted when they
// contain whitespace.
func FormatCommand(binary, clip, export string, opts []args.Option, output string) string {
	var b strings.Builder
	b.WriteString(NormalizeBinary(binary))
	b.WriteByte(' ')
	b.WriteString(quoting.MaybeQuote(clip))
	if export != "" {
		b.WriteString(" --export ")
		b.WriteString(export)
	}
	if joined := args.Join(opts); joined != "" {
		b.WriteByte(' ')
		b.WriteString(joined)
	}
	if output != "" {
		b.WriteString(" --output ")
		b.WriteString(quoting.MaybeQuote(output))
	}
	return b.String()
}

// FormatPreview is FormatCommand with an unselected clip shown as <clip>.
func FormatPreview(binary, clipLabel, export string, opts []args.Option, output string) string {
	if strings.TrimSpace(clipLabel) == "" {
		clipLabel = ClipPlaceholder
	}
	return FormatCommand(binary, clipLabel, export, opts, output)
}

// PreviewOutput returns the output token shown in previews: the override when
// set, the temp-file placeholder in host mode, otherwise nothing.
func PreviewOutput(mode RunMode, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	if mode == RunModeHost {
		return OutputPlaceholder
	}
	return ""
}

// Help returns the command that prints the tool's usage.
func Help(binary string) string {
	return NormalizeBinary(binary) + " --help"
}

// Version returns the command that prints the tool's version.
func Version(binary string) string {
	return NormalizeBinary(binary) + " --version"
}
