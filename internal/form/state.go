// Package form holds the persisted snapshot of every panel input and derives
// commands and previews from it.
package form

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/autoeditor/autoeditor-agent/internal/args"
	"github.com/autoeditor/autoeditor-agent/internal/command"
	"github.com/autoeditor/autoeditor-agent/internal/expr"
)

const (
	TabEdit      = "edit"
	TabAdvanced  = "advanced"
	TabUtilities = "utilities"
)

// State is an immutable-by-convention snapshot of the panel. Builders take it
// by value.
type State struct {
	ActiveTab         string          `json:"activeTab"`
	ClipLabel         string          `json:"clipLabel"`
	RunMode           command.RunMode `json:"runMode"`
	Timeline          string          `json:"timeline"`
	ExportTarget      string          `json:"exportTarget"`
	PriorExportTarget string          `json:"priorExportTarget"`
	ExportAttrs       string          `json:"exportAttrs"`
	ExportCustom      string          `json:"exportCustom"`
	OutputOverride    string          `json:"outputOverride"`

	EditMode             expr.EditMode `json:"editMode"`
	CombineOperator      expr.Operator `json:"combineOperator"`
	EditManualExpression string        `json:"editManualExpression"`
	SingleRule           expr.Rule     `json:"singleRule"`
	CombineRules         []expr.Rule   `json:"combineRules"`

	Margin          string                 `json:"margin"`
	Actions         args.Actions           `json:"actions"`
	Ranges          args.Ranges            `json:"ranges"`
	TimelineOptions args.TimelineOptions   `json:"timelineOptions"`
	RenderOptions   args.RenderOptions     `json:"renderOptions"`
	StreamOptions   args.StreamOptions     `json:"streamOptions"`
	DownloadOptions args.DownloadOptions   `json:"downloadOptions"`
	Diagnostics     args.Diagnostics       `json:"diagnostics"`
	Utilities       command.UtilityOptions `json:"utilities"`

	Binary string `json:"binary"`
}

// Defaults returns the state of a freshly opened panel.
func Defaults() State {
	return State{
		ActiveTab:         TabEdit,
		RunMode:           command.RunModeHost,
		ExportTarget:      command.TargetResolve,
		PriorExportTarget: command.TargetResolve,
		EditMode:          expr.ModeSingle,
		CombineOperator:   expr.OperatorOr,
		SingleRule:        expr.NewRule(expr.MethodAudio),
		CombineRules:      []expr.Rule{expr.NewRule(expr.MethodAudio)},
		Actions:           args.Actions{SilentCut: true},
		TimelineOptions:   args.TimelineOptions{BackgroundColor: args.DefaultBackground},
		RenderOptions:     args.RenderOptions{AudioMixMode: "default", AudioNormalizeMode: "off"},
		StreamOptions:     args.StreamOptions{FaststartMode: "auto", FragmentedMode: "auto"},
		Utilities: command.UtilityOptions{
			Command:      command.UtilityInfo,
			InputMode:    command.InputModeClip,
			LevelsMethod: string(expr.MethodAudio),
			CacheAction:  command.CacheList,
		},
	}
}

// Decode parses a persisted snapshot. Fields missing from data keep their
// defaults. On any error the full defaults are returned with the error.
func Decode(data []byte) (State, error) {
	s := Defaults()
	// A snapshot without a remembered target falls back to its own target.
	s.PriorExportTarget = ""
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), err
	}
	return s.normalized(), nil
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	s.CombineRules = slices.Clone(s.CombineRules)
	s.Ranges.Cut = slices.Clone(s.Ranges.Cut)
	s.Ranges.Add = slices.Clone(s.Ranges.Add)
	s.Ranges.Speed = slices.Clone(s.Ranges.Speed)
	return s
}

// Encode serializes the snapshot for storage.
func (s State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

func orDefault[T ~string](v T, def T) T {
	if strings.TrimSpace(string(v)) == "" {
		return def
	}
	return v
}

// normalized fills blank selectors and re-applies the export pin.
func (s State) normalized() State {
	switch s.ActiveTab {
	case TabEdit, TabAdvanced, TabUtilities:
	default:
		s.ActiveTab = TabEdit
	}
	switch s.EditMode {
	case expr.ModeSingle, expr.ModeCombine, expr.ModeManual:
	default:
		s.EditMode = expr.ModeSingle
	}
	s.CombineOperator = expr.ParseOperator(string(s.CombineOperator))
	if s.SingleRule.Cond == nil {
		s.SingleRule = expr.NewRule(expr.MethodAudio)
	}

	s.TimelineOptions.BackgroundColor = orDefault(s.TimelineOptions.BackgroundColor, args.DefaultBackground)
	s.RenderOptions.AudioMixMode = orDefault(s.RenderOptions.AudioMixMode, "default")
	s.RenderOptions.AudioNormalizeMode = orDefault(s.RenderOptions.AudioNormalizeMode, "off")
	s.StreamOptions.FaststartMode = orDefault(s.StreamOptions.FaststartMode, "auto")
	s.StreamOptions.FragmentedMode = orDefault(s.StreamOptions.FragmentedMode, "auto")
	s.Utilities.Command = orDefault(s.Utilities.Command, command.UtilityInfo)
	s.Utilities.InputMode = orDefault(s.Utilities.InputMode, command.InputModeClip)
	s.Utilities.LevelsMethod = orDefault(s.Utilities.LevelsMethod, string(expr.MethodAudio))
	s.Utilities.CacheAction = orDefault(s.Utilities.CacheAction, command.CacheList)

	s.RunMode = command.ParseRunMode(string(s.RunMode))
	return s.WithExport(s.Export())
}

// Export rebuilds the export state machine from the snapshot.
func (s State) Export() command.ExportState {
	return command.RestoreExportState(s.RunMode, s.ExportTarget, s.PriorExportTarget)
}

// WithExport stores e back into the snapshot.
func (s State) WithExport(e command.ExportState) State {
	s.RunMode = e.Mode()
	s.ExportTarget = e.Target()
	s.PriorExportTarget = e.Saved()
	return s
}

// Apply accepts next as the new panel state, routing run-mode and target
// changes through the export state machine so host mode keeps its pin. A
// target equal to the previous one is not a selection.
func Apply(prev, next State) State {
	next = next.normalized()
	e := prev.Export().WithRunMode(next.RunMode)
	if next.ExportTarget != prev.ExportTarget {
		e = e.WithTarget(next.ExportTarget)
	}
	return next.WithExport(e)
}

func (s State) EditSpec() expr.EditSpec {
	return expr.EditSpec{
		Mode:     s.EditMode,
		Single:   s.SingleRule,
		Rules:    s.CombineRules,
		Operator: s.CombineOperator,
		Manual:   s.EditManualExpression,
	}
}

func (s State) Args() args.State {
	return args.State{
		Edit:        s.EditSpec(),
		Margin:      s.Margin,
		Actions:     s.Actions,
		Ranges:      s.Ranges,
		Timeline:    s.TimelineOptions,
		Render:      s.RenderOptions,
		Streams:     s.StreamOptions,
		Download:    s.DownloadOptions,
		Diagnostics: s.Diagnostics,
	}
}

// Expression is the current --edit value.
func (s State) Expression() string {
	return expr.BuildExpression(s.EditSpec())
}

func (s State) Options() []args.Option {
	return args.Build(s.Args())
}

func (s State) ExportValue() string {
	return command.ExportValue(s.Export(), command.ExportFields{
		Timeline: s.Timeline,
		Attrs:    s.ExportAttrs,
		Custom:   s.ExportCustom,
	})
}

// Preview renders the command for the active tab with placeholders.
func (s State) Preview() string {
	if s.ActiveTab == TabUtilities {
		return command.FormatUtilityPreview(s.Binary, s.Utilities, s.ClipLabel)
	}
	return command.FormatPreview(s.Binary, s.ClipLabel, s.ExportValue(), s.Options(),
		command.PreviewOutput(s.RunMode, s.OutputOverride))
}

// RunLabel is the caption of the run action for the active tab and mode.
func (s State) RunLabel() string {
	if s.ActiveTab == TabUtilities {
		return "Run Utility"
	}
	if s.RunMode == command.RunModeHost {
		return "Create Timeline"
	}
	return "Run Export"
}
