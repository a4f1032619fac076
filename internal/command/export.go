package command

import (
	"strings"

	"github.com/autoeditor/autoeditor-agent/internal/quoting"
)

// RunMode says whether results go back into the host or stay on disk.
type RunMode string

const (
	// RunModeHost imports the produced timeline into the host project.
	RunModeHost       RunMode = "resolve"
	RunModeStandalone RunMode = "standalone"
)

// ParseRunMode maps anything other than "standalone" to host mode.
func ParseRunMode(s string) RunMode {
	if RunMode(strings.TrimSpace(s)) == RunModeStandalone {
		return RunModeStandalone
	}
	return RunModeHost
}

const (
	TargetResolve = "resolve"
	TargetCustom  = "custom"
	TargetNone    = "none"

	// DefaultTimeline names the timeline when the user leaves it blank.
	DefaultTimeline = "Auto-Editor Timeline"
)

// ExportState is the run mode paired with the export target. Host mode pins
// the target to resolve and remembers what the user had picked so leaving
// host mode can restore it.
type ExportState struct {
	mode   RunMode
	target string
	saved  string
}

// NewExportState returns the initial state: host mode exporting to resolve.
func NewExportState() ExportState {
	return ExportState{mode: RunModeHost, target: TargetResolve, saved: TargetResolve}
}

// RestoreExportState rebuilds a state from persisted fields, re-applying the
// host mode pin.
func RestoreExportState(mode RunMode, target, saved string) ExportState {
	target = strings.TrimSpace(target)
	saved = strings.TrimSpace(saved)
	if target == "" {
		target = TargetResolve
	}
	if saved == "" {
		saved = target
	}
	if mode == RunModeHost {
		return ExportState{mode: RunModeHost, target: TargetResolve, saved: saved}
	}
	return ExportState{mode: RunModeStandalone, target: target, saved: target}
}

func (s ExportState) Mode() RunMode  { return s.mode }
func (s ExportState) Target() string { return s.target }

// Saved is the target that leaving host mode will restore.
func (s ExportState) Saved() string { return s.saved }

// WithRunMode transitions to mode.
func (s ExportState) WithRunMode(mode RunMode) ExportState {
	if mode == s.mode {
		return s
	}
	if mode == RunModeHost {
		return ExportState{mode: RunModeHost, target: TargetResolve, saved: s.target}
	}
	target := s.saved
	if target == "" {
		target = TargetResolve
	}
	return ExportState{mode: RunModeStandalone, target: target, saved: target}
}

// WithTarget selects target. The selection is ignored in host mode.
func (s ExportState) WithTarget(target string) ExportState {
	target = strings.TrimSpace(target)
	if s.mode == RunModeHost || target == "" {
		return s
	}
	return ExportState{mode: s.mode, target: target, saved: target}
}

// ExportFields are the user inputs around the export selector.
type ExportFields struct {
	Timeline string
	Attrs    string
	Custom   string
}

// ExportValue returns the argument for --export, or empty to omit the flag.
func ExportValue(s ExportState, f ExportFields) string {
	attrs := strings.TrimSpace(f.Attrs)
	switch s.target {
	case TargetNone:
		return ""
	case TargetCustom:
		return strings.TrimSpace(f.Custom)
	case TargetResolve:
		name := strings.TrimSpace(f.Timeline)
		if name == "" {
			name = DefaultTimeline
		}
		if s.mode != RunModeHost && attrs != "" {
			return "resolve:" + attrs
		}
		return "resolve:name=" + quoting.Quote(name)
	default:
		if attrs != "" {
			return s.target + ":" + attrs
		}
		return s.target
	}
}

// ImportsResult reports whether a run with this export value produces a
// timeline the host should import.
func ImportsResult(mode RunMode, export string) bool {
	return mode == RunModeHost && strings.HasPrefix(strings.TrimSpace(export), TargetResolve)
}
