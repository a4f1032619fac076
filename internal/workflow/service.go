// Package workflow drives the panel: it owns the current form snapshot, the
// clip list and the single in-flight tool invocation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autoeditor/autoeditor-agent/internal/bridge"
	"github.com/autoeditor/autoeditor-agent/internal/command"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/store"
)

// ErrBusy is returned when a tool invocation is already running.
var ErrBusy = errors.New("another command is already running")

const (
	ToneInfo    = "info"
	ToneSuccess = "success"
	ToneError   = "error"
)

// Status is the one-line message shown under the run button.
type Status struct {
	Message string    `json:"message"`
	Tone    string    `json:"tone"`
	At      time.Time `json:"at"`
}

// Outcome describes a finished invocation.
type Outcome struct {
	RunID    string `json:"run_id"`
	Command  string `json:"command"`
	Output   string `json:"output,omitempty"`
	Imported bool   `json:"imported"`
	Status   Status `json:"status"`
}

// RunStore is the slice of the repository used for run history.
type RunStore interface {
	CreateRun(ctx context.Context, run *store.Run) error
	FinishRun(ctx context.Context, id, status string, exitCode int, errMsg string, imported bool) error
	ListRuns(ctx context.Context, limit int) ([]*store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

type Config struct {
	Bridge *bridge.Bridge
	Forms  *form.Store
	Runs   RunStore
	Logger *slog.Logger
	// Binary is used when the form leaves the binary blank.
	Binary string
}

type Service struct {
	bridge        *bridge.Bridge
	forms         *form.Store
	runs          RunStore
	logger        *slog.Logger
	defaultBinary string

	mu     sync.RWMutex
	state  form.State
	clips  []bridge.Clip
	status Status

	busy atomic.Bool
}

// NewService loads the saved form snapshot and returns a ready service.
func NewService(ctx context.Context, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		bridge:        cfg.Bridge,
		forms:         cfg.Forms,
		runs:          cfg.Runs,
		logger:        logging.WithComponent(logger, "workflow"),
		defaultBinary: strings.TrimSpace(cfg.Binary),
	}
	s.state = s.forms.Load(ctx)
	s.status = Status{Message: "Ready.", Tone: ToneInfo, At: time.Now()}
	return s
}

// State returns the current snapshot.
// State returns a copy of the panel snapshot the caller may modify.
func (s *Service) State() form.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update accepts next as the panel state and persists it.
func (s *Service) Update(ctx context.Context, next form.State) form.State {
	s.mu.Lock()
	s.state = form.Apply(s.state, next.Clone())
	st := s.state.Clone()
	s.mu.Unlock()

	s.forms.Save(ctx, st)
	return st
}

// Reset restores and persists the default snapshot.
func (s *Service) Reset(ctx context.Context) form.State {
	st := s.forms.Reset(ctx)
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st.Clone()
}

func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Service) Busy() bool { return s.busy.Load() }

// Preview renders the active tab's command with placeholders.
func (s *Service) Preview() string {
	return s.effective(s.State()).Preview()
}

// RunLabel is the caption for the run action.
func (s *Service) RunLabel() string {
	return s.State().RunLabel()
}

// VersionCommand is the probe command for the configured binary.
func (s *Service) VersionCommand() string {
	return command.Version(s.binary(s.State()))
}

func (s *Service) binary(st form.State) string {
	if b := strings.TrimSpace(st.Binary); b != "" {
		return b
	}
	return s.defaultBinary
}

func (s *Service) effective(st form.State) form.State {
	st.Binary = s.binary(st)
	return st
}

// Clips refreshes the clip list. The saved selection is kept when its label
// is still present, otherwise the first clip is selected.
func (s *Service) Clips(ctx context.Context) ([]bridge.Clip, error) {
	if s.busy.Load() {
		return nil, ErrBusy
	}
	s.setStatus("Loading clips...", ToneInfo)
	clips, err := s.bridge.ListClips(ctx)
	if err != nil {
		s.setStatus(err.Error(), ToneError)
		return nil, err
	}

	s.mu.Lock()
	s.clips = clips
	prev := s.state
	if !hasLabel(clips, prev.ClipLabel) {
		s.state.ClipLabel = ""
		if len(clips) > 0 {
			s.state.ClipLabel = clips[0].Label
		}
	}
	st := s.state
	s.mu.Unlock()

	if st.ClipLabel != prev.ClipLabel {
		s.forms.Save(ctx, st)
	}
	if len(clips) == 0 {
		s.setStatus("No clips found.", ToneError)
	} else {
		s.setStatus(fmt.Sprintf("Loaded %d clips.", len(clips)), ToneSuccess)
	}
	return clips, nil
}

func hasLabel(clips []bridge.Clip, label string) bool {
	for _, c := range clips {
		if c.Label == label {
			return true
		}
	}
	return false
}

// selectedClip finds the clip named by the snapshot, listing clips first if
// that has not happened yet.
func (s *Service) selectedClip(ctx context.Context, label string) (bridge.Clip, bool) {
	s.mu.RLock()
	clips := s.clips
	s.mu.RUnlock()
	if clips == nil {
		var err error
		if clips, err = s.bridge.ListClips(ctx); err != nil {
			s.logger.Debug("clip listing failed", "error", err)
			return bridge.Clip{}, false
		}
		s.mu.Lock()
		s.clips = clips
		s.mu.Unlock()
	}
	if strings.TrimSpace(label) == "" {
		return bridge.Clip{}, false
	}
	for _, c := range clips {
		if c.Label == label {
			return c, true
		}
	}
	return bridge.Clip{}, false
}

// Run executes the active tab's command.
func (s *Service) Run(ctx context.Context) (*Outcome, error) {
	st := s.effective(s.State())
	if st.ActiveTab == form.TabUtilities {
		return s.RunUtility(ctx)
	}

	s.setStatus("Preparing Auto-Editor command...", ToneInfo)
	clip, ok := s.selectedClip(ctx, st.ClipLabel)
	if !ok {
		return nil, s.fail(incomplete("Please select a clip from the list."))
	}
	clipPath, err := s.bridge.ResolveClipPath(ctx, clip)
	if err != nil {
		return nil, s.fail(err)
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	export := st.ExportValue()
	output := strings.TrimSpace(st.OutputOverride)
	if output == "" && st.RunMode == command.RunModeHost {
		if output, err = s.bridge.AllocateTemporaryPath("fcpxml"); err != nil {
			return nil, s.fail(err)
		}
	}
	cmd := command.FormatCommand(st.Binary, clipPath, export, st.Options(), output)

	run := &store.Run{
		Kind:       store.RunKindEdit,
		Command:    cmd,
		ClipLabel:  clip.Label,
		OutputPath: output,
	}
	s.setStatus("Running auto-editor...", ToneInfo)
	stdout, err := s.execute(ctx, run)
	if err != nil {
		return nil, s.fail(err)
	}

	outcome := &Outcome{RunID: run.ID, Command: cmd, Output: stdout}
	if command.ImportsResult(st.RunMode, export) && output != "" {
		if err := s.bridge.ImportProducedFile(ctx, output); err != nil {
			s.finish(ctx, run, store.RunStatusFailed, 0, err.Error(), false)
			return nil, s.fail(fmt.Errorf("import timeline: %w", err))
		}
		outcome.Imported = true
		outcome.Status = s.setStatus("Timeline imported successfully.", ToneSuccess)
	} else {
		outcome.Status = s.setStatus("Auto-Editor finished successfully.", ToneSuccess)
	}
	s.finish(ctx, run, store.RunStatusSucceeded, 0, "", outcome.Imported)
	return outcome, nil
}

// RunUtility executes the utilities tab command.
func (s *Service) RunUtility(ctx context.Context) (*Outcome, error) {
	st := s.effective(s.State())
	u := st.Utilities
	s.setStatus("Preparing utility command...", ToneInfo)

	var inputs []string
	var label string
	if u.Command != command.UtilityCache {
		if u.Manual() {
			inputs = command.ParseManualList(u.InputList)
			if len(inputs) == 0 {
				return nil, s.fail(incomplete("Please provide at least one input path."))
			}
		} else {
			clip, ok := s.selectedClip(ctx, st.ClipLabel)
			if !ok {
				return nil, s.fail(incomplete("Please select a clip from the Media Pool."))
			}
			path, err := s.bridge.ResolveClipPath(ctx, clip)
			if err != nil {
				return nil, s.fail(err)
			}
			inputs, label = []string{path}, clip.Label
		}
	}

	cmd, err := command.FormatUtilityCommand(st.Binary, u, inputs)
	switch {
	case errors.Is(err, command.ErrNoModel):
		return nil, s.fail(incomplete("Whisper requires a model path or name."))
	case errors.Is(err, command.ErrNoInput):
		return nil, s.fail(incomplete("Input file required."))
	case err != nil:
		return nil, s.fail(err)
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	run := &store.Run{Kind: store.RunKindUtility, Command: cmd, ClipLabel: label}
	stdout, err := s.execute(ctx, run)
	if err != nil {
		return nil, s.fail(err)
	}
	s.finish(ctx, run, store.RunStatusSucceeded, 0, "", false)

	msg := "Utility command completed."
	switch u.Command {
	case command.UtilityCache:
		msg = "Cache command completed."
	case command.UtilityWhisper:
		msg = "Whisper command completed."
	}
	return &Outcome{RunID: run.ID, Command: cmd, Output: stdout, Status: s.setStatus(msg, ToneSuccess)}, nil
}

// Help runs `<binary> --help` and returns its output.
func (s *Service) Help(ctx context.Context) (*Outcome, error) {
	s.setStatus("Opening Auto-Editor help...", ToneInfo)
	return s.probe(ctx, store.RunKindHelp, command.Help(s.binary(s.State())), "Help output loaded.")
}

// Version runs `<binary> --version` and returns its output.
func (s *Service) Version(ctx context.Context) (*Outcome, error) {
	s.setStatus("Checking Auto-Editor version...", ToneInfo)
	return s.probe(ctx, store.RunKindVersion, s.VersionCommand(), "Version output loaded.")
}

func (s *Service) probe(ctx context.Context, kind, cmd, done string) (*Outcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	run := &store.Run{Kind: kind, Command: cmd}
	stdout, err := s.execute(ctx, run)
	if err != nil {
		return nil, s.fail(err)
	}
	s.finish(ctx, run, store.RunStatusSucceeded, 0, "", false)
	return &Outcome{RunID: run.ID, Command: cmd, Output: stdout, Status: s.setStatus(done, ToneSuccess)}, nil
}

// EditContext reports the host's current timeline.
func (s *Service) EditContext(ctx context.Context) (bridge.EditContext, error) {
	return s.bridge.CurrentEditContext(ctx)
}

// Render queues and starts a render of the current timeline.
func (s *Service) Render(ctx context.Context) (Status, error) {
	if s.busy.Load() {
		return Status{}, ErrBusy
	}
	if err := s.bridge.SubmitRenderJob(ctx); err != nil {
		return Status{}, s.fail(err)
	}
	return s.setStatus("Render started.", ToneSuccess), nil
}

func (s *Service) Close(ctx context.Context) error {
	return s.bridge.ClosePanel(ctx)
}

func (s *Service) Runs(ctx context.Context, limit int) ([]*store.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

func (s *Service) GetRun(ctx context.Context, id string) (*store.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.GetRun(ctx, id)
}

// execute records run, runs its command and finishes the record on failure.
func (s *Service) execute(ctx context.Context, run *store.Run) (string, error) {
	run.ID = store.NewID()
	run.Status = store.RunStatusRunning
	logger := logging.WithRunID(s.logger, run.ID)

	if s.runs != nil {
		if err := s.runs.CreateRun(ctx, run); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	logger.Info("running command", "kind", run.Kind, "command", logging.SanitizePath(run.Command))
	res, err := s.bridge.RunExternalProcess(ctx, run.Command)
	if err != nil {
		logger.Warn("command failed", "exit_code", res.ExitCode, "error", err)
		s.finish(ctx, run, store.RunStatusFailed, res.ExitCode, err.Error(), false)
		return "", err
	}
	logger.Info("command finished", "duration_ms", res.Duration.Milliseconds())
	return res.Stdout, nil
}

func (s *Service) finish(ctx context.Context, run *store.Run, status string, exitCode int, errMsg string, imported bool) {
	run.Status = status
	run.ExitCode = exitCode
	run.Error = errMsg
	run.Imported = imported
	if s.runs == nil {
		return
	}
	if err := s.runs.FinishRun(ctx, run.ID, status, exitCode, errMsg, imported); err != nil {
		logging.WithRunID(s.logger, run.ID).Warn("failed to update run", "error", err)
	}
}

func (s *Service) setStatus(msg, tone string) Status {
	st := Status{Message: msg, Tone: tone, At: time.Now()}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	return st
}

// fail records err as the status line and returns it.
func (s *Service) fail(err error) error {
	msg := err.Error()
	if msg == "" {
		msg = "Auto-Editor failed."
	}
	s.setStatus(msg, ToneError)
	return err
}

// inputError is an ErrInputIncomplete with a message meant for the user.
type inputError struct{ msg string }

func incomplete(msg string) error { return &inputError{msg: msg} }

func (e *inputError) Error() string        { return e.msg }
func (e *inputError) Is(target error) bool { return target == bridge.ErrInputIncomplete }
