// Package bridge adapts the editing host and the operating system to the
// small surface the workflow needs.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/autoeditor/autoeditor-agent/internal/process"
)

var (
	// ErrInputIncomplete means the user has not supplied something the
	// operation needs, such as a clip or an input path.
	ErrInputIncomplete = errors.New("input incomplete")

	// ErrUnavailable means the host cannot perform the operation.
	ErrUnavailable = errors.New("host bridge unavailable")
)

// ProcessError is an external tool invocation that failed to start or exited
// non-zero.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "Command failed"
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Clip is one selectable media item. Label is what the user sees and what the
// form remembers; Handle is opaque to everything but the host.
type Clip struct {
	Label  string `json:"label"`
	Handle string `json:"-"`
}

// EditContext describes the host's current timeline.
type EditContext struct {
	Name       string `json:"name"`
	FrameRate  string `json:"frame_rate"`
	Resolution string `json:"resolution"`
}

// Host is implemented by each editing application integration.
type Host interface {
	ListClips(ctx context.Context) ([]Clip, error)
	ResolveClipPath(ctx context.Context, clip Clip) (string, error)
	ImportProducedFile(ctx context.Context, path string) error
	CurrentEditContext(ctx context.Context) (EditContext, error)
	SubmitRenderJob(ctx context.Context) error
	ClosePanel(ctx context.Context) error
}

// Bridge is a Host plus the OS capabilities the agent provides itself.
type Bridge struct {
	Host
	runner  process.Runner
	tempDir string
	now     func() time.Time
}

func New(host Host, runner process.Runner, tempDir string) *Bridge {
	if host == nil {
		host = NoHost{}
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Bridge{Host: host, runner: runner, tempDir: tempDir, now: time.Now}
}

// RunExternalProcess runs command and returns its standard output. Any
// failure is a *ProcessError.
func (b *Bridge) RunExternalProcess(ctx context.Context, command string) (process.Result, error) {
	res, err := b.runner.Run(ctx, command)
	if err != nil {
		return res, &ProcessError{Command: command, ExitCode: res.ExitCode, Stderr: res.StderrTail, Err: err}
	}
	if !res.IsSuccess() {
		return res, &ProcessError{Command: command, ExitCode: res.ExitCode, Stderr: res.StderrTail}
	}
	return res, nil
}

// AllocateTemporaryPath returns a fresh, not yet created file path with the
// given extension.
func (b *Bridge) AllocateTemporaryPath(ext string) (string, error) {
	if err := os.MkdirAll(b.tempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	ext = strings.TrimPrefix(ext, ".")
	base := fmt.Sprintf("auto-editor-%d", b.now().UnixMilli())
	for i := 0; ; i++ {
		name := base + "." + ext
		if i > 0 {
			name = fmt.Sprintf("%s-%d.%s", base, i, ext)
		}
		path := filepath.Join(b.tempDir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
	}
}

// NoHost answers every host call with ErrUnavailable.
type NoHost struct{}

func (NoHost) ListClips(context.Context) ([]Clip, error) {
	return nil, fmt.Errorf("%w: no media source configured", ErrUnavailable)
}

func (NoHost) ResolveClipPath(context.Context, Clip) (string, error) {
	return "", fmt.Errorf("%w: no media source configured", ErrUnavailable)
}

func (NoHost) ImportProducedFile(context.Context, string) error {
	return fmt.Errorf("%w: nothing to import into", ErrUnavailable)
}

func (NoHost) CurrentEditContext(context.Context) (EditContext, error) {
	return EditContext{}, fmt.Errorf("%w: no active timeline", ErrUnavailable)
}

func (NoHost) SubmitRenderJob(context.Context) error {
	return fmt.Errorf("%w: rendering is not supported", ErrUnavailable)
}

func (NoHost) ClosePanel(context.Context) error { return nil }
