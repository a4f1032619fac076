// Package process runs auto-editor command strings as subprocesses without a
// shell and captures bounded output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/quoting"
)

const (
	maxStderrBytes = 8 * 1024
	maxStdoutBytes = 64 * 1024
)

// ErrEmptyCommand is returned for a command string with no tokens.
var ErrEmptyCommand = errors.New("empty command")

// Result is the outcome of one subprocess.
type Result struct {
	ExitCode   int           `json:"exit_code"`
	Stdout     string        `json:"stdout,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 }

// Runner executes a formatted command string.
type Runner interface {
	// Run returns an error only when the process could not be started or the
	// command could not be parsed. A non-zero exit is reported in Result.
	Run(ctx context.Context, command string) (Result, error)
}

// Config holds the runner's configuration.
type Config struct {
	Timeout    time.Duration // zero means no limit beyond ctx
	Dir        string        // working directory; empty = inherit
	Logger     *slog.Logger
	DebugPaths bool // log full commands; otherwise home is masked
}

type SubprocessRunner struct {
	cfg Config
}

func NewRunner(cfg Config) *SubprocessRunner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SubprocessRunner{cfg: cfg}
}

func (r *SubprocessRunner) Run(ctx context.Context, command string) (Result, error) {
	argv, err := quoting.Split(command)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if len(argv) == 0 {
		return Result{ExitCode: -1}, ErrEmptyCommand
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.cfg.Dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: maxStdoutBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	r.cfg.Logger.Info("executing command",
		"binary", r.safe(argv[0]),
		"args", len(argv)-1,
	)
	r.cfg.Logger.Debug("command line", "command", r.safe(command))

	runErr := cmd.Run()
	result := Result{
		Stdout:     stdoutBuf.String(),
		StderrTail: stderrBuf.String(),
		Duration:   time.Since(start),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			result.ExitCode = -1
			r.cfg.Logger.Warn("command failed to start", "error", runErr)
			return result, fmt.Errorf("start %s: %w", r.safe(argv[0]), runErr)
		}
		result.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			result.StderrTail = appendLine(result.StderrTail, ctx.Err().Error())
		}
	}

	if result.IsSuccess() {
		r.cfg.Logger.Info("command succeeded", "duration_ms", result.Duration.Milliseconds())
	} else {
		r.cfg.Logger.Warn("command failed",
			"exit_code", result.ExitCode,
			"duration_ms", result.Duration.Milliseconds(),
			"stderr_tail", truncate(result.StderrTail, 512),
		)
	}
	return result, nil
}

func (r *SubprocessRunner) safe(s string) string {
	if r.cfg.DebugPaths {
		return s
	}
	return logging.SanitizePath(s)
}

func appendLine(s, line string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s + line
	}
	return s + "\n" + line
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last limit bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
