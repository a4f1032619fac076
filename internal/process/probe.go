package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// Version is what `<binary> --version` reported.
type Version struct {
	Command  string    `json:"command"`
	Output   string    `json:"output"`
	ProbedAt time.Time `json:"probed_at"`
}

// CachedProbe runs the version command at most once per TTL. The command is
// read on every refresh so a changed binary setting is picked up.
type CachedProbe struct {
	runner  Runner
	command func() string
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	cached *Version
}

func NewCachedProbe(runner Runner, command func() string, logger *slog.Logger) *CachedProbe {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProbe{runner: runner, command: command, ttl: defaultProbeTTL, logger: logger}
}

// Get returns the cached version if fresh and for the same command.
func (p *CachedProbe) Get(ctx context.Context) (*Version, error) {
	cmd := p.command()
	p.mu.RLock()
	if p.cached != nil && p.cached.Command == cmd && time.Since(p.cached.ProbedAt) < p.ttl {
		v := p.cached
		p.mu.RUnlock()
		return v, nil
	}
	p.mu.RUnlock()

	return p.Refresh(ctx)
}

// Peek returns the last successful probe without running anything.
func (p *CachedProbe) Peek() *Version {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

// Refresh probes regardless of cache age. A failed probe keeps the stale
// value only if it was for the same command.
func (p *CachedProbe) Refresh(ctx context.Context) (*Version, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := p.command()
	res, err := p.runner.Run(ctx, cmd)
	if err == nil && !res.IsSuccess() {
		err = fmt.Errorf("version probe exited %d: %s", res.ExitCode, strings.TrimSpace(res.StderrTail))
	}
	if err != nil {
		p.logger.Warn("version probe failed", "error", err)
		if p.cached != nil && p.cached.Command == cmd {
			return p.cached, nil
		}
		return nil, err
	}

	p.cached = &Version{
		Command:  cmd,
		Output:   strings.TrimSpace(res.Stdout),
		ProbedAt: time.Now(),
	}
	p.logger.Info("version probe complete", "version", p.cached.Output)
	return p.cached, nil
}

// Invalidate forgets the cached version.
func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
