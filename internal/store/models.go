package store

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunKindEdit    = "edit"
	RunKindUtility = "utility"
	RunKindHelp    = "help"
	RunKindVersion = "version"

	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one invocation of the external tool.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Command    string    `json:"command"`
	ClipLabel  string    `json:"clip_label,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	Imported   bool      `json:"imported"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}

func NewID() string {
	return uuid.NewString()
}
