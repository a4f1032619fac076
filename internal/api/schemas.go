package api

import (
	"time"

	"github.com/autoeditor/autoeditor-agent/internal/args"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/store"
	"github.com/autoeditor/autoeditor-agent/internal/workflow"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State    string          `json:"state"`
	Status   workflow.Status `json:"status"`
	RunLabel string          `json:"run_label"`
	Tool     *ToolResponse   `json:"tool,omitempty"`
	LastRun  *RunResponse    `json:"last_run,omitempty"`
}

// ToolResponse is the cached result of probing the auto-editor binary.
type ToolResponse struct {
	Command     string `json:"command"`
	Version     string `json:"version"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type ClipsResponse struct {
	Clips    []string `json:"clips"`
	Selected string   `json:"selected"`
}

// FormResponse returns the snapshot together with everything derived from
// it so the panel can redraw in one round trip.
type FormResponse struct {
	State      form.State `json:"state"`
	Preview    string     `json:"preview"`
	Expression string     `json:"expression"`
	RunLabel   string     `json:"run_label"`
}

type PreviewResponse struct {
	Preview    string   `json:"preview"`
	Expression string   `json:"expression"`
	Args       []string `json:"args"`
	Export     string   `json:"export,omitempty"`
}

type OutcomeResponse struct {
	RunID    string          `json:"run_id"`
	Command  string          `json:"command"`
	Output   string          `json:"output,omitempty"`
	Imported bool            `json:"imported"`
	Status   workflow.Status `json:"status"`
}

type RunResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Command    string `json:"command"`
	ClipLabel  string `json:"clip_label,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	Imported   bool   `json:"imported"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func FormToResponse(s form.State, preview string) FormResponse {
	return FormResponse{
		State:      s,
		Preview:    preview,
		Expression: s.Expression(),
		RunLabel:   s.RunLabel(),
	}
}

func OptionsToStrings(opts []args.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.String()
	}
	return out
}

func OutcomeToResponse(o *workflow.Outcome) OutcomeResponse {
	return OutcomeResponse{
		RunID:    o.RunID,
		Command:  o.Command,
		Output:   o.Output,
		Imported: o.Imported,
		Status:   o.Status,
	}
}

func RunToResponse(r *store.Run) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Kind:       r.Kind,
		Status:     r.Status,
		Command:    r.Command,
		ClipLabel:  r.ClipLabel,
		OutputPath: r.OutputPath,
		ExitCode:   r.ExitCode,
		Error:      r.Error,
		Imported:   r.Imported,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
}
