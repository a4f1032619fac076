package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autoeditor/autoeditor-agent/internal/bridge"
	"github.com/autoeditor/autoeditor-agent/internal/config"
	"github.com/autoeditor/autoeditor-agent/internal/workflow"
)

const maxFormBody = 1 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/clips", listClipsHandler(cfg))
		r.Get("/context", editContextHandler(cfg))
		r.Get("/form", getFormHandler(cfg))
		r.Put("/form", putFormHandler(cfg))
		r.Delete("/form", resetFormHandler(cfg))
		r.Get("/preview", previewHandler(cfg))
		r.Post("/run", runHandler(cfg.Workflow.Run))
		r.Post("/utility", runHandler(cfg.Workflow.RunUtility))
		r.Post("/help", runHandler(cfg.Workflow.Help))
		r.Post("/version", runHandler(cfg.Workflow.Version))
		r.Post("/render", renderHandler(cfg))
		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))
		r.Post("/close", closeHandler(cfg))
	})

	return r
}

// writeWorkflowError maps the error taxonomy onto HTTP statuses.
func writeWorkflowError(w http.ResponseWriter, err error) {
	var pe *bridge.ProcessError
	switch {
	case errors.Is(err, bridge.ErrInputIncomplete):
		WriteError(w, http.StatusBadRequest, err.Error(), "INPUT_INCOMPLETE")
	case errors.Is(err, workflow.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case errors.Is(err, bridge.ErrUnavailable):
		WriteError(w, http.StatusServiceUnavailable, err.Error(), "BRIDGE_UNAVAILABLE")
	case errors.As(err, &pe):
		WriteError(w, http.StatusBadGateway, pe.Error(), "PROCESS_FAILED")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf := cfg.Workflow

		state := "idle"
		if wf.Busy() {
			state = "running"
		}

		resp := StatusResponse{
			State:    state,
			Status:   wf.Status(),
			RunLabel: wf.RunLabel(),
		}

		if runs, err := wf.Runs(r.Context(), 1); err == nil && len(runs) > 0 {
			last := RunToResponse(runs[0])
			resp.LastRun = &last
		}

		if cfg.Probe != nil {
			if v := cfg.Probe.Peek(); v != nil {
				resp.Tool = &ToolResponse{
					Command:     v.Command,
					Version:     v.Output,
					LastProbeAt: v.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clips, err := cfg.Workflow.Clips(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}

		resp := ClipsResponse{Clips: make([]string, len(clips)), Selected: cfg.Workflow.State().ClipLabel}
		for i, c := range clips {
			resp.Clips[i] = c.Label
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func editContextHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ec, err := cfg.Workflow.EditContext(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ec)
	}
}

func getFormHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, FormToResponse(cfg.Workflow.State(), cfg.Workflow.Preview()))
	}
}

// putFormHandler overlays the body on the current snapshot, so the panel may
// send only the fields that changed.
func putFormHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Decode into a private copy; a rejected body must not touch live rules.
		prev := cfg.Workflow.State()
		next := prev.Clone()
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody))
		if err := dec.Decode(&next); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid form state: "+err.Error(), "BAD_REQUEST")
			return
		}

		st := cfg.Workflow.Update(r.Context(), next)
		forgetStaleVersion(cfg, prev.Binary, st.Binary)
		WriteJSON(w, http.StatusOK, FormToResponse(st, cfg.Workflow.Preview()))
	}
}

// forgetStaleVersion drops the probed version when the binary changed, so
// /status stops reporting the old tool.
func forgetStaleVersion(cfg ServerConfig, before, after string) {
	if cfg.Probe != nil && before != after {
		cfg.Probe.Invalidate()
	}
}

func resetFormHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prev := cfg.Workflow.State()
		st := cfg.Workflow.Reset(r.Context())
		forgetStaleVersion(cfg, prev.Binary, st.Binary)
		WriteJSON(w, http.StatusOK, FormToResponse(st, cfg.Workflow.Preview()))
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cfg.Workflow.State()
		WriteJSON(w, http.StatusOK, PreviewResponse{
			Preview:    cfg.Workflow.Preview(),
			Expression: st.Expression(),
			Args:       OptionsToStrings(st.Options()),
			Export:     st.ExportValue(),
		})
	}
}

func runHandler(run func(ctx context.Context) (*workflow.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := run(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, OutcomeToResponse(out))
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := cfg.Workflow.Render(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, st)
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		runs, err := cfg.Workflow.Runs(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}

		resp := RunsResponse{Runs: make([]RunResponse, len(runs))}
		for i, run := range runs {
			resp.Runs[i] = RunToResponse(run)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "run id required", "BAD_REQUEST")
			return
		}

		run, err := cfg.Workflow.GetRun(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if run == nil {
			WriteError(w, http.StatusNotFound, "run not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, RunToResponse(run))
	}
}

func closeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Workflow.Close(r.Context()); err != nil {
			writeWorkflowError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
