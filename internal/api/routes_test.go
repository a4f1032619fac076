package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/autoeditor/autoeditor-agent/internal/bridge"
	"github.com/autoeditor/autoeditor-agent/internal/command"
	"github.com/autoeditor/autoeditor-agent/internal/expr"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/process"
	"github.com/autoeditor/autoeditor-agent/internal/store"
	"github.com/autoeditor/autoeditor-agent/internal/workflow"
)

const testToken = "test-token-123456"

type fakeWorkflow struct {
	state  form.State
	busy   bool
	runErr error
	runs   []*store.Run
	clips  []bridge.Clip
}

func newFakeWorkflow() *fakeWorkflow {
	return &fakeWorkflow{state: form.Defaults()}
}

func (f *fakeWorkflow) State() form.State { return f.state }
func (f *fakeWorkflow) Update(_ context.Context, next form.State) form.State {
	f.state = form.Apply(f.state, next)
	return f.state
}
func (f *fakeWorkflow) Reset(context.Context) form.State {
	f.state = form.Defaults()
	return f.state
}
func (f *fakeWorkflow) Status() workflow.Status {
	return workflow.Status{Message: "Ready.", Tone: workflow.ToneInfo}
}
func (f *fakeWorkflow) Busy() bool       { return f.busy }
func (f *fakeWorkflow) Preview() string  { return f.state.Preview() }
func (f *fakeWorkflow) RunLabel() string { return f.state.RunLabel() }
func (f *fakeWorkflow) Clips(context.Context) ([]bridge.Clip, error) {
	if f.clips == nil {
		return nil, bridge.ErrUnavailable
	}
	return f.clips, nil
}
func (f *fakeWorkflow) Run(context.Context) (*workflow.Outcome, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &workflow.Outcome{RunID: "run-1", Command: "auto-editor a.mp4", Imported: true}, nil
}
func (f *fakeWorkflow) RunUtility(ctx context.Context) (*workflow.Outcome, error) { return f.Run(ctx) }
func (f *fakeWorkflow) Help(ctx context.Context) (*workflow.Outcome, error)       { return f.Run(ctx) }
func (f *fakeWorkflow) Version(ctx context.Context) (*workflow.Outcome, error)    { return f.Run(ctx) }
func (f *fakeWorkflow) EditContext(context.Context) (bridge.EditContext, error) {
	return bridge.EditContext{Name: "Timeline 1", FrameRate: "24", Resolution: "1920x1080"}, nil
}
func (f *fakeWorkflow) Render(context.Context) (workflow.Status, error) {
	return workflow.Status{}, bridge.ErrUnavailable
}
func (f *fakeWorkflow) Close(context.Context) error { return nil }
func (f *fakeWorkflow) Runs(_ context.Context, limit int) ([]*store.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}
func (f *fakeWorkflow) GetRun(_ context.Context, id string) (*store.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func testRouter(wf *fakeWorkflow) http.Handler {
	return NewRouter(ServerConfig{
		Workflow:  wf,
		Tokens:    staticTokens{token: testToken},
		Logger:    logging.Discard(),
		StartTime: time.Now(),
	})
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rr.Body.String())
	}
	return body
}

func TestHealth_NoAuth(t *testing.T) {
	h := testRouter(newFakeWorkflow())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	h := testRouter(newFakeWorkflow())
	req := httptest.NewRequest(http.MethodGet, "/form", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	wf := newFakeWorkflow()
	wf.busy = true
	wf.runs = []*store.Run{{ID: "r1", Kind: store.RunKindEdit, Status: store.RunStatusRunning}}

	rr := doRequest(t, testRouter(wf), http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["state"] != "running" || body["run_label"] != "Create Timeline" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["tool"]; ok {
		t.Error("tool should be omitted without a probe")
	}
	last, ok := body["last_run"].(map[string]interface{})
	if !ok || last["id"] != "r1" {
		t.Errorf("last_run = %v", body["last_run"])
	}
}

func TestFormRoundTrip(t *testing.T) {
	wf := newFakeWorkflow()
	h := testRouter(wf)

	rr := doRequest(t, h, http.MethodGet, "/form", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /form status = %d", rr.Code)
	}
	want := `auto-editor <clip> --export resolve:name="Auto-Editor Timeline" --edit audio --output <path>.fcpxml`
	if got := decodeJSONBody(t, rr)["preview"]; got != want {
		t.Errorf("preview = %v, want %q", got, want)
	}

	rr = doRequest(t, h, http.MethodPut, "/form", `{"clipLabel":"Reel 1 / ClipA","timeline":"My Timeline"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT /form status = %d: %s", rr.Code, rr.Body.String())
	}
	want = `auto-editor "Reel 1 / ClipA" --export resolve:name="My Timeline" --edit audio --output <path>.fcpxml`
	if got := decodeJSONBody(t, rr)["preview"]; got != want {
		t.Errorf("preview = %v, want %q", got, want)
	}
	if wf.state.Margin != "" || wf.state.ClipLabel != "Reel 1 / ClipA" {
		t.Errorf("partial update should keep other fields: %+v", wf.state)
	}

	rr = doRequest(t, h, http.MethodPut, "/form", `{"runMode":"standalone","exportTarget":"premiere"}`)
	body := decodeJSONBody(t, rr)
	state := body["state"].(map[string]interface{})
	if state["exportTarget"] != "premiere" || body["run_label"] != "Run Export" {
		t.Errorf("after standalone switch body = %v", body)
	}

	rr = doRequest(t, h, http.MethodPut, "/form", `{"runMode":"resolve"}`)
	state = decodeJSONBody(t, rr)["state"].(map[string]interface{})
	if state["exportTarget"] != command.TargetResolve || state["priorExportTarget"] != "premiere" {
		t.Errorf("host mode should pin resolve and remember premiere: %v", state)
	}

	rr = doRequest(t, h, http.MethodDelete, "/form", "")
	if got := decodeJSONBody(t, rr)["state"].(map[string]interface{})["clipLabel"]; got != "" {
		t.Errorf("reset clipLabel = %v", got)
	}
}

func TestPutForm_BadBody(t *testing.T) {
	h := testRouter(newFakeWorkflow())
	for _, body := range []string{`{`, `{"singleRule":{"method":"loudness"}}`} {
		rr := doRequest(t, h, http.MethodPut, "/form", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("PUT %s status = %d, want 400", body, rr.Code)
		}
	}
}

func TestPutForm_RejectedBodyLeavesRulesUntouched(t *testing.T) {
	wf := newFakeWorkflow()
	wf.state.EditMode = expr.ModeCombine
	wf.state.CombineRules = []expr.Rule{expr.NewRule(expr.MethodAudio), expr.NewRule(expr.MethodMotion)}
	want := wf.state.Expression()
	h := testRouter(wf)

	body := `{"combineRules":[{"method":"word","fields":{"wordValue":"oops"}},{"method":"bogus"}]}`
	rr := doRequest(t, h, http.MethodPut, "/form", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if got := wf.state.Expression(); got != want {
		t.Errorf("expression after rejected PUT = %q, want %q", got, want)
	}
}

type versionRunner struct{}

func (versionRunner) Run(context.Context, string) (process.Result, error) {
	return process.Result{Stdout: "29.3.1"}, nil
}

func TestPutForm_BinaryChangeForgetsVersion(t *testing.T) {
	wf := newFakeWorkflow()
	probe := process.NewCachedProbe(versionRunner{}, func() string { return "auto-editor --version" }, logging.Discard())
	if _, err := probe.Get(context.Background()); err != nil {
		t.Fatalf("probe.Get() error = %v", err)
	}
	h := NewRouter(ServerConfig{
		Workflow:  wf,
		Tokens:    staticTokens{token: testToken},
		Probe:     probe,
		Logger:    logging.Discard(),
		StartTime: time.Now(),
	})

	doRequest(t, h, http.MethodPut, "/form", `{"margin":"0.1s"}`)
	if probe.Peek() == nil {
		t.Fatal("version dropped although the binary did not change")
	}

	doRequest(t, h, http.MethodPut, "/form", `{"binary":"/opt/ae/bin/auto-editor"}`)
	if probe.Peek() != nil {
		t.Error("version still cached after the binary changed")
	}
}

func TestPreviewHandler(t *testing.T) {
	wf := newFakeWorkflow()
	wf.state.Margin = "0.2s"
	rr := doRequest(t, testRouter(wf), http.MethodGet, "/preview", "")
	body := decodeJSONBody(t, rr)
	if body["expression"] != "audio" {
		t.Errorf("expression = %v", body["expression"])
	}
	args, _ := body["args"].([]interface{})
	if len(args) != 2 || args[0] != "--edit audio" || args[1] != "--margin 0.2s" {
		t.Errorf("args = %v", body["args"])
	}
}

func TestRunHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"input incomplete", bridge.ErrInputIncomplete, http.StatusBadRequest, "INPUT_INCOMPLETE"},
		{"busy", workflow.ErrBusy, http.StatusConflict, "BUSY"},
		{"unavailable", bridge.ErrUnavailable, http.StatusServiceUnavailable, "BRIDGE_UNAVAILABLE"},
		{"process", &bridge.ProcessError{ExitCode: 1, Stderr: "bad margin"}, http.StatusBadGateway, "PROCESS_FAILED"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := newFakeWorkflow()
			wf.runErr = tt.err
			rr := doRequest(t, testRouter(wf), http.MethodPost, "/run", "")
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			body := decodeJSONBody(t, rr)
			if tt.code != "" && body["code"] != tt.code {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
			if tt.err == nil && (body["run_id"] != "run-1" || body["imported"] != true) {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestClipsAndContext(t *testing.T) {
	wf := newFakeWorkflow()
	h := testRouter(wf)

	if rr := doRequest(t, h, http.MethodGet, "/clips", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("clips without host status = %d", rr.Code)
	}

	wf.clips = []bridge.Clip{{Label: "A"}, {Label: "Sub / B"}}
	rr := doRequest(t, h, http.MethodGet, "/clips", "")
	clips, _ := decodeJSONBody(t, rr)["clips"].([]interface{})
	if len(clips) != 2 || clips[1] != "Sub / B" {
		t.Errorf("clips = %v", clips)
	}

	rr = doRequest(t, h, http.MethodGet, "/context", "")
	if body := decodeJSONBody(t, rr); body["name"] != "Timeline 1" || body["frame_rate"] != "24" {
		t.Errorf("context = %v", body)
	}

	if rr := doRequest(t, h, http.MethodPost, "/render", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("render status = %d", rr.Code)
	}
	if rr := doRequest(t, h, http.MethodPost, "/close", ""); rr.Code != http.StatusNoContent {
		t.Errorf("close status = %d", rr.Code)
	}
}

func TestRunsHandlers(t *testing.T) {
	wf := newFakeWorkflow()
	wf.runs = []*store.Run{
		{ID: "b", Kind: store.RunKindEdit, Status: store.RunStatusSucceeded},
		{ID: "a", Kind: store.RunKindVersion, Status: store.RunStatusFailed, Error: "not found"},
	}
	h := testRouter(wf)

	rr := doRequest(t, h, http.MethodGet, "/runs?limit=1", "")
	runs, _ := decodeJSONBody(t, rr)["runs"].([]interface{})
	if len(runs) != 1 {
		t.Errorf("runs = %v", runs)
	}

	if rr := doRequest(t, h, http.MethodGet, "/runs?limit=0", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}

	rr = doRequest(t, h, http.MethodGet, "/runs/a", "")
	if body := decodeJSONBody(t, rr); body["error"] != "not found" || body["kind"] != "version" {
		t.Errorf("run = %v", body)
	}

	if rr := doRequest(t, h, http.MethodGet, "/runs/zzz", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d", rr.Code)
	}
}
