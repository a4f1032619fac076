package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autoeditor/autoeditor-agent/internal/config"
	"github.com/autoeditor/autoeditor-agent/internal/db"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/store"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, k := range []string{config.EnvConfigPath, config.EnvBinary, config.EnvMediaDir, config.EnvRunTimeout} {
		t.Setenv(k, "")
	}
	t.Setenv(config.EnvDataDir, dir)
	t.Setenv("NO_COLOR", "")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeState(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	return path
}

func TestPreview_FromStateFile(t *testing.T) {
	isolate(t)
	path := writeState(t, `{"clipLabel":"Reel 1 / ClipA","timeline":"My Timeline"}`)

	out, err := execute(t, "", "--state", path, "--binary", "/opt/ae", "preview")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	want := `/opt/ae "Reel 1 / ClipA" --export resolve:name="My Timeline" --edit audio --output <path>.fcpxml` + "\n"
	if out != want {
		t.Errorf("preview =\n%s\nwant\n%s", out, want)
	}
}

func TestPreview_Stdin(t *testing.T) {
	isolate(t)

	out, err := execute(t, `{"runMode":"standalone","exportTarget":"none"}`, "-s", "-", "preview")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got := strings.TrimSpace(out); got != "auto-editor <clip> --edit audio" {
		t.Errorf("preview = %q", got)
	}
}

func TestPreview_BadState(t *testing.T) {
	isolate(t)
	path := writeState(t, `{"clipLabel":`)

	if _, err := execute(t, "", "--state", path, "preview"); err == nil {
		t.Fatal("expected parse error")
	} else if !strings.Contains(err.Error(), "parse state") {
		t.Errorf("error = %v", err)
	}
}

func TestExpr(t *testing.T) {
	isolate(t)
	path := writeState(t, `{}`)

	out, err := execute(t, "", "--state", path, "expr")
	if err != nil {
		t.Fatalf("expr: %v", err)
	}
	if strings.TrimSpace(out) != "audio" {
		t.Errorf("expr = %q, want audio", out)
	}
}

func TestArgs_Table(t *testing.T) {
	isolate(t)
	path := writeState(t, `{"margin":"0.2s"}`)

	out, err := execute(t, "", "--state", path, "args")
	if err != nil {
		t.Fatalf("args: %v", err)
	}
	for _, want := range []string{"Export: resolve:name=", "Flag", "--edit", "audio", "--margin", "0.2s"} {
		if !strings.Contains(out, want) {
			t.Errorf("args output missing %q:\n%s", want, out)
		}
	}
}

func TestRuns_NoDatabase(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "runs")
	if err == nil || !strings.Contains(err.Error(), "agent database not found") {
		t.Fatalf("error = %v", err)
	}
}

func seedDatabase(t *testing.T, dir string, fn func(*store.SQLiteRepository)) {
	t.Helper()
	database, err := db.New(filepath.Join(dir, config.DBFilename), logging.Discard())
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer database.Close()
	fn(store.NewRepository(database.Conn()))
}

func TestRuns_Table(t *testing.T) {
	dir := isolate(t)
	seedDatabase(t, dir, func(repo *store.SQLiteRepository) {
		run := &store.Run{ID: "0123456789abcdef", Kind: store.RunKindVersion, Command: "auto-editor --version"}
		if err := repo.CreateRun(context.Background(), run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	})

	out, err := execute(t, "", "runs", "--limit", "5")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	for _, want := range []string{"01234567", "version", "running", "auto-editor --version"} {
		if !strings.Contains(out, want) {
			t.Errorf("runs output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Errorf("runs output should shorten ids:\n%s", out)
	}
}

func TestRuns_BadLimit(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "", "runs", "-n", "0"); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestForm_ShowAndReset(t *testing.T) {
	dir := isolate(t)
	seedDatabase(t, dir, func(repo *store.SQLiteRepository) {
		st := form.Defaults()
		st.Timeline = "Saved Timeline"
		form.NewStore(repo, logging.Discard()).Save(context.Background(), st)
	})

	out, err := execute(t, "", "form", "show")
	if err != nil {
		t.Fatalf("form show: %v", err)
	}
	if !strings.Contains(out, `"timeline": "Saved Timeline"`) {
		t.Errorf("form show output:\n%s", out)
	}

	if _, err := execute(t, "", "form", "reset"); err != nil {
		t.Fatalf("form reset: %v", err)
	}
	out, err = execute(t, "", "preview")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(out, `resolve:name="Auto-Editor Timeline"`) {
		t.Errorf("preview after reset = %s", out)
	}
}

func TestHighlightPlaceholders(t *testing.T) {
	got := highlightPlaceholders("auto-editor <clip> --output <path>.fcpxml")
	want := "auto-editor " + ansiYellow + "<clip>" + ansiReset + " --output " + ansiYellow + "<path>" + ansiReset + ".fcpxml"
	if got != want {
		t.Errorf("highlightPlaceholders() = %q", got)
	}
}

func TestShouldColorize_Buffer(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestRenderTable_KeepsHeaderCaseAndPadsRows(t *testing.T) {
	out := renderTable([]column{{title: "Flag"}, {title: "Value"}}, [][]string{{"--no-open"}})
	if !strings.Contains(out, "Flag") || strings.Contains(out, "FLAG") {
		t.Errorf("header case not kept:\n%s", out)
	}
	if !strings.Contains(out, "--no-open") {
		t.Errorf("short row missing:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Error("no columns should render nothing")
	}
}
