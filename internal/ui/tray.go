package ui

import (
	"context"
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/autoeditor/autoeditor-agent/internal/process"
	"github.com/autoeditor/autoeditor-agent/internal/workflow"
)

//go:embed icon.png
var iconBytes []byte

const refreshInterval = 2 * time.Second

// Workflow is the part of the workflow service the tray shows and drives.
type Workflow interface {
	Status() workflow.Status
	RunLabel() string
	Busy() bool
	Run(ctx context.Context) (*workflow.Outcome, error)
}

type Tray struct {
	workflow Workflow
	probe    *process.CachedProbe
	logger   *slog.Logger

	statusItem  *systray.MenuItem
	versionItem *systray.MenuItem
	runItem     *systray.MenuItem

	mu sync.Mutex

	onQuit func()
	done   chan struct{}
}

type TrayConfig struct {
	Workflow Workflow
	Probe    *process.CachedProbe
	Logger   *slog.Logger
	OnQuit   func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		workflow: cfg.Workflow,
		probe:    cfg.Probe,
		logger:   cfg.Logger,
		onQuit:   cfg.OnQuit,
		done:     make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Auto-Editor")
	systray.SetTooltip("Auto-Editor Agent")

	t.statusItem = systray.AddMenuItem("Status: Ready.", "Last panel status")
	t.statusItem.Disable()

	t.versionItem = systray.AddMenuItem("auto-editor: checking...", "Detected auto-editor version")
	t.versionItem.Disable()

	systray.AddSeparator()

	t.runItem = systray.AddMenuItem(t.workflow.RunLabel(), "Run the current panel command")
	checkItem := systray.AddMenuItem("Check Version", "Probe the auto-editor binary again")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Auto-Editor Agent")

	go t.probeVersion(false)
	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-t.runItem.ClickedCh:
				go t.handleRun()
			case <-checkItem.ClickedCh:
				go t.probeVersion(true)
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.done)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statusItem.SetTitle(statusTitle(t.workflow.Status(), t.workflow.Busy()))
	t.runItem.SetTitle(t.workflow.RunLabel())
	if t.workflow.Busy() {
		t.runItem.Disable()
	} else {
		t.runItem.Enable()
	}
}

func statusTitle(st workflow.Status, busy bool) string {
	if busy {
		return "Status: Running..."
	}
	msg := st.Message
	if len(msg) > 60 {
		msg = msg[:57] + "..."
	}
	return "Status: " + msg
}

func (t *Tray) handleRun() {
	if _, err := t.workflow.Run(context.Background()); err != nil {
		t.logger.Warn("run from tray failed", "error", err)
	}
	t.refresh()
}

func (t *Tray) probeVersion(force bool) {
	if t.probe == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	get := t.probe.Get
	if force {
		get = t.probe.Refresh
	}
	title := "auto-editor: not found"
	if v, err := get(ctx); err == nil && v.Output != "" {
		title = "auto-editor " + v.Output
	}

	t.mu.Lock()
	t.versionItem.SetTitle(title)
	t.mu.Unlock()
}

func (t *Tray) Quit() {
	systray.Quit()
}
