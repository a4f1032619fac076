package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/autoeditor/autoeditor-agent/internal/api"
	"github.com/autoeditor/autoeditor-agent/internal/bridge"
	"github.com/autoeditor/autoeditor-agent/internal/config"
	"github.com/autoeditor/autoeditor-agent/internal/db"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/logging"
	"github.com/autoeditor/autoeditor-agent/internal/process"
	"github.com/autoeditor/autoeditor-agent/internal/store"
	"github.com/autoeditor/autoeditor-agent/internal/ui"
	"github.com/autoeditor/autoeditor-agent/internal/workflow"
)

var errAlreadyRunning = errors.New("another agent is already running for this data directory")

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.TempDir(), 0755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	if !locked {
		return errAlreadyRunning
	}
	defer lock.Unlock()

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting auto-editor agent",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)
	if path, ok := cfg.FilePath(); ok {
		logger.Info("loaded config file", "path", logging.SanitizePath(path))
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if _, err := database.FailInterruptedRuns(context.Background()); err != nil {
		logger.Warn("failed to mark interrupted runs", "error", err)
	}

	repo := store.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                AUTO-EDITOR AGENT v%-24s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	runner := process.NewRunner(process.Config{
		Timeout:    cfg.RunTimeout(),
		Logger:     logging.WithComponent(logger, "process"),
		DebugPaths: cfg.DebugPaths(),
	})

	var host bridge.Host = bridge.NoHost{}
	if cfg.MediaDir() != "" {
		host = bridge.NewFolderHost(cfg.MediaDir(), cfg.ImportDir())
		logger.Info("serving media folder as clip pool",
			"media_dir", logging.SanitizePath(cfg.MediaDir()),
			"import_dir", logging.SanitizePath(cfg.ImportDir()),
		)
	} else {
		logger.Warn("no media folder configured, clip listing disabled")
	}
	br := bridge.New(host, runner, cfg.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := workflow.NewService(ctx, workflow.Config{
		Bridge: br,
		Forms:  form.NewStore(repo, logging.WithComponent(logger, "form")),
		Runs:   repo,
		Logger: logger,
		Binary: cfg.Binary(),
	})

	probe := process.NewCachedProbe(runner, svc.VersionCommand, logging.WithComponent(logger, "probe"))

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Workflow:  svc,
		Tokens:    repo,
		Probe:     probe,
		Logger:    logger,
		StartTime: startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdown := newShutdownLatch()

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			shutdown.Quit()
		case <-shutdown.Done():
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
		go func() {
			probeCtx, probeCancel := context.WithTimeout(ctx, 30*time.Second)
			defer probeCancel()
			if _, err := probe.Refresh(probeCtx); err != nil {
				logger.Warn("auto-editor not available", "error", err)
			}
		}()
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Workflow: svc,
			Probe:    probe,
			Logger:   logger,
			OnQuit:   shutdown.Quit,
		})
		go tray.Run()
	}

	<-shutdown.Done()

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// shutdownLatch lets the signal handler and the tray both request shutdown.
type shutdownLatch struct {
	once sync.Once
	done chan struct{}
}

func newShutdownLatch() *shutdownLatch {
	return &shutdownLatch{done: make(chan struct{})}
}

func (l *shutdownLatch) Quit() { l.once.Do(func() { close(l.done) }) }

func (l *shutdownLatch) Done() <-chan struct{} { return l.done }

type tokenStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

func ensureAuthToken(repo tokenStore) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
