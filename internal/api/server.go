package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/autoeditor/autoeditor-agent/internal/bridge"
	"github.com/autoeditor/autoeditor-agent/internal/form"
	"github.com/autoeditor/autoeditor-agent/internal/process"
	"github.com/autoeditor/autoeditor-agent/internal/store"
	"github.com/autoeditor/autoeditor-agent/internal/workflow"
)

// Workflow is what the panel API drives. *workflow.Service implements it.
type Workflow interface {
	State() form.State
	Update(ctx context.Context, next form.State) form.State
	Reset(ctx context.Context) form.State
	Status() workflow.Status
	Busy() bool
	Preview() string
	RunLabel() string
	Clips(ctx context.Context) ([]bridge.Clip, error)
	Run(ctx context.Context) (*workflow.Outcome, error)
	RunUtility(ctx context.Context) (*workflow.Outcome, error)
	Help(ctx context.Context) (*workflow.Outcome, error)
	Version(ctx context.Context) (*workflow.Outcome, error)
	EditContext(ctx context.Context) (bridge.EditContext, error)
	Render(ctx context.Context) (workflow.Status, error)
	Close(ctx context.Context) error
	Runs(ctx context.Context, limit int) ([]*store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port      int
	Workflow  Workflow
	Tokens    TokenSource
	Probe     *process.CachedProbe
	Logger    *slog.Logger
	StartTime time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
