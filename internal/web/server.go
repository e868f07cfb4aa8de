package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/camuig/pie-watch/internal/config"
	"github.com/camuig/pie-watch/internal/logger"
	"github.com/camuig/pie-watch/internal/portfolio"
	"github.com/camuig/pie-watch/internal/scheduler"
	"github.com/camuig/pie-watch/internal/storage"
)

// RefreshLogReader reads the refresh audit log; nil when the database is disabled.
type RefreshLogReader interface {
	RecentRefreshLogs(limit int) ([]storage.RefreshLog, error)
	CountSince(outcome string, t time.Time) (int64, error)
}

// CycleStatus reports the last finished refresh cycle.
type CycleStatus interface {
	LastCycle() scheduler.CycleResult
}

type Server struct {
	httpServer *http.Server
	store      *portfolio.Store
	logs       RefreshLogReader
	status     CycleStatus
	history    *History
	config     *config.Config
	logger     *logger.Logger
	now        func() time.Time
}

func NewServer(
	store *portfolio.Store,
	logs RefreshLogReader,
	status CycleStatus,
	history *History,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	s := &Server{
		store:   store,
		logs:    logs,
		status:  status,
		history: history,
		config:  cfg,
		logger:  log,
		now:     time.Now,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("GET /api/pies", s.handlePies)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/refresh-logs", s.handleRefreshLogs)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
