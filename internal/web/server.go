package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
	"github.com/nitink/gtt_planner/internal/usecase"
)

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	session  *usecase.SessionCache
	planners map[string]usecase.EntryPlanner
	manager  *usecase.OrderManager
	journal  domain.PlacementJournal
	logger   *zap.Logger
}

func NewServer(
	port int,
	session *usecase.SessionCache,
	planners map[string]usecase.EntryPlanner,
	manager *usecase.OrderManager,
	journal domain.PlacementJournal,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		session:  session,
		planners: planners,
		manager:  manager,
		journal:  journal,
		logger:   logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Portfolio
	s.router.HandleFunc("GET /api/holdings", s.handleHoldings)

	// Standing orders
	s.router.HandleFunc("GET /api/analysis", s.handleAnalysis)
	s.router.HandleFunc("GET /api/duplicates", s.handleDuplicates)
	s.router.HandleFunc("GET /api/committed", s.handleCommitted)

	// Plan slot
	s.router.HandleFunc("GET /api/plan", s.handleGetPlan)
	s.router.HandleFunc("POST /api/plan", s.handleCreatePlan)
	s.router.HandleFunc("DELETE /api/plan", s.handleDeletePlan)

	// Placement
	s.router.HandleFunc("POST /api/place", s.handlePlace)
	s.router.HandleFunc("GET /api/placements", s.handlePlacements)

	// Status
	s.router.HandleFunc("GET /status", s.handleStatus)

	// Metrics
	s.router.Handle("GET /metrics", metrics.Handler())
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
