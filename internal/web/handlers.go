package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/usecase"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.session.Holdings(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch holdings", zap.Error(err))
		http.Error(w, "Failed to fetch holdings", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, holdings)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.manager.Analyze(r.Context())
	if err != nil {
		s.logger.Error("Failed to analyze orders", zap.Error(err))
		http.Error(w, "Failed to analyze orders", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

// handleDuplicates reports symbols with more than one active BUY order and
// symbols configured on more than one entry-level row.
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	orderDups, err := s.manager.DuplicateSymbols(r.Context())
	if err != nil {
		s.logger.Error("Failed to find duplicate orders", zap.Error(err))
		http.Error(w, "Failed to find duplicate orders", http.StatusBadGateway)
		return
	}
	rows, err := s.session.EntryLevels(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch entry levels", zap.Error(err))
		http.Error(w, "Failed to fetch entry levels", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{
		"orders":       orderDups,
		"entry_levels": domain.DuplicateEntrySymbols(rows),
	})
}

func (s *Server) handleCommitted(w http.ResponseWriter, r *http.Request) {
	var threshold *float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "Invalid threshold", http.StatusBadRequest)
			return
		}
		threshold = &v
	}

	total, err := s.manager.TotalBuyAmount(r.Context(), threshold)
	if err != nil {
		s.logger.Error("Failed to compute committed amount", zap.Error(err))
		http.Error(w, "Failed to compute committed amount", http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{"total_buy_amount": total})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.session.ReadPlan(r.Context())
	if err != nil {
		s.logger.Error("Failed to read plan", zap.Error(err))
		http.Error(w, "Failed to read plan", http.StatusInternalServerError)
		return
	}
	if plan == nil {
		http.Error(w, "No plan", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

// handleCreatePlan runs the requested planner variant and persists the
// result into the single plan slot, replacing whatever was there.
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	strategy := r.URL.Query().Get("strategy")
	if strategy == "" {
		strategy = usecase.StrategyMultiLevel
	}
	planner, ok := s.planners[strategy]
	if !ok {
		http.Error(w, "Unknown strategy: "+strategy, http.StatusBadRequest)
		return
	}

	candidates, err := planner.IdentifyCandidates(r.Context())
	if err != nil {
		s.logger.Error("Failed to identify candidates",
			zap.String("strategy", strategy), zap.Error(err))
		http.Error(w, "Failed to identify candidates", http.StatusBadGateway)
		return
	}
	planned, skipped, err := planner.GeneratePlan(r.Context(), candidates)
	if err != nil {
		s.logger.Error("Failed to generate plan",
			zap.String("strategy", strategy), zap.Error(err))
		http.Error(w, "Failed to generate plan", http.StatusBadGateway)
		return
	}

	plan := domain.NewPlan(planned, skipped)
	if err := s.session.WritePlan(r.Context(), plan); err != nil {
		s.logger.Error("Failed to persist plan", zap.Error(err))
		http.Error(w, "Failed to persist plan", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Plan created",
		zap.String("strategy", strategy),
		zap.Int("planned", len(planned)),
		zap.Int("skipped", len(skipped)))
	s.writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeletePlan(r.Context()); err != nil {
		s.logger.Error("Failed to delete plan", zap.Error(err))
		http.Error(w, "Failed to delete plan", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePlace submits the persisted plan to the broker. The plan slot is
// consumed: it is deleted after a non-dry-run placement regardless of
// per-order outcomes.
func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	plan, err := s.session.ReadPlan(r.Context())
	if err != nil {
		s.logger.Error("Failed to read plan", zap.Error(err))
		http.Error(w, "Failed to read plan", http.StatusInternalServerError)
		return
	}

	results, err := s.manager.PlaceOrders(r.Context(), plan, dryRun)
	if err == domain.ErrNoPlan {
		http.Error(w, "No plan", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to place orders", zap.Error(err))
		http.Error(w, "Failed to place orders", http.StatusBadGateway)
		return
	}

	if !dryRun {
		if err := s.session.DeletePlan(r.Context()); err != nil {
			s.logger.Error("Failed to delete consumed plan", zap.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handlePlacements(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	placements, err := s.journal.ListPlacements(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list placements", zap.Error(err))
		http.Error(w, "Failed to list placements", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, placements)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"last_refreshed": s.session.LastRefreshed().Format(time.RFC3339),
		"stale":          s.session.IsStale(),
	})
}
