package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
)

// Strategy names used in logs and metrics labels.
const (
	StrategySingleLevel      = "single_level"
	StrategyMultiLevel       = "multi_level"
	StrategyDynamicAveraging = "dynamic_averaging"
)

// EntryPlanner produces a plan of proposed conditional buy orders plus
// explained skips. Every symbol a planner considers lands in exactly one of
// the two output lists; evaluation stops at the first failing precondition so
// skip reasons stay deterministic.
//
// GeneratePlan returns the skips accumulated across both phases, so callers
// see the full accounting for the pass.
type EntryPlanner interface {
	Strategy() string
	IdentifyCandidates(ctx context.Context) ([]domain.Candidate, error)
	GeneratePlan(ctx context.Context, candidates []domain.Candidate) ([]domain.PlannedOrder, []domain.SkippedOrder, error)
}

// skipRecorder collects SkippedOrder rows and logs each decision.
type skipRecorder struct {
	strategy string
	logger   *zap.Logger
	skips    []domain.SkippedOrder
}

func newSkipRecorder(strategy string, logger *zap.Logger) *skipRecorder {
	return &skipRecorder{strategy: strategy, logger: logger}
}

func (r *skipRecorder) add(symbol, exchange, reason string, ltp float64, level string) {
	r.logger.Info("skipping symbol",
		zap.String("strategy", r.strategy),
		zap.String("symbol", symbol),
		zap.String("reason", reason))
	metrics.IncSkipped(r.strategy)
	r.skips = append(r.skips, domain.SkippedOrder{
		Symbol:   symbol,
		Exchange: exchange,
		Reason:   reason,
		LTP:      ltp,
		Level:    level,
	})
}

func (r *skipRecorder) list() []domain.SkippedOrder { return r.skips }

// holdingsBySymbol indexes holdings by normalized symbol.
func holdingsBySymbol(holdings []domain.Holding) map[string]domain.Holding {
	m := make(map[string]domain.Holding, len(holdings))
	for _, h := range holdings {
		m[domain.NormalizeSymbol(h.Symbol)] = h
	}
	return m
}

// buyFillSymbols returns the normalized symbols with a completed BUY fill in
// today's trade list. Planners exclude them to avoid duplicate intent.
func buyFillSymbols(ctx context.Context, broker domain.Broker) (map[string]bool, error) {
	fills, err := broker.GetFillsForToday(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make(map[string]bool)
	for _, f := range fills {
		if f.TransactionType == domain.SideBuy {
			symbols[domain.NormalizeSymbol(f.Symbol)] = true
		}
	}
	return symbols, nil
}
