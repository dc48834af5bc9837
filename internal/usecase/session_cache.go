package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
)

// SessionCache aggregates holdings, entry levels, conditional orders and the
// quote cache behind one staleness clock; all four refresh together. It is
// constructed per user/broker session and is not safe for concurrent
// mutation — a host process serializes access per session.
type SessionCache struct {
	broker    domain.Broker
	entryRepo domain.EntryLevelRepository
	plans     domain.PlanRepository
	quotes    *QuoteCache
	ttl       time.Duration
	logger    *zap.Logger

	lastRefreshed time.Time
	holdings      []domain.Holding
	entryLevels   []domain.EntryLevelRow
	orders        []domain.ConditionalOrder
}

func NewSessionCache(
	broker domain.Broker,
	entryRepo domain.EntryLevelRepository,
	plans domain.PlanRepository,
	quotes *QuoteCache,
	ttl time.Duration,
	logger *zap.Logger,
) *SessionCache {
	return &SessionCache{
		broker:    broker,
		entryRepo: entryRepo,
		plans:     plans,
		quotes:    quotes,
		ttl:       ttl,
		logger:    logger,
	}
}

// IsStale reports whether the whole session snapshot is past its TTL.
func (s *SessionCache) IsStale() bool {
	return time.Since(s.lastRefreshed) > s.ttl
}

// RefreshAll refreshes in strict order: holdings, entry levels, conditional
// orders, then quotes — the quote universe depends on the first three being
// current. A failure on any base input aborts and propagates; quote batch
// failures are local to the quote cache and never abort.
func (s *SessionCache) RefreshAll(ctx context.Context) error {
	holdings, err := s.broker.GetHoldings(ctx)
	if err != nil {
		metrics.IncCacheRefresh("error")
		return fmt.Errorf("refresh holdings: %w", err)
	}

	rows, err := s.entryRepo.ListEntryLevels(ctx)
	if err != nil {
		metrics.IncCacheRefresh("error")
		return fmt.Errorf("refresh entry levels: %w", err)
	}

	orders, err := s.broker.GetConditionalOrders(ctx)
	if err != nil {
		metrics.IncCacheRefresh("error")
		return fmt.Errorf("refresh conditional orders: %w", err)
	}

	s.holdings = holdings
	s.entryLevels = rows
	s.orders = orders

	if err := s.quotes.Refresh(ctx, holdings, orders, rows); err != nil {
		s.logger.Error("quote cache refresh failed", zap.Error(err))
	}

	s.lastRefreshed = time.Now()
	metrics.IncCacheRefresh("ok")
	s.logger.Debug("session cache refreshed",
		zap.Int("holdings", len(holdings)),
		zap.Int("entry_levels", len(rows)),
		zap.Int("conditional_orders", len(orders)),
		zap.Int("quotes", s.quotes.Len()))
	return nil
}

// RefreshConditionalOrders re-reads only the standing orders, used after a
// placement/cancel batch. It does not advance the session clock.
func (s *SessionCache) RefreshConditionalOrders(ctx context.Context) error {
	orders, err := s.broker.GetConditionalOrders(ctx)
	if err != nil {
		return fmt.Errorf("refresh conditional orders: %w", err)
	}
	s.orders = orders
	return nil
}

func (s *SessionCache) refreshIfStale(ctx context.Context) error {
	if !s.IsStale() {
		return nil
	}
	return s.RefreshAll(ctx)
}

// Holdings returns the cached holdings, cascade-refreshing first if stale.
func (s *SessionCache) Holdings(ctx context.Context) ([]domain.Holding, error) {
	if err := s.refreshIfStale(ctx); err != nil {
		return nil, err
	}
	return s.holdings, nil
}

// EntryLevels returns the cached allocation schedule, refreshing if stale.
func (s *SessionCache) EntryLevels(ctx context.Context) ([]domain.EntryLevelRow, error) {
	if err := s.refreshIfStale(ctx); err != nil {
		return nil, err
	}
	return s.entryLevels, nil
}

// ConditionalOrders returns the cached standing orders, refreshing if stale.
func (s *SessionCache) ConditionalOrders(ctx context.Context) ([]domain.ConditionalOrder, error) {
	if err := s.refreshIfStale(ctx); err != nil {
		return nil, err
	}
	return s.orders, nil
}

// Quotes returns the quote cache, refreshing the whole session if stale.
func (s *SessionCache) Quotes(ctx context.Context) (*QuoteCache, error) {
	if err := s.refreshIfStale(ctx); err != nil {
		return nil, err
	}
	return s.quotes, nil
}

// ActiveBuySymbols returns the normalized symbols that currently carry an
// active BUY conditional order.
func (s *SessionCache) ActiveBuySymbols(ctx context.Context) (map[string]bool, error) {
	orders, err := s.ConditionalOrders(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make(map[string]bool)
	for _, o := range orders {
		if o.IsActiveBuy() {
			symbols[domain.NormalizeSymbol(o.Symbol)] = true
		}
	}
	return symbols, nil
}

// Broker exposes the underlying broker for collaborators that mutate orders.
func (s *SessionCache) Broker() domain.Broker { return s.broker }

// LastRefreshed is the timestamp of the last full refresh.
func (s *SessionCache) LastRefreshed() time.Time { return s.lastRefreshed }

// WritePlan replaces any prior unconsumed plan entirely. Last write wins.
func (s *SessionCache) WritePlan(ctx context.Context, plan *domain.Plan) error {
	return s.plans.WritePlan(ctx, plan)
}

// ReadPlan returns the persisted plan, or nil when none exists.
func (s *SessionCache) ReadPlan(ctx context.Context) (*domain.Plan, error) {
	return s.plans.ReadPlan(ctx)
}

// DeletePlan drops the persisted plan slot.
func (s *SessionCache) DeletePlan(ctx context.Context) error {
	return s.plans.DeletePlan(ctx)
}
