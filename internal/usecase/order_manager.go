package usecase

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
)

// AdjustFunc normalizes a desired order price against the live price into a
// broker-valid (order price, trigger price) pair.
type AdjustFunc func(orderPrice, ltp float64) (price, trigger float64)

// OrderManager analyzes standing conditional orders against current quotes
// and adjusts, cancels or places them. Broker failures are captured per
// order; one rejection never aborts a batch.
type OrderManager struct {
	session *SessionCache
	broker  domain.Broker
	journal domain.PlacementJournal // optional
	logger  *zap.Logger
}

func NewOrderManager(session *SessionCache, journal domain.PlacementJournal, logger *zap.Logger) *OrderManager {
	return &OrderManager{
		session: session,
		broker:  session.Broker(),
		journal: journal,
		logger:  logger,
	}
}

// Analyze measures every active BUY conditional order against the current
// price: variance% = (LTP - trigger) / trigger x 100. Results come back
// sorted ascending, most in the money for triggering first. Orders without a
// resolvable quote are logged and omitted.
func (m *OrderManager) Analyze(ctx context.Context) ([]domain.OrderAnalysis, error) {
	orders, err := m.session.ConditionalOrders(ctx)
	if err != nil {
		return nil, err
	}
	quotes, err := m.session.Quotes(ctx)
	if err != nil {
		return nil, err
	}

	var results []domain.OrderAnalysis
	for _, o := range orders {
		if !o.IsActiveBuy() || o.TriggerPrice <= 0 {
			continue
		}
		ltp, err := quotes.Price(o.Exchange, o.Symbol)
		if err != nil {
			m.logger.Warn("no quote for standing order, omitting from analysis",
				zap.String("symbol", o.Symbol), zap.Error(err))
			continue
		}
		results = append(results, domain.OrderAnalysis{
			OrderID:      o.ID,
			Symbol:       domain.NormalizeSymbol(o.Symbol),
			Exchange:     o.Exchange,
			TriggerPrice: o.TriggerPrice,
			OrderPrice:   o.OrderPrice,
			Quantity:     o.Quantity,
			LTP:          ltp,
			VariancePct:  roundN((ltp-o.TriggerPrice)/o.TriggerPrice*100, 2),
			BuyAmount:    o.OrderPrice * float64(o.Quantity),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].VariancePct < results[j].VariancePct
	})
	return results, nil
}

// DuplicateSymbols returns each symbol with more than one active BUY
// conditional order, exactly once, sorted. Duplicates signal a planner or
// manual-entry error.
func (m *OrderManager) DuplicateSymbols(ctx context.Context) ([]string, error) {
	orders, err := m.session.ConditionalOrders(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, o := range orders {
		if o.IsActiveBuy() && o.Symbol != "" {
			counts[domain.NormalizeSymbol(o.Symbol)]++
		}
	}
	var dups []string
	for sym, n := range counts {
		if n > 1 {
			dups = append(dups, sym)
		}
	}
	sort.Strings(dups)
	return dups, nil
}

// TotalBuyAmount sums order_price x quantity over active BUY conditional
// orders. With a threshold it answers "how much capital is committed within
// N% of triggering": orders above the variance threshold, or without a
// quote, are excluded.
func (m *OrderManager) TotalBuyAmount(ctx context.Context, threshold *float64) (float64, error) {
	orders, err := m.session.ConditionalOrders(ctx)
	if err != nil {
		return 0, err
	}
	quotes, err := m.session.Quotes(ctx)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, o := range orders {
		if !o.IsActiveBuy() || o.OrderPrice <= 0 || o.Quantity <= 0 {
			continue
		}
		if threshold != nil {
			if o.TriggerPrice <= 0 {
				continue
			}
			ltp, err := quotes.Price(o.Exchange, o.Symbol)
			if err != nil {
				continue
			}
			variance := roundN((ltp-o.TriggerPrice)/o.TriggerPrice*100, 2)
			if variance > *threshold {
				continue
			}
		}
		total += o.OrderPrice * float64(o.Quantity)
	}
	total = roundN(total, 2)
	metrics.SetCommittedAmount(total)
	return total, nil
}

// AdjustOrders cancels and re-places every order whose variance sits below
// the target, recomputing the trigger to realize the target variance against
// the current price. The conditional-order cache is refreshed once after the
// whole batch, not per order.
func (m *OrderManager) AdjustOrders(ctx context.Context, orders []domain.OrderAnalysis, targetVariance float64, adjust AdjustFunc) ([]domain.OrderAnalysis, error) {
	var modified []domain.OrderAnalysis
	for _, o := range orders {
		if o.VariancePct >= targetVariance {
			continue
		}

		desired := roundN(o.LTP/(1+targetVariance/100), 2)
		price, trigger := adjust(desired, o.LTP)

		if err := m.broker.CancelConditionalOrder(ctx, o.OrderID); err != nil {
			m.logger.Warn("failed to cancel order for adjustment",
				zap.String("symbol", o.Symbol), zap.String("order_id", o.OrderID), zap.Error(err))
			continue
		}
		_, err := m.broker.PlaceConditionalOrder(ctx, domain.ConditionalOrderRequest{
			Symbol:       o.Symbol,
			Exchange:     o.Exchange,
			Side:         domain.SideBuy,
			TriggerPrice: trigger,
			OrderPrice:   price,
			Quantity:     o.Quantity,
			LastPrice:    o.LTP,
		})
		if err != nil {
			m.logger.Warn("failed to re-place adjusted order",
				zap.String("symbol", o.Symbol), zap.Error(err))
			continue
		}

		modified = append(modified, domain.OrderAnalysis{
			Symbol:       o.Symbol,
			Exchange:     o.Exchange,
			TriggerPrice: trigger,
			OrderPrice:   price,
			Quantity:     o.Quantity,
			LTP:          o.LTP,
			VariancePct:  roundN((o.LTP-trigger)/trigger*100, 2),
		})
	}

	if err := m.session.RefreshConditionalOrders(ctx); err != nil {
		m.logger.Error("failed to refresh conditional orders after adjustment", zap.Error(err))
	}
	return modified, nil
}

// DeleteAboveVariance cancels every order whose variance exceeds the
// threshold and returns the affected symbols. Single cache refresh at the
// end.
func (m *OrderManager) DeleteAboveVariance(ctx context.Context, orders []domain.OrderAnalysis, threshold float64) ([]string, error) {
	var deleted []string
	for _, o := range orders {
		if o.VariancePct <= threshold {
			continue
		}
		if err := m.broker.CancelConditionalOrder(ctx, o.OrderID); err != nil {
			m.logger.Warn("failed to delete order",
				zap.String("symbol", o.Symbol), zap.String("order_id", o.OrderID), zap.Error(err))
			continue
		}
		deleted = append(deleted, o.Symbol)
	}

	if err := m.session.RefreshConditionalOrders(ctx); err != nil {
		m.logger.Error("failed to refresh conditional orders after deletion", zap.Error(err))
	}
	return deleted, nil
}

// DeleteOrdersForSymbols cancels every active conditional order standing
// against any of the given symbols, returning each affected symbol once.
func (m *OrderManager) DeleteOrdersForSymbols(ctx context.Context, symbols []string) ([]string, error) {
	orders, err := m.session.ConditionalOrders(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[domain.NormalizeSymbol(s)] = true
	}

	deletedSet := make(map[string]bool)
	for _, o := range orders {
		sym := domain.NormalizeSymbol(o.Symbol)
		if !wanted[sym] || o.Status != domain.OrderStatusActive {
			continue
		}
		if err := m.broker.CancelConditionalOrder(ctx, o.ID); err != nil {
			m.logger.Warn("failed to delete order for symbol",
				zap.String("symbol", sym), zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		deletedSet[sym] = true
	}

	if len(deletedSet) > 0 {
		if err := m.session.RefreshConditionalOrders(ctx); err != nil {
			m.logger.Error("failed to refresh conditional orders after deletion", zap.Error(err))
		}
	}

	deleted := make([]string, 0, len(deletedSet))
	for sym := range deletedSet {
		deleted = append(deleted, sym)
	}
	sort.Strings(deleted)
	return deleted, nil
}

// PlaceOrders submits a persisted plan. Skip-tagged entries pass straight
// through as "Skipped" results; real entries go to the broker unless dryRun,
// with per-order failures captured so one rejection never aborts the batch.
// The conditional-order cache is refreshed once at the end regardless of
// individual outcomes.
func (m *OrderManager) PlaceOrders(ctx context.Context, plan *domain.Plan, dryRun bool) ([]domain.PlacementResult, error) {
	if plan == nil {
		return nil, domain.ErrNoPlan
	}

	results := make([]domain.PlacementResult, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		result := domain.PlacementResult{
			Symbol:       entry.Symbol,
			OrderPrice:   entry.OrderPrice,
			TriggerPrice: entry.TriggerPrice,
			Quantity:     entry.Quantity,
			Status:       domain.PlacementSuccess,
		}

		switch {
		case entry.SkipReason != "":
			result.Status = domain.PlacementSkipped
			result.Remarks = entry.SkipReason
		case dryRun:
			// Leave the Success row as-is; nothing touches the broker.
		default:
			id, err := m.broker.PlaceConditionalOrder(ctx, domain.ConditionalOrderRequest{
				Symbol:       entry.Symbol,
				Exchange:     entry.Exchange,
				Side:         domain.SideBuy,
				TriggerPrice: entry.TriggerPrice,
				OrderPrice:   entry.OrderPrice,
				Quantity:     entry.Quantity,
				LastPrice:    entry.LTP,
			})
			if err != nil {
				result.Status = domain.PlacementFail
				result.Remarks = err.Error()
				m.logger.Error("failed to place conditional order",
					zap.String("symbol", entry.Symbol), zap.Error(err))
			} else {
				result.OrderID = id
			}
		}

		metrics.IncPlacement(result.Status)
		if m.journal != nil && !dryRun {
			if err := m.journal.SavePlacement(ctx, result); err != nil {
				m.logger.Warn("failed to journal placement result",
					zap.String("symbol", entry.Symbol), zap.Error(err))
			}
		}
		results = append(results, result)
	}

	if err := m.session.RefreshConditionalOrders(ctx); err != nil {
		m.logger.Error("failed to refresh conditional orders after placement", zap.Error(err))
	}
	return results, nil
}
