package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nitink/gtt_planner/internal/domain"
)

// PaperBroker is an in-memory brokerage used for dry runs, local development
// and tests. Quotes are keyed by instrument key and seeded by the caller;
// placed conditional orders live until cancelled.
type PaperBroker struct {
	mu       sync.Mutex
	holdings []domain.Holding
	orders   map[string]domain.ConditionalOrder
	fills    []domain.Trade
	quotes   map[string]float64

	// authFailures makes the next N GetQuotes calls fail unauthorized, to
	// exercise the token-refresh path.
	authFailures int
	refreshes    int
}

func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		orders: make(map[string]domain.ConditionalOrder),
		quotes: make(map[string]float64),
	}
}

func (b *PaperBroker) SeedHoldings(holdings []domain.Holding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holdings = holdings
}

func (b *PaperBroker) SeedQuote(instrumentKey string, ltp float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[instrumentKey] = ltp
}

func (b *PaperBroker) SeedFill(trade domain.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fills = append(b.fills, trade)
}

func (b *PaperBroker) SeedOrder(order domain.ConditionalOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	b.orders[order.ID] = order
}

// FailNextQuoteBatches arms the unauthorized failure for the next n quote
// calls.
func (b *PaperBroker) FailNextQuoteBatches(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authFailures = n
}

// TokenRefreshes reports how many times the session credential was renewed.
func (b *PaperBroker) TokenRefreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

func (b *PaperBroker) GetHoldings(ctx context.Context) ([]domain.Holding, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Holding, len(b.holdings))
	copy(out, b.holdings)
	return out, nil
}

func (b *PaperBroker) GetConditionalOrders(ctx context.Context) ([]domain.ConditionalOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.ConditionalOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out, nil
}

func (b *PaperBroker) PlaceConditionalOrder(ctx context.Context, req domain.ConditionalOrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", fmt.Errorf("invalid quantity %d for %s", req.Quantity, req.Symbol)
	}
	if req.TriggerPrice <= 0 || req.OrderPrice <= 0 {
		return "", fmt.Errorf("invalid prices for %s: trigger=%.2f order=%.2f",
			req.Symbol, req.TriggerPrice, req.OrderPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	b.orders[id] = domain.ConditionalOrder{
		ID:           id,
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Side:         req.Side,
		TriggerPrice: req.TriggerPrice,
		OrderPrice:   req.OrderPrice,
		Quantity:     req.Quantity,
		Status:       domain.OrderStatusActive,
	}
	return id, nil
}

func (b *PaperBroker) CancelConditionalOrder(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.orders[id]; !ok {
		return fmt.Errorf("no such order: %s", id)
	}
	delete(b.orders, id)
	return nil
}

func (b *PaperBroker) GetQuotes(ctx context.Context, instrumentKeys []string) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.authFailures > 0 {
		b.authFailures--
		return nil, domain.ErrUnauthorized
	}
	out := make(map[string]float64, len(instrumentKeys))
	for _, key := range instrumentKeys {
		if ltp, ok := b.quotes[key]; ok {
			out[key] = ltp
		}
	}
	return out, nil
}

func (b *PaperBroker) GetFillsForToday(ctx context.Context) ([]domain.Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Trade, len(b.fills))
	copy(out, b.fills)
	return out, nil
}

// Refresh satisfies the token source; the paper session never really expires
// so this only clears the armed failure and counts the renewal.
func (b *PaperBroker) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authFailures = 0
	b.refreshes++
	return nil
}
