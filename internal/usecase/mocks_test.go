package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/usecase"
)

// MockBroker doubles as the broker and the token source, the same pairing
// the real adapters use. When calls is set, every method appends its name so
// tests can assert refresh ordering.
type MockBroker struct {
	calls *[]string

	Holdings    []domain.Holding
	HoldingsErr error
	Orders      []domain.ConditionalOrder
	OrdersErr   error
	Fills       []domain.Trade
	Quotes      map[string]float64

	// AuthFailures fails the next N GetQuotes calls with ErrUnauthorized;
	// QuoteFailures fails them with a generic error.
	AuthFailures  int
	QuoteFailures int

	QuoteCalls int
	Refreshes  int

	Placed    []domain.ConditionalOrderRequest
	PlaceErr  map[string]error
	Cancelled []string
	CancelErr error
	nextID    int
}

func (m *MockBroker) record(name string) {
	if m.calls != nil {
		*m.calls = append(*m.calls, name)
	}
}

func (m *MockBroker) GetHoldings(ctx context.Context) ([]domain.Holding, error) {
	m.record("GetHoldings")
	return m.Holdings, m.HoldingsErr
}

func (m *MockBroker) GetConditionalOrders(ctx context.Context) ([]domain.ConditionalOrder, error) {
	m.record("GetConditionalOrders")
	return m.Orders, m.OrdersErr
}

func (m *MockBroker) PlaceConditionalOrder(ctx context.Context, req domain.ConditionalOrderRequest) (string, error) {
	m.record("PlaceConditionalOrder")
	if err, ok := m.PlaceErr[req.Symbol]; ok {
		return "", err
	}
	m.Placed = append(m.Placed, req)
	m.nextID++
	return fmt.Sprintf("order-%d", m.nextID), nil
}

func (m *MockBroker) CancelConditionalOrder(ctx context.Context, id string) error {
	m.record("CancelConditionalOrder")
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.Cancelled = append(m.Cancelled, id)
	return nil
}

func (m *MockBroker) GetQuotes(ctx context.Context, instrumentKeys []string) (map[string]float64, error) {
	m.record("GetQuotes")
	m.QuoteCalls++
	if m.AuthFailures > 0 {
		m.AuthFailures--
		return nil, domain.ErrUnauthorized
	}
	if m.QuoteFailures > 0 {
		m.QuoteFailures--
		return nil, errors.New("upstream quote service unavailable")
	}
	out := make(map[string]float64, len(instrumentKeys))
	for _, key := range instrumentKeys {
		if ltp, ok := m.Quotes[key]; ok {
			out[key] = ltp
		}
	}
	return out, nil
}

func (m *MockBroker) GetFillsForToday(ctx context.Context) ([]domain.Trade, error) {
	m.record("GetFillsForToday")
	return m.Fills, nil
}

func (m *MockBroker) Refresh(ctx context.Context) error {
	m.record("Refresh")
	m.Refreshes++
	m.AuthFailures = 0
	return nil
}

// MockResolver maps (exchange, symbol) to "EXCHANGE:SYMBOL", the key format
// tests seed MockBroker.Quotes with.
type MockResolver struct {
	Fail map[string]bool
}

func (m *MockResolver) Resolve(exchange, symbol string) (string, error) {
	if m.Fail[symbol] {
		return "", fmt.Errorf("no instrument key for %s:%s", exchange, symbol)
	}
	return key(exchange, symbol), nil
}

func key(exchange, symbol string) string {
	return exchange + ":" + symbol
}

type MockEntryRepo struct {
	calls *[]string
	Rows  []domain.EntryLevelRow
	Err   error
}

func (m *MockEntryRepo) ListEntryLevels(ctx context.Context) ([]domain.EntryLevelRow, error) {
	if m.calls != nil {
		*m.calls = append(*m.calls, "ListEntryLevels")
	}
	return m.Rows, m.Err
}

type MockPlanRepo struct {
	Plan *domain.Plan
}

func (m *MockPlanRepo) WritePlan(ctx context.Context, plan *domain.Plan) error {
	m.Plan = plan
	return nil
}

func (m *MockPlanRepo) ReadPlan(ctx context.Context) (*domain.Plan, error) {
	return m.Plan, nil
}

func (m *MockPlanRepo) DeletePlan(ctx context.Context) error {
	m.Plan = nil
	return nil
}

type MockJournal struct {
	Saved []domain.PlacementResult
}

func (m *MockJournal) SavePlacement(ctx context.Context, result domain.PlacementResult) error {
	m.Saved = append(m.Saved, result)
	return nil
}

func (m *MockJournal) ListPlacements(ctx context.Context, limit int) ([]domain.PlacementResult, error) {
	if limit > len(m.Saved) {
		limit = len(m.Saved)
	}
	out := make([]domain.PlacementResult, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.Saved[len(m.Saved)-1-i]
	}
	return out, nil
}

// newTestSession wires a session cache over the mocks with a TTL long enough
// that only the initial lazy refresh runs.
func newTestSession(b *MockBroker, repo *MockEntryRepo) (*usecase.SessionCache, *MockPlanRepo) {
	log := zap.NewNop()
	plans := &MockPlanRepo{}
	quotes := usecase.NewQuoteCache(b, &MockResolver{}, b, time.Hour, 0, log)
	session := usecase.NewSessionCache(b, repo, plans, quotes, time.Hour, log)
	return session, plans
}

func activeBuy(id, symbol string, trigger, price float64, qty int) domain.ConditionalOrder {
	return domain.ConditionalOrder{
		ID:           id,
		Symbol:       symbol,
		Exchange:     "NSE",
		Side:         domain.SideBuy,
		TriggerPrice: trigger,
		OrderPrice:   price,
		Quantity:     qty,
		Status:       domain.OrderStatusActive,
	}
}
