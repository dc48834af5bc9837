package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/usecase"
)

func managerFixture(broker *MockBroker) (*usecase.OrderManager, *MockJournal) {
	session, _ := newTestSession(broker, &MockEntryRepo{})
	journal := &MockJournal{}
	return usecase.NewOrderManager(session, journal, zap.NewNop()), journal
}

func TestAnalyzeSortsByVariance(t *testing.T) {
	broker := &MockBroker{
		Orders: []domain.ConditionalOrder{
			activeBuy("o1", "FAR", 90, 89.9, 5),
			activeBuy("o2", "NEAR", 95, 94.9, 10),
		},
		Quotes: map[string]float64{
			key("NSE", "FAR"):  100,
			key("NSE", "NEAR"): 100,
		},
	}
	manager, _ := managerFixture(broker)

	analysis, err := manager.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, analysis, 2)

	// Closest to triggering first.
	assert.Equal(t, "NEAR", analysis[0].Symbol)
	assert.InDelta(t, 5.26, analysis[0].VariancePct, 1e-9)
	assert.InDelta(t, 949.0, analysis[0].BuyAmount, 1e-9)
	assert.Equal(t, "FAR", analysis[1].Symbol)
	assert.InDelta(t, 11.11, analysis[1].VariancePct, 1e-9)
}

func TestAnalyzeOmitsOrdersWithoutQuote(t *testing.T) {
	broker := &MockBroker{
		Orders: []domain.ConditionalOrder{
			activeBuy("o1", "QUOTED", 95, 94.9, 10),
			activeBuy("o2", "DELISTED", 40, 39.9, 10),
		},
		Quotes: map[string]float64{key("NSE", "QUOTED"): 100},
	}
	manager, _ := managerFixture(broker)

	analysis, err := manager.Analyze(context.Background())
	require.NoError(t, err)
	require.Len(t, analysis, 1)
	assert.Equal(t, "QUOTED", analysis[0].Symbol)
}

func TestDuplicateSymbols(t *testing.T) {
	broker := &MockBroker{
		Orders: []domain.ConditionalOrder{
			activeBuy("o1", "FOO", 95, 94.9, 10),
			activeBuy("o2", "FOO#", 94, 93.9, 5),
			activeBuy("o3", "BAR", 50, 49.9, 5),
		},
		Quotes: map[string]float64{},
	}
	manager, _ := managerFixture(broker)

	dups, err := manager.DuplicateSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"FOO"}, dups)
}

func TestTotalBuyAmount(t *testing.T) {
	broker := &MockBroker{
		Orders: []domain.ConditionalOrder{
			activeBuy("o1", "NEAR", 95, 94.9, 10), // variance 5.26
			activeBuy("o2", "FAR", 90, 89.9, 5),   // variance 11.11
		},
		Quotes: map[string]float64{
			key("NSE", "NEAR"): 100,
			key("NSE", "FAR"):  100,
		},
	}
	manager, _ := managerFixture(broker)
	ctx := context.Background()

	total, err := manager.TotalBuyAmount(ctx, nil)
	require.NoError(t, err)
	assert.InDelta(t, 949.0+449.5, total, 1e-9)

	threshold := 6.0
	total, err = manager.TotalBuyAmount(ctx, &threshold)
	require.NoError(t, err)
	assert.InDelta(t, 949.0, total, 1e-9)
}

func TestPlaceOrdersDryRun(t *testing.T) {
	broker := &MockBroker{Quotes: map[string]float64{}}
	manager, journal := managerFixture(broker)

	plan := &domain.Plan{
		CreatedAt: time.Now(),
		Entries: []domain.PlanEntry{
			{Symbol: "FOO", Exchange: "NSE", OrderPrice: 100.35, TriggerPrice: 100.25, Quantity: 30, LTP: 100},
			{Symbol: "BAR", SkipReason: domain.SkipReasonNoQuote},
		},
	}

	results, err := manager.PlaceOrders(context.Background(), plan, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.PlacementSuccess, results[0].Status)
	assert.Equal(t, domain.PlacementSkipped, results[1].Status)
	assert.Equal(t, domain.SkipReasonNoQuote, results[1].Remarks)

	assert.Empty(t, broker.Placed, "dry run must not reach the broker")
	assert.Empty(t, journal.Saved, "dry run must not be journaled")
}

func TestPlaceOrdersPerOrderFailure(t *testing.T) {
	broker := &MockBroker{
		Quotes:   map[string]float64{},
		PlaceErr: map[string]error{"BAD": errors.New("rejected by risk checks")},
	}
	manager, journal := managerFixture(broker)

	plan := &domain.Plan{
		CreatedAt: time.Now(),
		Entries: []domain.PlanEntry{
			{Symbol: "BAD", Exchange: "NSE", OrderPrice: 50, TriggerPrice: 50.1, Quantity: 10, LTP: 52},
			{Symbol: "GOOD", Exchange: "NSE", OrderPrice: 100.35, TriggerPrice: 100.25, Quantity: 30, LTP: 100},
		},
	}

	results, err := manager.PlaceOrders(context.Background(), plan, false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, domain.PlacementFail, results[0].Status)
	assert.Contains(t, results[0].Remarks, "rejected")
	assert.Equal(t, domain.PlacementSuccess, results[1].Status)
	assert.NotEmpty(t, results[1].OrderID)

	require.Len(t, broker.Placed, 1)
	assert.Equal(t, "GOOD", broker.Placed[0].Symbol)
	assert.Equal(t, domain.SideBuy, broker.Placed[0].Side)
	assert.Len(t, journal.Saved, 2)
}

func TestPlaceOrdersNoPlan(t *testing.T) {
	broker := &MockBroker{Quotes: map[string]float64{}}
	manager, _ := managerFixture(broker)

	_, err := manager.PlaceOrders(context.Background(), nil, false)
	assert.ErrorIs(t, err, domain.ErrNoPlan)
}

func TestAdjustOrdersRewritesLowVariance(t *testing.T) {
	broker := &MockBroker{Quotes: map[string]float64{}}
	manager, _ := managerFixture(broker)

	analysis := []domain.OrderAnalysis{
		{OrderID: "low", Symbol: "LOW", Exchange: "NSE", TriggerPrice: 99, OrderPrice: 98.9, Quantity: 10, LTP: 100, VariancePct: 1.01},
		{OrderID: "high", Symbol: "HIGH", Exchange: "NSE", TriggerPrice: 90, OrderPrice: 89.9, Quantity: 5, LTP: 100, VariancePct: 11.11},
	}

	adjust := func(orderPrice, ltp float64) (float64, float64) {
		return orderPrice - 0.1, orderPrice
	}
	modified, err := manager.AdjustOrders(context.Background(), analysis, 3.0, adjust)
	require.NoError(t, err)
	require.Len(t, modified, 1)

	// Desired trigger realizes the 3% target: 100 / 1.03 = 97.09.
	assert.Equal(t, []string{"low"}, broker.Cancelled)
	require.Len(t, broker.Placed, 1)
	assert.Equal(t, "LOW", broker.Placed[0].Symbol)
	assert.InDelta(t, 97.09, broker.Placed[0].TriggerPrice, 1e-9)
	assert.InDelta(t, 96.99, broker.Placed[0].OrderPrice, 1e-9)
	assert.Equal(t, 10, broker.Placed[0].Quantity)
	assert.Equal(t, 100.0, broker.Placed[0].LastPrice)

	assert.InDelta(t, 3.0, modified[0].VariancePct, 1e-9)
}

func TestDeleteAboveVariance(t *testing.T) {
	broker := &MockBroker{Quotes: map[string]float64{}}
	manager, _ := managerFixture(broker)

	analysis := []domain.OrderAnalysis{
		{OrderID: "keep", Symbol: "KEEP", VariancePct: 5},
		{OrderID: "drop", Symbol: "DROP", VariancePct: 12},
	}

	deleted, err := manager.DeleteAboveVariance(context.Background(), analysis, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"DROP"}, deleted)
	assert.Equal(t, []string{"drop"}, broker.Cancelled)
}

func TestDeleteOrdersForSymbols(t *testing.T) {
	broker := &MockBroker{
		Orders: []domain.ConditionalOrder{
			activeBuy("o1", "FOO", 95, 94.9, 10),
			activeBuy("o2", "BAR", 50, 49.9, 5),
		},
		Quotes: map[string]float64{},
	}
	manager, _ := managerFixture(broker)

	deleted, err := manager.DeleteOrdersForSymbols(context.Background(), []string{"foo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"FOO"}, deleted)
	assert.Equal(t, []string{"o1"}, broker.Cancelled)
}
