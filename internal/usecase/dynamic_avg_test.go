package usecase_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/usecase"
)

func dynamicAvgFixture(broker *MockBroker, rows []domain.EntryLevelRow) *usecase.DynamicAveragingPlanner {
	session, _ := newTestSession(broker, &MockEntryRepo{Rows: rows})
	return usecase.NewDynamicAveragingPlanner(session, zap.NewNop())
}

func daRow(symbol string, legs int) domain.EntryLevelRow {
	return domain.EntryLevelRow{
		Symbol:    symbol,
		Allocated: 30000,
		Entry1:    100,
		Entry2:    90,
		Entry3:    80,
		DAEnabled: true,
		DALegs:    legs,
		DABuyback: [3]float64{5.0, math.NaN(), math.NaN()},
	}
}

func TestDynamicAveragingLegs(t *testing.T) {
	rows := []domain.EntryLevelRow{daRow("FOO", 2)}
	broker := &MockBroker{
		// 90 shares at 100: invested 9000, level 1 (10k ceiling), 1000 left.
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 90, AveragePrice: 100}},
		Quotes:   map[string]float64{key("NSE", "FOO"): 94},
	}
	planner := dynamicAvgFixture(broker, rows)

	ctx := context.Background()
	candidates, err := planner.IdentifyCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	planned, skipped, err := planner.GeneratePlan(ctx, candidates)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, planned, 2)

	// 1000 left at LTP 94 buys 10 shares, split over two legs. The trigger
	// sits 1.5% (0.3 x 5% buyback) above the market.
	for i, o := range planned {
		assert.Equal(t, "FOO", o.Symbol)
		assert.Equal(t, 5, o.Quantity)
		assert.Equal(t, "E1", o.Level)
		assert.InDelta(t, 95.30, o.TriggerPrice, 1e-9)
		assert.InDelta(t, 95.40, o.OrderPrice, 1e-9)
		assert.Equal(t, []string{"DA1", "DA2"}[i], o.Leg)
	}
}

func TestDynamicAveragingRequiresBuybackDrop(t *testing.T) {
	rows := []domain.EntryLevelRow{daRow("FOO", 2)}
	broker := &MockBroker{
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 90, AveragePrice: 100}},
		// 96 is above the 95.00 buyback threshold (5% under avg 100).
		Quotes: map[string]float64{key("NSE", "FOO"): 96},
	}
	planner := dynamicAvgFixture(broker, rows)

	candidates, err := planner.IdentifyCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, skipped, err := planner.GeneratePlan(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "buyback threshold")
}

func TestDynamicAveragingRemainderGuard(t *testing.T) {
	rows := []domain.EntryLevelRow{daRow("FOO", 2)}
	broker := &MockBroker{
		// Invested 1000: 9000 of the first 10k level remains, which is more
		// than 75% of a full leg and therefore not a top-up.
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 10, AveragePrice: 100}},
		Quotes:   map[string]float64{key("NSE", "FOO"): 94},
	}
	planner := dynamicAvgFixture(broker, rows)

	ctx := context.Background()
	candidates, err := planner.IdentifyCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	planned, skipped, err := planner.GeneratePlan(ctx, candidates)
	require.NoError(t, err)
	assert.Empty(t, planned)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "exceeds")
}

func TestDynamicAveragingNeedsEnabledRow(t *testing.T) {
	disabled := daRow("FOO", 2)
	disabled.DAEnabled = false
	rows := []domain.EntryLevelRow{disabled}
	broker := &MockBroker{
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 90, AveragePrice: 100}},
		Quotes:   map[string]float64{key("NSE", "FOO"): 94},
	}
	planner := dynamicAvgFixture(broker, rows)

	candidates, err := planner.IdentifyCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, skipped, err := planner.GeneratePlan(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "dynamic-averaging")
}

func TestDynamicAveragingSkipsSameDayFill(t *testing.T) {
	rows := []domain.EntryLevelRow{daRow("FOO", 2)}
	broker := &MockBroker{
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 90, AveragePrice: 100}},
		Fills:    []domain.Trade{{Symbol: "FOO", TransactionType: domain.SideBuy, Quantity: 10, Price: 95}},
		Quotes:   map[string]float64{key("NSE", "FOO"): 94},
	}
	planner := dynamicAvgFixture(broker, rows)

	candidates, err := planner.IdentifyCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, skipped, err := planner.GeneratePlan(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, domain.SkipReasonTradeCompletedToday, skipped[0].Reason)
}

func TestDynamicAveragingIgnoresSymbolsNotHeld(t *testing.T) {
	// A configured row without a holding is simply out of scope for
	// averaging; it is not an error and not a skip.
	rows := []domain.EntryLevelRow{daRow("FOO", 2)}
	broker := &MockBroker{Quotes: map[string]float64{key("NSE", "FOO"): 94}}
	planner := dynamicAvgFixture(broker, rows)

	candidates, err := planner.IdentifyCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, skipped, err := planner.GeneratePlan(context.Background(), candidates)
	require.NoError(t, err)
	assert.Empty(t, skipped)
}
