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

func singleLevelFixture(broker *MockBroker, rows []domain.EntryLevelRow) *usecase.SingleLevelPlanner {
	session, _ := newTestSession(broker, &MockEntryRepo{Rows: rows})
	return usecase.NewSingleLevelPlanner(session, zap.NewNop())
}

func TestSingleLevelFirstEntry(t *testing.T) {
	rows := []domain.EntryLevelRow{{
		Symbol:    "FOO",
		Allocated: 9000,
		Entry1:    100,
		Entry2:    95,
		Entry3:    math.NaN(),
	}}
	broker := &MockBroker{Quotes: map[string]float64{key("NSE", "FOO"): 100}}
	planner := singleLevelFixture(broker, rows)

	ctx := context.Background()
	candidates, err := planner.IdentifyCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	planned, skipped, err := planner.GeneratePlan(ctx, candidates)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Empty(t, skipped)

	o := planned[0]
	assert.Equal(t, "E1", o.Level)
	assert.Equal(t, 30, o.Quantity) // 9000/3 legs at ~100
	assert.InDelta(t, 100.25, o.TriggerPrice, 1e-9)
	assert.InDelta(t, 100.35, o.OrderPrice, 1e-9)
}

func TestSingleLevelSecondEntryFromHeldQuantity(t *testing.T) {
	rows := []domain.EntryLevelRow{{
		Symbol:    "FOO",
		Allocated: 9000,
		Entry1:    100,
		Entry2:    95,
		Entry3:    90,
	}}
	broker := &MockBroker{
		Quotes:   map[string]float64{key("NSE", "FOO"): 100},
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 5, AveragePrice: 100}},
	}
	planner := singleLevelFixture(broker, rows)

	ctx := context.Background()
	candidates, err := planner.IdentifyCandidates(ctx)
	require.NoError(t, err)

	planned, _, err := planner.GeneratePlan(ctx, candidates)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	// 5 held is within a third of the 30-share leg, so the second entry fires.
	assert.Equal(t, "E2", planned[0].Level)
}

func TestSingleLevelExhaustedWhenFullLegHeld(t *testing.T) {
	rows := []domain.EntryLevelRow{{
		Symbol:    "FOO",
		Allocated: 9000,
		Entry1:    100,
		Entry2:    math.NaN(),
		Entry3:    math.NaN(),
	}}
	broker := &MockBroker{
		Quotes:   map[string]float64{key("NSE", "FOO"): 100},
		Holdings: []domain.Holding{{Symbol: "FOO", Exchange: "NSE", Quantity: 30, AveragePrice: 100}},
	}
	planner := singleLevelFixture(broker, rows)

	ctx := context.Background()
	candidates, err := planner.IdentifyCandidates(ctx)
	require.NoError(t, err)

	planned, skipped, err := planner.GeneratePlan(ctx, candidates)
	require.NoError(t, err)
	assert.Empty(t, planned)
	require.Len(t, skipped, 1)
	assert.Equal(t, domain.SkipReasonAllocationExhausted, skipped[0].Reason)
}

func TestSingleLevelZeroQuantity(t *testing.T) {
	rows := []domain.EntryLevelRow{{
		Symbol:    "FOO",
		Allocated: 200, // one leg is 66.67, under one share at LTP 100
		Entry1:    100,
		Entry2:    math.NaN(),
		Entry3:    math.NaN(),
	}}
	broker := &MockBroker{Quotes: map[string]float64{key("NSE", "FOO"): 100}}
	planner := singleLevelFixture(broker, rows)

	ctx := context.Background()
	candidates, err := planner.IdentifyCandidates(ctx)
	require.NoError(t, err)

	planned, skipped, err := planner.GeneratePlan(ctx, candidates)
	require.NoError(t, err)
	assert.Empty(t, planned)
	require.Len(t, skipped, 1)
	assert.Equal(t, domain.SkipReasonZeroQuantity, skipped[0].Reason)
}

func TestSingleLevelPreconditionSkips(t *testing.T) {
	nan := math.NaN()
	rows := []domain.EntryLevelRow{
		{Symbol: "ORD", Allocated: 9000, Entry1: 100},
		{Symbol: "ALLOC", Allocated: nan, Entry1: 100},
		{Symbol: "ENTRIES", Allocated: 9000, Entry1: nan, Entry2: nan, Entry3: nan},
		{Symbol: "QUOTE", Allocated: 9000, Entry1: 100},
	}
	broker := &MockBroker{
		Orders: []domain.ConditionalOrder{activeBuy("o1", "ORD", 95, 94.9, 1)},
		Quotes: map[string]float64{
			key("NSE", "ORD"):     100,
			key("NSE", "ALLOC"):   100,
			key("NSE", "ENTRIES"): 100,
		},
	}
	planner := singleLevelFixture(broker, rows)

	candidates, err := planner.IdentifyCandidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, skipped, err := planner.GeneratePlan(context.Background(), candidates)
	require.NoError(t, err)

	reasons := make(map[string]string)
	for _, s := range skipped {
		reasons[s.Symbol] = s.Reason
	}
	assert.Equal(t, domain.SkipReasonExistingOrder, reasons["ORD"])
	assert.Equal(t, domain.SkipReasonInvalidAllocation, reasons["ALLOC"])
	assert.Equal(t, domain.SkipReasonNoEntryLevels, reasons["ENTRIES"])
	assert.Equal(t, domain.SkipReasonNoQuote, reasons["QUOTE"])
}
