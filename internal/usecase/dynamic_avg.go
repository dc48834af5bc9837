package usecase

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
)

const (
	// Trigger offset as a fraction of the level's buyback percentage.
	daTriggerOffsetFactor = 0.3
	// A remainder above this fraction of one leg's allocation is a near-full
	// order disguised as a top-up, not an averaging leg.
	daMaxRemainderFraction = 0.75
)

// DynamicAveragingPlanner tops up symbols already held once the price drops
// below a level-specific buyback threshold, splitting the level's unfilled
// remainder into N equal future-triggering legs just above the market.
type DynamicAveragingPlanner struct {
	session *SessionCache
	logger  *zap.Logger
	skips   *skipRecorder
}

func NewDynamicAveragingPlanner(session *SessionCache, logger *zap.Logger) *DynamicAveragingPlanner {
	return &DynamicAveragingPlanner{
		session: session,
		logger:  logger,
		skips:   newSkipRecorder(StrategyDynamicAveraging, logger),
	}
}

func (p *DynamicAveragingPlanner) Strategy() string { return StrategyDynamicAveraging }

// IdentifyCandidates walks current holdings, not the entry config: dynamic
// averaging only ever adds to an existing position.
func (p *DynamicAveragingPlanner) IdentifyCandidates(ctx context.Context) ([]domain.Candidate, error) {
	p.skips = newSkipRecorder(StrategyDynamicAveraging, p.logger)

	holdings, err := p.session.Holdings(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := p.session.EntryLevels(ctx)
	if err != nil {
		return nil, err
	}
	activeBuys, err := p.session.ActiveBuySymbols(ctx)
	if err != nil {
		return nil, err
	}
	fills, err := buyFillSymbols(ctx, p.session.Broker())
	if err != nil {
		return nil, err
	}
	quotes, err := p.session.Quotes(ctx)
	if err != nil {
		return nil, err
	}

	rowsBySymbol := make(map[string]domain.EntryLevelRow, len(rows))
	for _, r := range rows {
		rowsBySymbol[domain.NormalizeSymbol(r.Symbol)] = r
	}

	var candidates []domain.Candidate
	for _, holding := range holdings {
		symbol := domain.NormalizeSymbol(holding.Symbol)

		if activeBuys[symbol] {
			p.skips.add(symbol, holding.Exchange, domain.SkipReasonExistingOrder, 0, "")
			continue
		}
		if fills[symbol] {
			p.skips.add(symbol, holding.Exchange, domain.SkipReasonTradeCompletedToday, 0, "")
			continue
		}

		row, ok := rowsBySymbol[symbol]
		entryPrices := row.EntryPrices()
		if !ok || !row.DAEnabled || len(entryPrices) == 0 {
			p.skips.add(symbol, holding.Exchange, "no valid dynamic-averaging row in entry levels", 0, "")
			continue
		}

		exchange := row.Exchange
		if exchange == "" {
			exchange = "NSE"
		}
		ltp, err := quotes.Price(exchange, symbol)
		if err != nil || ltp <= 0 {
			p.skips.add(symbol, exchange, domain.SkipReasonNoQuote, 0, "")
			continue
		}

		allocated := row.Allocated
		if !row.HasValidAllocation() || allocated < ltp {
			p.skips.add(symbol, exchange,
				fmt.Sprintf("allocation %.2f below LTP %.2f", allocated, ltp), ltp, "")
			continue
		}

		invested := holding.InvestedAmount()
		if invested > allocated {
			p.skips.add(symbol, exchange,
				fmt.Sprintf("invested amount %.2f exceeds allocation %.2f", invested, allocated), ltp, "")
			continue
		}

		// Bucket the invested amount into its cumulative-allocation level.
		perLeg := allocated / float64(len(entryPrices))
		cumulative := make([]float64, len(entryPrices))
		for i := range cumulative {
			cumulative[i] = perLeg * float64(i+1)
		}
		level := -1
		for i, ceiling := range cumulative {
			if invested <= ceiling {
				level = i
				break
			}
		}
		if level < 0 {
			p.skips.add(symbol, exchange, domain.SkipReasonNoLevelQualified, ltp, "")
			continue
		}

		buyback := row.BuybackPct(level)
		threshold := holding.AveragePrice * (1 - buyback/100)
		if ltp > threshold {
			p.skips.add(symbol, exchange,
				fmt.Sprintf("LTP %.2f not below buyback threshold %.2f", ltp, threshold), ltp, "")
			continue
		}

		legs := row.DALegs
		if legs <= 0 {
			legs = 1
		}
		candidates = append(candidates, domain.Candidate{
			Symbol:           symbol,
			Exchange:         exchange,
			LTP:              ltp,
			Row:              row,
			LevelIndex:       level,
			InvestedAmount:   invested,
			AveragePrice:     holding.AveragePrice,
			CumulativeAllocs: cumulative,
			Legs:             legs,
			TriggerOffsetPct: buyback * daTriggerOffsetFactor,
		})
	}
	return candidates, nil
}

// GeneratePlan splits each candidate's unfilled level remainder into equal
// legs triggered slightly above the market on the way back up.
func (p *DynamicAveragingPlanner) GeneratePlan(ctx context.Context, candidates []domain.Candidate) ([]domain.PlannedOrder, []domain.SkippedOrder, error) {
	var planned []domain.PlannedOrder
	for _, c := range candidates {
		target := c.CumulativeAllocs[c.LevelIndex]
		amount := target - c.InvestedAmount
		legAllocation := c.CumulativeAllocs[0]
		levelTag := fmt.Sprintf("E%d", c.LevelIndex+1)

		if amount > legAllocation*daMaxRemainderFraction {
			p.skips.add(c.Symbol, c.Exchange,
				fmt.Sprintf("remaining amount %.2f exceeds %.0f%% of one leg's allocation",
					amount, daMaxRemainderFraction*100), c.LTP, levelTag)
			continue
		}
		if amount <= 0 {
			p.skips.add(c.Symbol, c.Exchange, "no amount left to invest for this level", c.LTP, levelTag)
			continue
		}

		remainingQty := int(math.Floor(amount / c.LTP))
		if remainingQty <= 0 {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonZeroQuantity, c.LTP, levelTag)
			continue
		}
		legQty := remainingQty / c.Legs
		if legQty <= 0 {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonZeroQuantity, c.LTP, levelTag)
			continue
		}

		desired := roundN(c.LTP*(1+c.TriggerOffsetPct/100), 2)
		price, trigger := AdjustTriggerAndOrderPrice(desired, c.LTP)

		for leg := 1; leg <= c.Legs; leg++ {
			metrics.IncPlanned(StrategyDynamicAveraging)
			planned = append(planned, domain.PlannedOrder{
				Symbol:       c.Symbol,
				Exchange:     c.Exchange,
				OrderPrice:   price,
				TriggerPrice: trigger,
				Quantity:     legQty,
				LTP:          roundN(c.LTP, 2),
				Level:        levelTag,
				Leg:          fmt.Sprintf("DA%d", leg),
			})
		}
	}
	return planned, p.skips.list(), nil
}
