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
	// An adjusted trigger farther than this from the live price means the
	// configured entry is no longer realistic.
	ltpTriggerVariancePct = 0.15
	// Cap applied to the limit price when the entry sits above market.
	orderPriceBufferPct = 0.025
)

// MultiLevelPlanner deploys capital across up to three entry levels by
// tracking invested amount against cumulative capital ceilings per level
// (ceiling_i = i x per-leg allocation, last level = full allocation).
//
// Level policy: among valid levels whose ceiling is unreached, those with an
// entry price at or above the current price are already actionable and the
// cheapest of them is taken; otherwise the earliest unreached level becomes a
// future-triggering order.
type MultiLevelPlanner struct {
	session *SessionCache
	logger  *zap.Logger
	skips   *skipRecorder
}

func NewMultiLevelPlanner(session *SessionCache, logger *zap.Logger) *MultiLevelPlanner {
	return &MultiLevelPlanner{
		session: session,
		logger:  logger,
		skips:   newSkipRecorder(StrategyMultiLevel, logger),
	}
}

func (p *MultiLevelPlanner) Strategy() string { return StrategyMultiLevel }

// IdentifyCandidates applies the preconditions in fixed order: existing
// order, same-day fill, allocation validity, entry-price validity, live
// price. The first failure records the skip and ends the symbol's evaluation.
func (p *MultiLevelPlanner) IdentifyCandidates(ctx context.Context) ([]domain.Candidate, error) {
	p.skips = newSkipRecorder(StrategyMultiLevel, p.logger)

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

	var candidates []domain.Candidate
	for _, row := range rows {
		symbol := domain.NormalizeSymbol(row.Symbol)
		if symbol == "" {
			continue
		}
		exchange := row.Exchange
		if exchange == "" {
			exchange = "NSE"
		}

		if activeBuys[symbol] {
			p.skips.add(symbol, exchange, domain.SkipReasonExistingOrder, 0, "")
			continue
		}
		if fills[symbol] {
			p.skips.add(symbol, exchange, domain.SkipReasonTradeCompletedToday, 0, "")
			continue
		}
		if !row.HasValidAllocation() {
			p.skips.add(symbol, exchange, domain.SkipReasonInvalidAllocation, 0, "")
			continue
		}
		if row.NumEntries() == 0 {
			p.skips.add(symbol, exchange, domain.SkipReasonNoEntryLevels, 0, "")
			continue
		}
		ltp, err := quotes.Price(exchange, symbol)
		if err != nil {
			p.skips.add(symbol, exchange, domain.SkipReasonNoQuote, 0, "")
			continue
		}

		candidates = append(candidates, domain.Candidate{
			Symbol:     symbol,
			Exchange:   exchange,
			LTP:        ltp,
			Row:        row,
			NumEntries: row.NumEntries(),
		})
	}
	return candidates, nil
}

type entryLevel struct {
	tag     string
	price   float64
	ceiling float64
}

// GeneratePlan sizes one order per candidate against its capital ceilings.
// The plan never lets invested + proposed exceed the allocated capital.
func (p *MultiLevelPlanner) GeneratePlan(ctx context.Context, candidates []domain.Candidate) ([]domain.PlannedOrder, []domain.SkippedOrder, error) {
	holdings, err := p.session.Holdings(ctx)
	if err != nil {
		return nil, nil, err
	}
	held := holdingsBySymbol(holdings)

	var planned []domain.PlannedOrder
	for _, c := range candidates {
		allocated := c.Row.Allocated
		invested := 0.0
		if h, ok := held[c.Symbol]; ok {
			invested = h.InvestedAmount()
		}

		if invested >= allocated {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonAllocationExhausted, c.LTP, "")
			continue
		}

		levels := buildEntryLevels(c.Row)
		level, ok := selectLevel(levels, invested, c.LTP)
		if !ok {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonNoLevelQualified, c.LTP, "")
			continue
		}

		amount := math.Min(level.ceiling-invested, allocated-invested)
		qty := int(amount / level.price)
		if qty <= 0 {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonZeroQuantity, c.LTP, level.tag)
			continue
		}

		orderPrice := level.price
		if level.price > c.LTP {
			orderPrice = math.Min(level.price, roundN(c.LTP*(1+orderPriceBufferPct), 2))
		}
		price, trigger := AdjustTriggerAndOrderPrice(orderPrice, c.LTP)

		variance := math.Abs(c.LTP-trigger) / trigger
		if variance > ltpTriggerVariancePct {
			reason := fmt.Sprintf("LTP-trigger variance of %.1f%% exceeds threshold of %.1f%%",
				variance*100, ltpTriggerVariancePct*100)
			p.skips.add(c.Symbol, c.Exchange, reason, c.LTP, level.tag)
			continue
		}

		metrics.IncPlanned(StrategyMultiLevel)
		planned = append(planned, domain.PlannedOrder{
			Symbol:       c.Symbol,
			Exchange:     c.Exchange,
			OrderPrice:   price,
			TriggerPrice: trigger,
			Quantity:     qty,
			LTP:          roundN(c.LTP, 2),
			Level:        level.tag,
		})
	}
	return planned, p.skips.list(), nil
}

// buildEntryLevels keeps the column tags (E1..E3) and assigns cumulative
// ceilings by position among the valid columns; the last valid level always
// carries the full allocation.
func buildEntryLevels(row domain.EntryLevelRow) []entryLevel {
	type column struct {
		tag   string
		price float64
	}
	var valid []column
	for i, price := range []float64{row.Entry1, row.Entry2, row.Entry3} {
		if domain.ValidPrice(price) {
			valid = append(valid, column{tag: fmt.Sprintf("E%d", i+1), price: price})
		}
	}

	perLeg := row.Allocated / float64(len(valid))
	levels := make([]entryLevel, len(valid))
	for i, col := range valid {
		ceiling := perLeg * float64(i+1)
		if i == len(valid)-1 {
			ceiling = row.Allocated
		}
		levels[i] = entryLevel{tag: col.tag, price: col.price, ceiling: ceiling}
	}
	return levels
}

func selectLevel(levels []entryLevel, invested, ltp float64) (entryLevel, bool) {
	var eligible []entryLevel
	for _, l := range levels {
		if invested < l.ceiling {
			eligible = append(eligible, l)
		}
	}
	if len(eligible) == 0 {
		return entryLevel{}, false
	}

	// Cheapest already-actionable level wins; otherwise the earliest
	// unreached level becomes a future-triggering order.
	best := entryLevel{}
	found := false
	for _, l := range eligible {
		if l.price >= ltp && (!found || l.price < best.price) {
			best = l
			found = true
		}
	}
	if found {
		return best, true
	}
	return eligible[0], true
}
