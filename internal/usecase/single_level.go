package usecase

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/nitink/gtt_planner/internal/domain"
	"github.com/nitink/gtt_planner/internal/metrics"
)

// SingleLevelPlanner splits the allocation into three equal legs at up to
// three configured entry prices. The next leg is selected purely by comparing
// held quantity against coarse thresholds (0, 1/3 and 2/3 of the leg
// quantity) — simpler and coarser than the multi-level variant, ignoring
// actual invested capital.
type SingleLevelPlanner struct {
	session *SessionCache
	logger  *zap.Logger
	skips   *skipRecorder
}

func NewSingleLevelPlanner(session *SessionCache, logger *zap.Logger) *SingleLevelPlanner {
	return &SingleLevelPlanner{
		session: session,
		logger:  logger,
		skips:   newSkipRecorder(StrategySingleLevel, logger),
	}
}

func (p *SingleLevelPlanner) Strategy() string { return StrategySingleLevel }

func (p *SingleLevelPlanner) IdentifyCandidates(ctx context.Context) ([]domain.Candidate, error) {
	p.skips = newSkipRecorder(StrategySingleLevel, p.logger)

	rows, err := p.session.EntryLevels(ctx)
	if err != nil {
		return nil, err
	}
	activeBuys, err := p.session.ActiveBuySymbols(ctx)
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
			Symbol:   symbol,
			Exchange: exchange,
			LTP:      ltp,
			Row:      row,
		})
	}
	return candidates, nil
}

func (p *SingleLevelPlanner) GeneratePlan(ctx context.Context, candidates []domain.Candidate) ([]domain.PlannedOrder, []domain.SkippedOrder, error) {
	holdings, err := p.session.Holdings(ctx)
	if err != nil {
		return nil, nil, err
	}
	held := holdingsBySymbol(holdings)

	var planned []domain.PlannedOrder
	for _, c := range candidates {
		legAllocated := c.Row.Allocated / 3
		qty := int(legAllocated / c.LTP)
		if qty == 0 {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonZeroQuantity, c.LTP, "")
			continue
		}

		heldQty := 0
		if h, ok := held[c.Symbol]; ok {
			heldQty = h.TotalQuantity()
		}
		if heldQty >= qty {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonAllocationExhausted, c.LTP, "")
			continue
		}

		level, entryPrice, ok := selectByHeldQuantity(c.Row, heldQty, qty)
		if !ok {
			p.skips.add(c.Symbol, c.Exchange, domain.SkipReasonAllocationExhausted, c.LTP, "")
			continue
		}

		orderPrice := entryPrice
		if entryPrice > c.LTP {
			orderPrice = math.Min(entryPrice, roundN(c.LTP*(1+orderPriceBufferPct), 2))
		}
		price, trigger := AdjustTriggerAndOrderPrice(orderPrice, c.LTP)

		metrics.IncPlanned(StrategySingleLevel)
		planned = append(planned, domain.PlannedOrder{
			Symbol:       c.Symbol,
			Exchange:     c.Exchange,
			OrderPrice:   price,
			TriggerPrice: trigger,
			Quantity:     qty,
			LTP:          roundN(c.LTP, 2),
			Level:        level,
		})
	}
	return planned, p.skips.list(), nil
}

// selectByHeldQuantity picks the next leg from coarse held-quantity
// thresholds: nothing held yet means E1, under a third of a leg means E2,
// under two thirds means E3.
func selectByHeldQuantity(row domain.EntryLevelRow, heldQty, legQty int) (string, float64, bool) {
	switch {
	case heldQty == 0 && domain.ValidPrice(row.Entry1):
		return "E1", row.Entry1, true
	case heldQty <= legQty/3 && domain.ValidPrice(row.Entry2):
		return "E2", row.Entry2, true
	case heldQty <= (2*legQty)/3 && domain.ValidPrice(row.Entry3):
		return "E3", row.Entry3, true
	default:
		return "", 0, false
	}
}
