package domain

import "time"

// Candidate is a symbol that survived a planner's preconditions, plus the
// derived fields the planner needs to size an order. Variant-specific fields
// are only populated by the variant that uses them.
type Candidate struct {
	Symbol   string
	Exchange string
	LTP      float64
	Row      EntryLevelRow

	// multi-level
	NumEntries int

	// dynamic averaging
	LevelIndex       int
	InvestedAmount   float64
	AveragePrice     float64
	CumulativeAllocs []float64
	Legs             int
	TriggerOffsetPct float64
}

// PlannedOrder is a proposed conditional buy order.
type PlannedOrder struct {
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	OrderPrice   float64 `json:"price"`
	TriggerPrice float64 `json:"trigger"`
	Quantity     int     `json:"qty"`
	LTP          float64 `json:"ltp"`
	Level        string  `json:"entry"`         // E1..E3
	Leg          string  `json:"leg,omitempty"` // DA1..DAn for averaging legs
}

// SkippedOrder explains why a considered symbol produced no order.
// Every evaluated symbol yields exactly one PlannedOrder or one SkippedOrder.
type SkippedOrder struct {
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange,omitempty"`
	Reason   string  `json:"skip_reason"`
	LTP      float64 `json:"ltp,omitempty"`
	Level    string  `json:"entry,omitempty"`
}

// PlanEntry is one persisted plan row. Skip-tagged entries flow through
// placement unchanged and come back as "Skipped" results.
type PlanEntry struct {
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	OrderPrice   float64 `json:"price"`
	TriggerPrice float64 `json:"trigger"`
	Quantity     int     `json:"qty"`
	LTP          float64 `json:"ltp"`
	Level        string  `json:"entry,omitempty"`
	Leg          string  `json:"leg,omitempty"`
	SkipReason   string  `json:"skip_reason,omitempty"`
}

// Plan is the ephemeral output of one planning pass: written once, consumed
// once by placement, then deleted. The persisted slot is last-write-wins.
type Plan struct {
	CreatedAt time.Time   `json:"created_at"`
	Entries   []PlanEntry `json:"entries"`
}

// NewPlan merges planner output into a persistable plan.
func NewPlan(planned []PlannedOrder, skipped []SkippedOrder) *Plan {
	p := &Plan{CreatedAt: time.Now()}
	for _, o := range planned {
		p.Entries = append(p.Entries, PlanEntry{
			Symbol:       o.Symbol,
			Exchange:     o.Exchange,
			OrderPrice:   o.OrderPrice,
			TriggerPrice: o.TriggerPrice,
			Quantity:     o.Quantity,
			LTP:          o.LTP,
			Level:        o.Level,
			Leg:          o.Leg,
		})
	}
	for _, s := range skipped {
		p.Entries = append(p.Entries, PlanEntry{
			Symbol:     s.Symbol,
			Exchange:   s.Exchange,
			LTP:        s.LTP,
			Level:      s.Level,
			SkipReason: s.Reason,
		})
	}
	return p
}

const (
	PlacementSuccess = "Success"
	PlacementFail    = "Fail"
	PlacementSkipped = "Skipped"
)

// PlacementResult is the per-order outcome of a placement batch.
type PlacementResult struct {
	Symbol       string  `json:"symbol"`
	OrderID      string  `json:"order_id,omitempty"`
	OrderPrice   float64 `json:"price"`
	TriggerPrice float64 `json:"trigger"`
	Quantity     int     `json:"qty"`
	Status       string  `json:"status"`
	Remarks      string  `json:"remarks,omitempty"`
}

// OrderAnalysis is one standing BUY conditional order measured against the
// current market price.
type OrderAnalysis struct {
	OrderID      string  `json:"order_id"`
	Symbol       string  `json:"symbol"`
	Exchange     string  `json:"exchange"`
	TriggerPrice float64 `json:"trigger"`
	OrderPrice   float64 `json:"price"`
	Quantity     int     `json:"qty"`
	LTP          float64 `json:"ltp"`
	VariancePct  float64 `json:"variance_pct"`
	BuyAmount    float64 `json:"buy_amount"`
}
