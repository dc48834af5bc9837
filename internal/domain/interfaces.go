package domain

import "context"

// Broker is the abstract brokerage the core plans against. Implementations
// own authentication, wire formats and retries below the one-refresh quote
// retry handled by the quote cache.
type Broker interface {
	GetHoldings(ctx context.Context) ([]Holding, error)
	GetConditionalOrders(ctx context.Context) ([]ConditionalOrder, error)
	PlaceConditionalOrder(ctx context.Context, req ConditionalOrderRequest) (string, error)
	CancelConditionalOrder(ctx context.Context, id string) error
	// GetQuotes fetches last-traded prices for a batch of broker instrument
	// keys. Returns ErrUnauthorized when the session token has expired.
	GetQuotes(ctx context.Context, instrumentKeys []string) (map[string]float64, error)
	GetFillsForToday(ctx context.Context) ([]Trade, error)
}

// InstrumentResolver maps an (exchange, symbol) pair to the broker-specific
// instrument key used by quote fetches.
type InstrumentResolver interface {
	Resolve(exchange, symbol string) (string, error)
}

// TokenSource refreshes the broker session credential. The quote cache calls
// it at most once per failed batch.
type TokenSource interface {
	Refresh(ctx context.Context) error
}

// EntryLevelRepository is the source of the capital-allocation schedule.
type EntryLevelRepository interface {
	ListEntryLevels(ctx context.Context) ([]EntryLevelRow, error)
}

// PlanRepository persists the single plan slot. Write replaces any prior
// unconsumed plan entirely; the last writer wins.
type PlanRepository interface {
	WritePlan(ctx context.Context, plan *Plan) error
	// ReadPlan returns nil when no plan is persisted.
	ReadPlan(ctx context.Context) (*Plan, error)
	DeletePlan(ctx context.Context) error
}

// PlacementJournal records placement outcomes for later inspection.
type PlacementJournal interface {
	SavePlacement(ctx context.Context, result PlacementResult) error
	// ListPlacements returns the most recent journal rows, newest first.
	ListPlacements(ctx context.Context, limit int) ([]PlacementResult, error)
}
