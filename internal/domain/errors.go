package domain

import "errors"

var (
	// ErrStaleQuoteCache guards direct price reads past the TTL. The normal
	// access path refreshes first, so hitting this indicates a caller bug.
	ErrStaleQuoteCache = errors.New("quote cache is stale")

	// ErrQuoteNotFound means the symbol was never resolved or fetched in the
	// last refresh. Absence of a quote is "no data", not zero.
	ErrQuoteNotFound = errors.New("no quote for symbol")

	// ErrUnauthorized is returned by brokers when the session token expired.
	ErrUnauthorized = errors.New("broker session unauthorized")

	// ErrNoPlan is returned by placement when no unconsumed plan exists.
	ErrNoPlan = errors.New("no persisted plan")
)

// Skip reasons shared across planner variants. Variance and threshold skips
// carry formatted messages instead.
const (
	SkipReasonExistingOrder       = "conditional BUY order already exists for symbol"
	SkipReasonInvalidAllocation   = "invalid or zero allocation"
	SkipReasonNoEntryLevels       = "no valid entry levels"
	SkipReasonNoQuote             = "no quote available"
	SkipReasonAllocationExhausted = "allocation exhausted"
	SkipReasonZeroQuantity        = "computed quantity is zero"
	SkipReasonNoLevelQualified    = "holding does not qualify for any entry level"
	SkipReasonTradeCompletedToday = "BUY trade already completed today"
)
