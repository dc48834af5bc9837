package domain

import (
	"math"
	"sort"
	"strings"
)

// EntryLevelRow is one configured capital-allocation schedule for a symbol:
// up to three entry prices plus dynamic-averaging parameters. Rows are loaded
// fresh each refresh cycle and are immutable within a planning pass.
type EntryLevelRow struct {
	Symbol    string
	Exchange  string
	Allocated float64
	// Entry prices use NaN for an empty/invalid column, never zero.
	Entry1 float64
	Entry2 float64
	Entry3 float64

	DAEnabled bool
	DALegs    int
	// Buyback percentage per entry level, e.g. 5 means "average down once the
	// price is 5% under the holding's average price".
	DABuyback [3]float64

	Quality string // pass-through metadata
}

// ValidPrice reports whether p is a usable price (positive, not NaN/Inf).
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// HasValidAllocation reports whether the row carries a positive numeric
// allocation.
func (r EntryLevelRow) HasValidAllocation() bool {
	return !math.IsNaN(r.Allocated) && r.Allocated > 0
}

// EntryPrices returns the configured entry prices in order, invalid columns
// filtered out.
func (r EntryLevelRow) EntryPrices() []float64 {
	var prices []float64
	for _, p := range []float64{r.Entry1, r.Entry2, r.Entry3} {
		if ValidPrice(p) {
			prices = append(prices, p)
		}
	}
	return prices
}

// NumEntries is the count of valid entry prices.
func (r EntryLevelRow) NumEntries() int {
	return len(r.EntryPrices())
}

// BuybackPct returns the buyback percentage for the given level index,
// falling back to 5% when the column is unset.
func (r EntryLevelRow) BuybackPct(level int) float64 {
	if level >= 0 && level < len(r.DABuyback) && r.DABuyback[level] > 0 {
		return r.DABuyback[level]
	}
	return 5.0
}

// DuplicateEntrySymbols returns each symbol that appears on more than one
// row, exactly once, sorted. Duplicates signal a config-entry error.
func DuplicateEntrySymbols(rows []EntryLevelRow) []string {
	counts := make(map[string]int)
	for _, r := range rows {
		sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
		if sym == "" {
			continue
		}
		counts[sym]++
	}
	var dups []string
	for sym, n := range counts {
		if n > 1 {
			dups = append(dups, sym)
		}
	}
	sort.Strings(dups)
	return dups
}
