package domain

import (
	"strings"
	"time"
)

// Holding is a read-only snapshot of a broker position.
type Holding struct {
	Symbol       string
	Exchange     string
	Quantity     int
	T1Quantity   int // unsettled T+1 quantity, still counts toward exposure
	AveragePrice float64
	LastPrice    float64
}

// TotalQuantity is the settled plus provisional quantity.
func (h Holding) TotalQuantity() int {
	return h.Quantity + h.T1Quantity
}

// InvestedAmount is the capital currently deployed in this holding.
func (h Holding) InvestedAmount() float64 {
	return float64(h.TotalQuantity()) * h.AveragePrice
}

// Trade is a completed fill reported by the broker.
type Trade struct {
	Symbol          string
	Exchange        string
	TransactionType Side
	Quantity        int
	Price           float64
	FilledAt        time.Time
}

// NormalizeSymbol strips broker suffix markers ("#" pledge marker, "-BE"
// series tag) and uppercases, so holdings, orders and entry-level rows key
// on the same symbol.
func NormalizeSymbol(symbol string) string {
	s := strings.ReplaceAll(symbol, "#", "")
	s = strings.TrimSuffix(s, "-BE")
	return strings.ToUpper(strings.TrimSpace(s))
}
