package domain

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "active"
	OrderStatusTriggered OrderStatus = "triggered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// ConditionalOrder is a broker-resident standing order that converts into a
// live limit order once the market crosses the trigger price. The broker owns
// it; this core only reads snapshots and requests mutations.
type ConditionalOrder struct {
	ID           string
	Symbol       string
	Exchange     string
	Side         Side
	TriggerPrice float64
	OrderPrice   float64
	Quantity     int
	Status       OrderStatus
	CreatedAt    time.Time
}

func (o ConditionalOrder) IsActiveBuy() bool {
	return o.Status == OrderStatusActive && o.Side == SideBuy
}

// ConditionalOrderRequest is the placement payload handed to the broker.
type ConditionalOrderRequest struct {
	Symbol       string
	Exchange     string
	Side         Side
	TriggerPrice float64
	OrderPrice   float64
	Quantity     int
	LastPrice    float64
}
