package usecase

import "math"

// Brokers reject conditional orders whose trigger sits too close to the live
// price or to the limit price. These margins keep every generated pair
// acceptable without a submit-and-retry round trip.
const (
	// Minimum distance between trigger and last traded price, as a fraction
	// of the last traded price.
	ltpTriggerDiff = 0.0026
	// Exact distance kept between the limit price and its trigger.
	orderTriggerDiff = 0.001
	// Hard floor on the trigger-to-LTP gap enforced after tick rounding.
	minRequiredDiff = 0.0025

	tickThreshold = 500.0
	fineTick      = 0.05
	coarseTick    = 0.10
)

// TickSize returns the price increment applicable at the given reference
// price: a finer tick under the threshold, a coarser one above it.
func TickSize(referencePrice float64) float64 {
	if referencePrice < tickThreshold {
		return fineTick
	}
	return coarseTick
}

// AdjustTriggerAndOrderPrice normalizes a desired limit price against the
// last traded price into a broker-valid (order price, trigger price) pair.
// Stateless and side-effect free.
//
// Buying below market keeps the trigger just above the limit price, clamped
// under LTP by the minimum margin; orders at or above market are clamped
// symmetrically. Both values are snapped to the applicable tick, and a final
// guard re-opens the trigger-to-LTP gap if rounding closed it.
func AdjustTriggerAndOrderPrice(orderPrice, ltp float64) (price, trigger float64) {
	minDiff := roundN(ltp*ltpTriggerDiff, 4)
	exactDiff := roundN(orderPrice*orderTriggerDiff, 4)

	price = orderPrice
	if orderPrice < ltp {
		minTrigger := roundN(ltp-minDiff, 2)
		trigger = roundN(orderPrice+exactDiff, 2)
		if trigger >= minTrigger {
			trigger = minTrigger
			price = roundN(trigger-exactDiff, 2)
		}
	} else {
		maxTrigger := roundN(ltp+minDiff, 2)
		trigger = roundN(orderPrice-exactDiff, 2)
		if trigger <= maxTrigger {
			trigger = maxTrigger
			price = roundN(trigger+exactDiff, 2)
		}
	}

	tick := TickSize(ltp)
	price = snapNearest(price, tick)
	trigger = snapNearest(trigger, tick)

	if math.Abs(trigger-ltp)/ltp < minRequiredDiff {
		// Snap away from the LTP so the margin survives tick rounding.
		if trigger < ltp {
			trigger = snapDown(ltp-ltp*minRequiredDiff, tick)
			price = snapNearest(trigger-exactDiff, tick)
		} else {
			trigger = snapUp(ltp+ltp*minRequiredDiff, tick)
			price = snapNearest(trigger+exactDiff, tick)
		}
	}
	return price, trigger
}

func roundN(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func snapNearest(x, tick float64) float64 {
	return roundN(math.Round(x/tick)*tick, 2)
}

func snapDown(x, tick float64) float64 {
	return roundN(math.Floor(x/tick)*tick, 2)
}

func snapUp(x, tick float64) float64 {
	return roundN(math.Ceil(x/tick)*tick, 2)
}
