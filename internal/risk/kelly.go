package risk

import "math"

// KellyContracts computes the fractional-Kelly stake in contracts for a
// binary contract bought at price q with estimated win probability p.
//
// Full Kelly for a contract paying 1 is (p - q) / (1 - q) of bankroll;
// fraction k scales that stake. Returns 0 when there is no positive edge or
// the price is degenerate.
func KellyContracts(p, q, bankroll, k float64) int {
	if q <= 0 || q >= 1 || p <= q || bankroll <= 0 || k <= 0 {
		return 0
	}
	stake := k * ((p - q) / (1 - q)) * bankroll
	contracts := math.Floor(stake / q)
	if contracts < 0 {
		return 0
	}
	return int(contracts)
}

// MaxContracts is the largest whole-contract count whose notional fits
// under the given ceiling.
func MaxContracts(maxNotional, price float64) int {
	if price <= 0 || maxNotional <= 0 {
		return 0
	}
	return int(math.Floor(maxNotional / price))
}
