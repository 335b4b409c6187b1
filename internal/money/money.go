// Package money holds the currency arithmetic shared by the promo and gateway code.
//
// Platform prices are TND amounts expressed as major-unit decimals. Payment
// providers only speak integer minor units, so every conversion is done here and
// nowhere else: millimes (x1000) for the Tunisian gateway, cents (x100) for the
// card gateway. Amounts must stay tagged with their unit and currency end to end.
package money

import "math"

// Currency codes used by the platform and its gateways.
const (
	TND = "TND"
	USD = "USD"
)

// Round2 rounds a major-unit decimal amount to 2 decimal places, half-up on the
// value scaled by 100.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ToMillimes converts a TND major-unit amount to integer millimes.
func ToMillimes(amount float64) int64 {
	return int64(math.Round(amount * 1000))
}

// FromMillimes converts integer millimes back to a TND major-unit amount.
func FromMillimes(millimes int64) float64 {
	return float64(millimes) / 1000
}

// ToCents converts a major-unit amount to integer cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts integer cents back to a major-unit amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// TNDToUSD bridges a TND amount to USD using a configured approximate rate
// (TND per 1 USD). The result is lossy by construction: it prices a checkout on a
// provider that cannot settle TND, and must never be used for refund-exact
// accounting. Refunds through that provider go by provider reference instead.
func TNDToUSD(amountTND, tndPerUSD float64) float64 {
	if tndPerUSD <= 0 {
		return 0
	}
	return Round2(amountTND / tndPerUSD)
}
