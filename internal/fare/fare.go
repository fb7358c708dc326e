// Package fare computes booking totals with fixed-point decimal arithmetic.
package fare

import "github.com/shopspring/decimal"

// Compute returns farePerSeat multiplied by seatCount, rounded to two
// minor-unit digits with banker's rounding. This is the canonical fare rule;
// there is no per-seat differential pricing.
func Compute(farePerSeat decimal.Decimal, seatCount int) decimal.Decimal {
	return farePerSeat.Mul(decimal.NewFromInt(int64(seatCount))).RoundBank(2)
}
