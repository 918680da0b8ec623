package domain

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits carried by every amount.
const AmountScale = 2

// ValidAmount reports whether d is strictly positive with at most two decimals.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Round(AmountScale))
}
