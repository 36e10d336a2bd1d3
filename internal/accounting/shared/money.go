package shared

import "github.com/shopspring/decimal"

// Tolerance is the largest difference treated as "balanced".
var Tolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsBalanced reports whether debit and credit differ by less than one cent.
func IsBalanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(Tolerance)
}

// IsMaterial reports whether an amount is at least one cent in magnitude.
func IsMaterial(d decimal.Decimal) bool {
	return d.Abs().GreaterThanOrEqual(Tolerance)
}

// HasCentPrecision reports whether d has no more than two decimal places.
func HasCentPrecision(d decimal.Decimal) bool {
	scaled := d.Mul(hundred)
	return scaled.Equal(scaled.Truncate(0))
}
