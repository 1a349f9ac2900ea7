// Package finance holds the exact-decimal monetary arithmetic shared by the
// portfolio generator and the fact simulator. All amounts are base-10 decimals
// rounded half-up to 2 places at every persisted boundary; binary floating
// point is never used for monetary state.
package finance

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Intermediate quotients need more headroom than the library default,
	// otherwise the annuity coefficient drifts over 60+ period terms.
	decimal.DivisionPrecision = 28
}

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// Round2 rounds a monetary amount half-up to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MonthlyRate converts an annual nominal rate in percent (e.g. 18.50) into a
// monthly rate expressed as a fraction.
func MonthlyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.Div(hundred).Div(twelve)
}

// AnnuityPayment computes the constant payment that fully amortizes principal
// and interest over the term:
//
//	A = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero monthly rate falls back to straight-line division of the principal
// by the term. The result is rounded half-up to 2 places.
func AnnuityPayment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	if monthlyRate.IsZero() {
		return Round2(principal.Div(decimal.NewFromInt(int64(termMonths))))
	}
	n := decimal.NewFromInt(int64(termMonths))
	onePlusR := decimal.NewFromInt(1).Add(monthlyRate)
	pow := onePlusR.Pow(n)
	k := monthlyRate.Mul(pow).Div(pow.Sub(decimal.NewFromInt(1)))
	return Round2(principal.Mul(k))
}

// Clamp limits v to the inclusive range [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampInt limits v to the inclusive range [min, max].
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
