package simulator

import "github.com/shopspring/decimal"

// Allocate consumes an available payment greedily across an ordered list of
// due amounts: each position receives at most its due and at most what
// remains. It returns the per-position paid amounts and the unconsumed
// remainder. The normal payment branch always exhausts the payment (remainder
// zero); the cure top-up may leave a remainder when the extra amount exceeds
// everything due.
func Allocate(available decimal.Decimal, dues []decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	paid := make([]decimal.Decimal, len(dues))
	left := available
	for i, due := range dues {
		p := decimal.Min(left, due)
		if p.IsNegative() {
			p = decimal.Zero
		}
		paid[i] = p
		left = left.Sub(p)
	}
	return paid, left
}
