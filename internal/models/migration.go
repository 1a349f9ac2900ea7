package models

import "fmt"

// BucketWeights is a weight vector over the five delinquency buckets, indexed
// by Bucket.Order(). Weights are relative; they are not required to sum to 1.
type BucketWeights [5]float64

// Total returns the sum of all weights.
func (w BucketWeights) Total() float64 {
	var t float64
	for _, p := range w {
		t += p
	}
	return t
}

// DefaultWeights places all weight on bucket "0". Used when the matrix carries
// no row for a (year, from-bucket) pair.
func DefaultWeights() BucketWeights {
	return BucketWeights{1, 0, 0, 0, 0}
}

// MigrationMatrix maps (year, from-bucket) to a weight vector over the target
// buckets. Validated for completeness and non-negativity at load time.
type MigrationMatrix struct {
	Yearly map[int]map[Bucket]BucketWeights
}

// Row returns the weight vector for the given year and from-bucket, falling
// back to all weight on "0" when the matrix has no entry.
func (m *MigrationMatrix) Row(year int, from Bucket) BucketWeights {
	if byBucket, ok := m.Yearly[year]; ok {
		if w, ok := byBucket[from]; ok {
			return w
		}
	}
	return DefaultWeights()
}

// Validate checks that all weights are non-negative.
func (m *MigrationMatrix) Validate() error {
	for year, byBucket := range m.Yearly {
		for from, w := range byBucket {
			for i, p := range w {
				if p < 0 {
					return fmt.Errorf("migration matrix %d/%s: negative weight %v for bucket %s",
						year, from, p, Buckets[i])
				}
			}
		}
	}
	return nil
}

// PaymentFractions is the per-bucket payment policy: four non-negative
// fractions applied respectively to overdue interest, scheduled interest,
// overdue principal and scheduled principal due amounts.
type PaymentFractions [4]float64

// DefaultPaymentFractions is the fallback policy ladder used when a bucket has
// no configured fractions: current loans pay everything, 1-30 pays all interest,
// 31-60 pays half of overdue interest, worse buckets pay nothing.
func DefaultPaymentFractions(b Bucket) PaymentFractions {
	switch b {
	case BucketCurrent:
		return PaymentFractions{1, 1, 1, 1}
	case Bucket1To30:
		return PaymentFractions{1, 1, 0, 0}
	case Bucket31To60:
		return PaymentFractions{0.5, 0, 0, 0}
	default:
		return PaymentFractions{0, 0, 0, 0}
	}
}
