package models

import "fmt"

// Bucket is a delinquency bucket on the standard DPD scale.
type Bucket string

const (
	BucketCurrent Bucket = "0"
	Bucket1To30   Bucket = "1-30"
	Bucket31To60  Bucket = "31-60"
	Bucket61To90  Bucket = "61-90"
	Bucket90Plus  Bucket = "90+"
)

// Buckets lists all delinquency buckets from best to worst. The index of a
// bucket in this slice is its position on the total order.
var Buckets = []Bucket{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, Bucket90Plus}

var bucketOrder = map[Bucket]int{
	BucketCurrent: 0,
	Bucket1To30:   1,
	Bucket31To60:  2,
	Bucket61To90:  3,
	Bucket90Plus:  4,
}

// ParseBucket validates a bucket label from reference data.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if _, ok := bucketOrder[b]; !ok {
		return "", fmt.Errorf("unknown delinquency bucket %q", s)
	}
	return b, nil
}

// Order returns the position of the bucket on the delinquency scale.
func (b Bucket) Order() int {
	return bucketOrder[b]
}

// Worse reports whether b is further down the delinquency scale than other.
func (b Bucket) Worse(other Bucket) bool {
	return bucketOrder[b] > bucketOrder[other]
}

// BucketForDays maps an accumulated consecutive-arrears day count to a bucket.
func BucketForDays(days int) Bucket {
	switch {
	case days <= 0:
		return BucketCurrent
	case days <= 30:
		return Bucket1To30
	case days <= 60:
		return Bucket31To60
	case days <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}

// LoanStatus is the lifecycle status of a simulated loan.
type LoanStatus string

const (
	StatusActive  LoanStatus = "active"
	StatusRepaid  LoanStatus = "repaid"
	StatusDefault LoanStatus = "default"
)

// BucketPriority selects how the intent bucket and the aging-derived fact
// bucket are combined into the final bucket of a period.
type BucketPriority int

const (
	// PriorityMax picks whichever bucket is worse on the total order.
	PriorityMax BucketPriority = iota
	// PriorityIntent always uses the bucket drawn from the migration model.
	PriorityIntent
	// PriorityFact always uses the bucket derived from DPD aging.
	PriorityFact
)

// ParseBucketPriority rejects unrecognized policy names at load time.
func ParseBucketPriority(s string) (BucketPriority, error) {
	switch s {
	case "max", "":
		return PriorityMax, nil
	case "intent":
		return PriorityIntent, nil
	case "fact":
		return PriorityFact, nil
	default:
		return 0, fmt.Errorf("unknown bucket_priority %q", s)
	}
}

func (p BucketPriority) String() string {
	switch p {
	case PriorityIntent:
		return "intent"
	case PriorityFact:
		return "fact"
	default:
		return "max"
	}
}

// DPDMode selects how consecutive-arrears days are aged. Only age_oldest is
// implemented: the counter ages by the full calendar month while any arrears
// remain and is not capped at the bucket boundary.
type DPDMode int

const (
	DPDAgeOldest DPDMode = iota
)

// ParseDPDMode rejects unrecognized policy names at load time.
func ParseDPDMode(s string) (DPDMode, error) {
	switch s {
	case "age_oldest", "":
		return DPDAgeOldest, nil
	default:
		return 0, fmt.Errorf("unknown dpd_mode %q", s)
	}
}

func (m DPDMode) String() string { return "age_oldest" }
