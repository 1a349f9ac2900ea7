// Package simulator evolves every issued loan month-by-month from issuance to
// repayment, default or term exhaustion, producing one fact row per period.
// Bucket migration is probabilistic, modulated by macro and seasonal
// conditions; payments follow a per-bucket policy allocated through a strict
// priority waterfall; arrears age by calendar days into DPD buckets. All
// monetary state is exact decimal, rounded half-up to 2 places on emission.
package simulator

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iRatG/loan-portfolio/internal/config"
	"github.com/iRatG/loan-portfolio/internal/finance"
	"github.com/iRatG/loan-portfolio/internal/macro"
	"github.com/iRatG/loan-portfolio/internal/models"
	"github.com/iRatG/loan-portfolio/internal/refdata"
	"github.com/iRatG/loan-portfolio/internal/rng"
)

// balanceEpsilon: a balance at or below one cent is treated as fully repaid.
var balanceEpsilon = decimal.New(1, -2)

// crisis years with regulatory forbearance dampening intent worsening
const (
	crisisYearFrom = 2014
	crisisYearTo   = 2015

	// key-rate level above which migration to worse buckets accelerates
	rateWorsenThreshold = 10.0
	rateWorsenScale     = 50.0
)

// Simulator runs the monthly fact state machine over a portfolio.
type Simulator struct {
	coll    *config.Collections
	series  *macro.MonthlySeries
	seasons []models.SeasonPeriod
	matrix  *models.MigrationMatrix
	noise   *refdata.Noise
	rand    *rng.Source
	log     *logrus.Logger
}

// New builds a simulator. The random source must be the run's shared seeded
// handle; draws advance in loan order, then month order within a loan.
func New(coll *config.Collections, series *macro.MonthlySeries, seasons []models.SeasonPeriod,
	matrix *models.MigrationMatrix, noise *refdata.Noise, rand *rng.Source, log *logrus.Logger) *Simulator {
	return &Simulator{
		coll:    coll,
		series:  series,
		seasons: seasons,
		matrix:  matrix,
		noise:   noise,
		rand:    rand,
		log:     log,
	}
}

// loanState is the runtime state of one loan between periods. It is never
// persisted as a whole; fact rows carry the per-period projection.
type loanState struct {
	mob              int
	balance          decimal.Decimal
	overduePrincipal decimal.Decimal
	overdueInterest  decimal.Decimal
	dpdDays          int
	status           models.LoanStatus
	fromBucket       models.Bucket

	// Per-period missed-principal flag. Computed every period but not wired
	// into bucket resolution; kept for compatibility with the fact schema
	// consumers.
	missedPrincipal bool
}

// Run simulates every loan independently and returns all fact rows in loan
// order, month order within each loan.
func (s *Simulator) Run(loans []models.Loan, batchID string) []models.MonthlyFactRecord {
	facts := make([]models.MonthlyFactRecord, 0, len(loans)*12)
	for i := range loans {
		facts = s.simulateLoan(&loans[i], batchID, facts)
	}
	s.log.Infof("Simulated %d loans into %d fact rows", len(loans), len(facts))
	return facts
}

func (s *Simulator) simulateLoan(loan *models.Loan, batchID string, facts []models.MonthlyFactRecord) []models.MonthlyFactRecord {
	principal := finance.Round2(loan.Amount)
	monthlyRate := finance.MonthlyRate(loan.InterestRate)
	schedPayment := finance.AnnuityPayment(principal, monthlyRate, loan.TermMonths)

	st := loanState{
		balance:    principal,
		status:     models.StatusActive,
		fromBucket: models.BucketCurrent,
	}

	for st.mob < loan.TermMonths && st.status == models.StatusActive && st.balance.GreaterThan(balanceEpsilon) {
		period := monthEnd(loan.CohortMonth, st.mob)
		year, month := period.Year(), int(period.Month())
		state := s.series.At(year, month)
		season := macro.ResolveSeason(s.seasons, period)

		weights := s.migrationWeights(year, st.fromBucket, state, season)

		interestScheduled := finance.Round2(st.balance.Mul(monthlyRate))
		scheduledPrincipal := schedPayment.Sub(interestScheduled)
		if scheduledPrincipal.IsNegative() {
			scheduledPrincipal = decimal.Zero
		}
		if scheduledPrincipal.GreaterThan(st.balance) {
			scheduledPrincipal = st.balance
		}

		var (
			intentBucket models.Bucket
			scenario     string
			actual       decimal.Decimal
			paidSP       decimal.Decimal
		)

		if s.rand.Float64() < s.noise.FullEarlyRepayProb {
			// Borrower closes the loan in full: balance, all arrears and
			// this period's interest in one payment.
			intentBucket = models.BucketCurrent
			scenario = models.ScenarioEarlyRepay
			actual = st.balance.Add(st.overduePrincipal).Add(st.overdueInterest).Add(interestScheduled)
			paidSP = st.balance
			st.overdueInterest = decimal.Zero
			st.overduePrincipal = decimal.Zero
			st.balance = decimal.Zero
			st.status = models.StatusRepaid
		} else {
			intentBucket = s.chooseBucket(weights)
			scenario = models.ScenarioBase

			fractions := s.coll.PaymentFractions(intentBucket)
			dueTotal := st.overdueInterest.Add(interestScheduled).
				Add(st.overduePrincipal).Add(scheduledPrincipal)
			target := st.overdueInterest.Mul(decimal.NewFromFloat(fractions[0])).
				Add(interestScheduled.Mul(decimal.NewFromFloat(fractions[1]))).
				Add(st.overduePrincipal.Mul(decimal.NewFromFloat(fractions[2]))).
				Add(scheduledPrincipal.Mul(decimal.NewFromFloat(fractions[3])))
			actual = decimal.Min(dueTotal, finance.Round2(target))

			paid, _ := Allocate(actual, []decimal.Decimal{
				st.overdueInterest, interestScheduled, st.overduePrincipal, scheduledPrincipal,
			})
			paidOI, paidIS, paidOP := paid[0], paid[1], paid[2]
			paidSP = paid[3]

			// Unpaid scheduled amounts roll into arrears.
			st.overdueInterest = st.overdueInterest.Sub(paidOI).Add(interestScheduled.Sub(paidIS))
			st.overduePrincipal = st.overduePrincipal.Sub(paidOP).Add(scheduledPrincipal.Sub(paidSP))
			st.balance = st.balance.Sub(paidOP.Add(paidSP))
			if st.balance.IsNegative() {
				st.balance = decimal.Zero
			}
		}

		// Cure: an extra probabilistic payment on top of the behavioral one,
		// allocated to arrears first.
		if s.hasArrears(&st) && intentBucket != models.BucketCurrent {
			if s.rand.Float64() < s.coll.CureProbability(intentBucket) {
				extra := finance.Round2(schedPayment.Mul(decimal.NewFromFloat(s.coll.TypicalCureMultiple)))
				paid, left := Allocate(extra, []decimal.Decimal{
					st.overdueInterest, st.overduePrincipal, interestScheduled, scheduledPrincipal,
				})
				st.overdueInterest = st.overdueInterest.Sub(paid[0])
				st.overduePrincipal = st.overduePrincipal.Sub(paid[1])
				actual = actual.Add(extra.Sub(left))
			}
		}

		// DPD aging: while any arrears remain the consecutive-arrears counter
		// grows by the month's calendar days; otherwise it resets.
		var factBucket models.Bucket
		if s.hasArrears(&st) {
			st.dpdDays += period.Day()
			factBucket = models.BucketForDays(st.dpdDays)
		} else {
			st.dpdDays = 0
			factBucket = models.BucketCurrent
		}

		st.missedPrincipal = scheduledPrincipal.Sub(paidSP).IsPositive()

		finalBucket := s.resolveBucket(intentBucket, factBucket)
		if finalBucket == models.BucketCurrent {
			st.dpdDays = 0
		}

		if finalBucket == models.Bucket90Plus && st.status == models.StatusActive {
			st.status = models.StatusDefault
		}

		facts = append(facts, models.MonthlyFactRecord{
			LoanID:            loan.ID,
			PeriodMonth:       period,
			MOB:               st.mob,
			BalancePrincipal:  finance.Round2(st.balance),
			OverduePrincipal:  finance.Round2(st.overduePrincipal),
			InterestScheduled: finance.Round2(interestScheduled),
			OverdueInterest:   finance.Round2(st.overdueInterest),
			ScheduledPayment:  finance.Round2(schedPayment),
			ActualPayment:     finance.Round2(actual),
			DPDBucket:         finalBucket,
			OverdueDays:       st.dpdDays,
			Status:            st.status,
			MigrationScenario: scenario,
			BatchID:           batchID,
		})

		st.fromBucket = finalBucket
		st.mob++
	}
	return facts
}

// migrationWeights builds the effective weight vector of a period: the matrix
// row for (year, from-bucket), scaled by the seasonal multiplier, with every
// bucket worse than "0" accelerated by key-rate pressure and dampened during
// the 2014-2015 forbearance window.
func (s *Simulator) migrationWeights(year int, from models.Bucket, state models.MacroState,
	season models.SeasonalState) models.BucketWeights {
	weights := s.matrix.Row(year, from)
	for i := range weights {
		weights[i] *= season.KIssue
	}

	rateFactor := 1.0
	if state.RateCBR > rateWorsenThreshold {
		rateFactor = 1.0 + (state.RateCBR-rateWorsenThreshold)/rateWorsenScale
	}
	crisis := year >= crisisYearFrom && year <= crisisYearTo
	for i := 1; i < len(weights); i++ {
		weights[i] *= rateFactor
		if crisis {
			weights[i] *= s.coll.IntentWorsenMultiplier20142015
		}
	}
	return weights
}

// chooseBucket draws from the weight vector. Weights are relative; a
// non-positive total degenerates to bucket "0".
func (s *Simulator) chooseBucket(weights models.BucketWeights) models.Bucket {
	total := weights.Total()
	if total <= 0 {
		return models.BucketCurrent
	}
	r := s.rand.Float64() * total
	acc := 0.0
	for i, b := range models.Buckets {
		acc += weights[i]
		if r <= acc {
			return b
		}
	}
	return models.Buckets[len(models.Buckets)-1]
}

// resolveBucket combines the intent and fact buckets per the configured
// priority policy.
func (s *Simulator) resolveBucket(intent, fact models.Bucket) models.Bucket {
	switch s.coll.Priority {
	case models.PriorityIntent:
		return intent
	case models.PriorityFact:
		return fact
	default:
		if intent.Worse(fact) {
			return intent
		}
		return fact
	}
}

func (s *Simulator) hasArrears(st *loanState) bool {
	return st.overduePrincipal.IsPositive() || st.overdueInterest.IsPositive()
}

// monthEnd returns the last day of the month mob months after the cohort.
func monthEnd(cohort time.Time, mob int) time.Time {
	first := cohort.AddDate(0, mob, 0)
	return time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}
