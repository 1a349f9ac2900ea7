package simulator

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iRatG/loan-portfolio/internal/config"
	"github.com/iRatG/loan-portfolio/internal/macro"
	"github.com/iRatG/loan-portfolio/internal/models"
	"github.com/iRatG/loan-portfolio/internal/refdata"
	"github.com/iRatG/loan-portfolio/internal/rng"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func flatSeries(t *testing.T, rate float64, startYear, endYear int) *macro.MonthlySeries {
	t.Helper()
	series, err := macro.Interpolate([]refdata.MacroAnchor{{
		Year:  startYear,
		Month: 1,
		MacroState: models.MacroState{
			RateCBR: rate, EmploymentRate: 94, UnemploymentRate: 6, MacroIndex: 1,
		},
	}}, startYear, endYear)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	return series
}

// matrixAllOn routes every from-bucket of every listed year to a single
// target bucket with certainty.
func matrixAllOn(target models.Bucket, years ...int) *models.MigrationMatrix {
	m := &models.MigrationMatrix{Yearly: map[int]map[models.Bucket]models.BucketWeights{}}
	for _, y := range years {
		rows := map[models.Bucket]models.BucketWeights{}
		for _, from := range models.Buckets {
			var w models.BucketWeights
			w[target.Order()] = 1
			rows[from] = w
		}
		m.Yearly[y] = rows
	}
	return m
}

func testLoan(amount string, ratePercent string, term int) models.Loan {
	return models.Loan{
		ID:           1,
		IssueDate:    time.Date(2016, 1, 10, 0, 0, 0, 0, time.UTC),
		CohortMonth:  time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString(amount),
		InterestRate: decimal.RequireFromString(ratePercent),
		TermMonths:   term,
		ProductType:  "consumer_loan",
		BatchID:      "test",
	}
}

func newSimulator(coll *config.Collections, series *macro.MonthlySeries,
	matrix *models.MigrationMatrix, earlyRepayProb float64, seed int64) *Simulator {
	return New(coll, series, nil, matrix,
		&refdata.Noise{FullEarlyRepayProb: earlyRepayProb},
		rng.New(seed), testLogger())
}

func TestFullyPayingLoanAmortizes(t *testing.T) {
	coll := &config.Collections{Priority: models.PriorityMax}
	sim := newSimulator(coll, flatSeries(t, 8, 2016, 2018), matrixAllOn(models.BucketCurrent, 2016, 2017, 2018), 0, 1)

	facts := sim.Run([]models.Loan{testLoan("100000", "12", 12)}, "test")
	if len(facts) != 12 {
		t.Fatalf("expected 12 fact rows, got %d", len(facts))
	}

	for i, f := range facts {
		if f.DPDBucket != models.BucketCurrent {
			t.Fatalf("row %d: bucket = %s, want 0", i, f.DPDBucket)
		}
		if !f.OverduePrincipal.IsZero() || !f.OverdueInterest.IsZero() {
			t.Fatalf("row %d: unexpected arrears %s/%s", i, f.OverduePrincipal, f.OverdueInterest)
		}
		if !f.ScheduledPayment.Equal(decimal.RequireFromString("8884.88")) {
			t.Fatalf("row %d: scheduled payment = %s, want 8884.88", i, f.ScheduledPayment)
		}
	}

	last := facts[len(facts)-1]
	if last.BalancePrincipal.GreaterThan(decimal.RequireFromString("0.05")) {
		t.Fatalf("final balance = %s, want ~0", last.BalancePrincipal)
	}
	// First period interest = 100000 * 1%.
	if !facts[0].InterestScheduled.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("first interest = %s, want 1000", facts[0].InterestScheduled)
	}
}

func TestBalanceMonotonicity(t *testing.T) {
	coll := &config.Collections{Priority: models.PriorityMax}
	sim := newSimulator(coll, flatSeries(t, 12, 2016, 2020), matrixAllOn(models.BucketCurrent, 2016, 2017, 2018, 2019, 2020), 0.02, 7)

	loans := []models.Loan{
		testLoan("250000", "15.5", 36),
		testLoan("80000", "22", 24),
		testLoan("500000", "0", 48),
	}
	for i := range loans {
		loans[i].ID = int64(i + 1)
	}

	facts := sim.Run(loans, "test")
	prev := map[int64]decimal.Decimal{}
	for _, f := range facts {
		if p, ok := prev[f.LoanID]; ok && f.BalancePrincipal.GreaterThan(p) {
			t.Fatalf("loan %d: balance grew from %s to %s at MOB %d", f.LoanID, p, f.BalancePrincipal, f.MOB)
		}
		prev[f.LoanID] = f.BalancePrincipal
	}
}

func TestNonPayingLoanAgesIntoDefault(t *testing.T) {
	coll := &config.Collections{
		Priority: models.PriorityFact,
		PaymentPolicyByBucket: map[string][]float64{
			"1-30": {0, 0, 0, 0}, // pay nothing while notionally 1-30
		},
	}
	sim := newSimulator(coll, flatSeries(t, 8, 2016, 2020), matrixAllOn(models.Bucket1To30, 2016, 2017, 2018, 2019, 2020), 0, 3)

	facts := sim.Run([]models.Loan{testLoan("100000", "12", 36)}, "test")

	// Jan 31 + Feb 29 + Mar 31 = 91 days: four rows at most, the last in
	// bucket 90+ with a default status, then a hard stop.
	if len(facts) > 4 {
		t.Fatalf("expected at most 4 rows before default, got %d", len(facts))
	}
	last := facts[len(facts)-1]
	if last.DPDBucket != models.Bucket90Plus {
		t.Fatalf("final bucket = %s, want 90+", last.DPDBucket)
	}
	if last.Status != models.StatusDefault {
		t.Fatalf("final status = %s, want default", last.Status)
	}

	days := 0
	for i, f := range facts {
		if f.OverdueDays <= days {
			t.Fatalf("row %d: overdue days %d did not grow past %d", i, f.OverdueDays, days)
		}
		days = f.OverdueDays
		if i < len(facts)-1 && f.Status != models.StatusActive {
			t.Fatalf("row %d: premature terminal status %s", i, f.Status)
		}
	}
}

func TestEarlyRepayment(t *testing.T) {
	coll := &config.Collections{Priority: models.PriorityMax}
	sim := newSimulator(coll, flatSeries(t, 8, 2016, 2018), matrixAllOn(models.BucketCurrent, 2016, 2017, 2018), 1.0, 11)

	facts := sim.Run([]models.Loan{testLoan("100000", "12", 12)}, "test")
	if len(facts) != 1 {
		t.Fatalf("expected a single fact row, got %d", len(facts))
	}
	f := facts[0]
	if f.Status != models.StatusRepaid {
		t.Fatalf("status = %s, want repaid", f.Status)
	}
	if f.MigrationScenario != models.ScenarioEarlyRepay {
		t.Fatalf("scenario = %s, want early_repay", f.MigrationScenario)
	}
	if !f.BalancePrincipal.IsZero() {
		t.Fatalf("balance = %s, want 0", f.BalancePrincipal)
	}
	// Payoff = full balance plus the period's interest.
	if !f.ActualPayment.Equal(decimal.RequireFromString("101000")) {
		t.Fatalf("actual payment = %s, want 101000", f.ActualPayment)
	}
}

func TestTerminalStateExclusivity(t *testing.T) {
	coll := &config.Collections{Priority: models.PriorityMax}
	sim := newSimulator(coll, flatSeries(t, 14, 2014, 2020),
		matrixAllOn(models.Bucket61To90, 2014, 2015, 2016, 2017, 2018, 2019, 2020), 0.05, 21)

	loans := make([]models.Loan, 5)
	for i := range loans {
		loans[i] = testLoan("150000", "18", 24)
		loans[i].ID = int64(i + 1)
	}
	facts := sim.Run(loans, "test")

	terminal := map[int64]bool{}
	for _, f := range facts {
		if terminal[f.LoanID] {
			t.Fatalf("loan %d: fact row emitted after terminal status", f.LoanID)
		}
		if f.Status != models.StatusActive {
			terminal[f.LoanID] = true
		}
	}
}

func TestBucketClosure(t *testing.T) {
	coll := &config.Collections{Priority: models.PriorityMax}
	sim := newSimulator(coll, flatSeries(t, 16, 2014, 2020),
		matrixAllOn(models.Bucket1To30, 2014, 2015, 2016, 2017, 2018, 2019, 2020), 0.01, 5)

	loans := make([]models.Loan, 10)
	for i := range loans {
		loans[i] = testLoan("120000", "20", 18)
		loans[i].ID = int64(i + 1)
	}
	valid := map[models.Bucket]bool{}
	for _, b := range models.Buckets {
		valid[b] = true
	}
	for _, f := range sim.Run(loans, "test") {
		if !valid[f.DPDBucket] {
			t.Fatalf("loan %d MOB %d: bucket %q outside the defined scale", f.LoanID, f.MOB, f.DPDBucket)
		}
	}
}

func TestDeterminism(t *testing.T) {
	run := func() []models.MonthlyFactRecord {
		coll := &config.Collections{
			Priority:                       models.PriorityMax,
			PCureByBucket:                  map[string]float64{"1-30": 0.4, "31-60": 0.25},
			TypicalCureMultiple:            1.5,
			IntentWorsenMultiplier20142015: 0.85,
		}
		sim := newSimulator(coll, flatSeries(t, 12, 2014, 2019),
			matrixAllOn(models.Bucket1To30, 2014, 2015, 2016, 2017, 2018, 2019), 0.02, 42)
		loans := make([]models.Loan, 20)
		for i := range loans {
			loans[i] = testLoan("200000", "17.5", 30)
			loans[i].ID = int64(i + 1)
		}
		return sim.Run(loans, "test")
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two runs with the same seed diverged")
	}
}

func TestCrisisDampeningKeepsMigrationAlive(t *testing.T) {
	// The 2014-2015 multiplier dampens worsening, it must never zero it out:
	// a crisis-year cohort driven by a matrix forcing 1-30 still migrates.
	coll := &config.Collections{
		Priority:                       models.PriorityIntent,
		IntentWorsenMultiplier20142015: 0.85,
	}
	sim := newSimulator(coll, flatSeries(t, 8, 2014, 2016), matrixAllOn(models.Bucket1To30, 2014, 2015, 2016), 0, 13)

	loan := testLoan("100000", "12", 12)
	loan.IssueDate = time.Date(2014, 1, 10, 0, 0, 0, 0, time.UTC)
	loan.CohortMonth = time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

	facts := sim.Run([]models.Loan{loan}, "test")
	migrated := false
	for _, f := range facts {
		if f.PeriodMonth.Year() == 2014 && f.DPDBucket != models.BucketCurrent {
			migrated = true
			break
		}
	}
	if !migrated {
		t.Fatal("no migration out of bucket 0 during the dampened crisis year")
	}
}

func TestCureReducesArrears(t *testing.T) {
	// Certain cure: arrears accrued in the first delinquent month are paid
	// down by the extra payment.
	coll := &config.Collections{
		Priority:            models.PriorityIntent,
		PCureByBucket:       map[string]float64{"1-30": 1.0},
		TypicalCureMultiple: 5.0,
		PaymentPolicyByBucket: map[string][]float64{
			"1-30": {0, 0, 0, 0},
		},
	}
	sim := newSimulator(coll, flatSeries(t, 8, 2016, 2018), matrixAllOn(models.Bucket1To30, 2016, 2017, 2018), 0, 9)

	facts := sim.Run([]models.Loan{testLoan("100000", "12", 12)}, "test")
	f := facts[0]
	// The behavioral payment is zero but the cure covers all rolled-over
	// interest (1000.00 at 5x the 8884.88 annuity there is ample headroom).
	if !f.OverdueInterest.IsZero() {
		t.Fatalf("overdue interest after cure = %s, want 0", f.OverdueInterest)
	}
	if !f.ActualPayment.IsPositive() {
		t.Fatalf("actual payment = %s, want > 0", f.ActualPayment)
	}
}
