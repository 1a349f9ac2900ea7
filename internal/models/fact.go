package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Migration scenario tags recorded on every fact row.
const (
	ScenarioBase       = "base"
	ScenarioEarlyRepay = "early_repay"
)

// MonthlyFactRecord is one row of credit_fact_history: the operational state
// of a single loan at the end of one simulated month. All monetary fields are
// rounded half-up to 2 decimal places before the record is emitted.
type MonthlyFactRecord struct {
	LoanID      int64     `json:"loan_id"`
	PeriodMonth time.Time `json:"period_month"` // month-end date
	MOB         int       `json:"mob"`

	BalancePrincipal  decimal.Decimal `json:"balance_principal"`
	OverduePrincipal  decimal.Decimal `json:"overdue_principal"`
	InterestScheduled decimal.Decimal `json:"interest_scheduled"`
	OverdueInterest   decimal.Decimal `json:"overdue_interest"`
	ScheduledPayment  decimal.Decimal `json:"scheduled_payment"`
	ActualPayment     decimal.Decimal `json:"actual_payment"`

	DPDBucket         Bucket     `json:"dpd_bucket"`
	OverdueDays       int        `json:"overdue_days"`
	Status            LoanStatus `json:"status"`
	MigrationScenario string     `json:"migration_scenario"`
	BatchID           string     `json:"batch_id"`
}
