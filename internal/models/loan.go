package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan is one issued loan as persisted in loan_issue. Created once by the
// portfolio generator and never mutated afterwards; the ID is assigned by the
// database on insert.
type Loan struct {
	ID          int64           `json:"loan_id"`
	IssueDate   time.Time       `json:"issue_date"`
	CohortMonth time.Time       `json:"cohort_month"`
	Amount      decimal.Decimal `json:"loan_amount"`
	// InterestRate is the annual nominal rate stored as a percentage,
	// e.g. 18.50 for 18.5% p.a.
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermMonths   int             `json:"term_months"`
	ProductType  string          `json:"product_type"`

	// Macro and seasonal snapshot captured at issuance.
	MacroRateCBR          float64 `json:"macro_rate_cbr"`
	MacroEmploymentRate   float64 `json:"macro_employment_rate"`
	MacroUnemploymentRate float64 `json:"macro_unemployment_rate"`
	MacroIndex            float64 `json:"macro_index"`
	SeasonKIssue          float64 `json:"season_k_issue"`
	SeasonKAmount         float64 `json:"season_k_amount"`
	SeasonPeriodName      *string `json:"season_period_name"`

	BatchID string `json:"batch_id"`
}
