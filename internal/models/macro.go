package models

// MacroState holds the macroeconomic parameters of a single month. Produced
// once by interpolation over the sparse anchor points and immutable afterwards.
type MacroState struct {
	RateCBR          float64 `json:"rate_cbr"`
	EmploymentRate   float64 `json:"employment_rate"`
	UnemploymentRate float64 `json:"unemployment_rate"`
	MacroIndex       float64 `json:"macro_index"`
}

// SeasonalState holds the seasonal multipliers that apply to a calendar date.
type SeasonalState struct {
	KIssue     float64
	KAmount    float64
	PeriodName *string
}

// NeutralSeason is returned when no seasonal period matches a date.
func NeutralSeason() SeasonalState {
	return SeasonalState{KIssue: 1.0, KAmount: 1.0}
}

// SeasonPeriod is one calendar range from the seasonal reference. Ranges whose
// end precedes their start wrap across the year boundary (e.g. Dec 15–Jan 15).
type SeasonPeriod struct {
	StartMonth int     `json:"start_month"`
	StartDay   int     `json:"start_day"`
	EndMonth   int     `json:"end_month"`
	EndDay     int     `json:"end_day"`
	KIssue     float64 `json:"k_issue"`
	KAmount    float64 `json:"k_amount"`
	PeriodName string  `json:"period_name"`
}

// MacroLogRecord is one row of macro_params_log: the interpolated macro state
// of a month together with the activity coefficient computed from it.
type MacroLogRecord struct {
	YearMonth        string
	RateCBR          float64
	EmploymentRate   float64
	UnemploymentRate float64
	MacroIndex       float64
	KMacroCalculated float64
	Source           string
}

// GenerationReport summarizes one portfolio generation run.
type GenerationReport struct {
	BatchID       string         `json:"batch_id"`
	InsertedTotal int            `json:"inserted_total"`
	TotalLoans    int            `json:"total_loans"`
	LoansByYear   map[string]int `json:"loans_by_year"`
}
