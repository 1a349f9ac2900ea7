package repository

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/iRatG/loan-portfolio/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository provides database operations for the generated portfolio and
// fact history. Both stages write in a single transaction: a failed run
// commits nothing.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate applies the embedded schema migrations.
func (r *Repository) Migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// SaveLoans bulk-appends the generated portfolio to loan_issue via COPY
// inside one transaction. Loan ids are assigned by the database; read the
// batch back with LoadLoans before simulating.
func (r *Repository) SaveLoans(loans []models.Loan) (int, error) {
	if len(loans) == 0 {
		return 0, nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn("loan_issue",
		"issue_date", "cohort_month", "loan_amount", "interest_rate", "term_months",
		"product_type", "macro_rate_cbr", "macro_employment_rate", "macro_unemployment_rate",
		"macro_index", "season_k_issue", "season_k_amount", "season_period_name", "batch_id"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare loan copy: %w", err)
	}

	for _, loan := range loans {
		var periodName sql.NullString
		if loan.SeasonPeriodName != nil {
			periodName = sql.NullString{String: *loan.SeasonPeriodName, Valid: true}
		}
		if _, err := stmt.Exec(
			loan.IssueDate, loan.CohortMonth,
			loan.Amount.StringFixed(2), loan.InterestRate.StringFixed(2), loan.TermMonths,
			loan.ProductType, loan.MacroRateCBR, loan.MacroEmploymentRate,
			loan.MacroUnemploymentRate, loan.MacroIndex,
			loan.SeasonKIssue, loan.SeasonKAmount, periodName, loan.BatchID,
		); err != nil {
			return 0, fmt.Errorf("failed to copy loan row: %w", err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return 0, fmt.Errorf("failed to flush loan copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close loan copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit loans: %w", err)
	}
	return len(loans), nil
}

// LoadLoans reads a batch of issued loans back in loan_id order, which fixes
// the simulation order and therefore the random draw order.
func (r *Repository) LoadLoans(batchID string) ([]models.Loan, error) {
	query := `
		SELECT loan_id, issue_date, cohort_month, loan_amount, interest_rate, term_months,
		       product_type, macro_rate_cbr, macro_employment_rate, macro_unemployment_rate,
		       macro_index, season_k_issue, season_k_amount, season_period_name, batch_id
		FROM loan_issue
		WHERE batch_id = $1
		ORDER BY loan_id`
	rows, err := r.db.Query(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		var (
			loan       models.Loan
			amount     string
			rate       string
			periodName sql.NullString
		)
		if err := rows.Scan(
			&loan.ID, &loan.IssueDate, &loan.CohortMonth, &amount, &rate, &loan.TermMonths,
			&loan.ProductType, &loan.MacroRateCBR, &loan.MacroEmploymentRate,
			&loan.MacroUnemploymentRate, &loan.MacroIndex,
			&loan.SeasonKIssue, &loan.SeasonKAmount, &periodName, &loan.BatchID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		if loan.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid loan amount %q: %w", amount, err)
		}
		if loan.InterestRate, err = decimal.NewFromString(rate); err != nil {
			return nil, fmt.Errorf("invalid interest rate %q: %w", rate, err)
		}
		if periodName.Valid {
			name := periodName.String
			loan.SeasonPeriodName = &name
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return loans, nil
}

// SaveFacts bulk-appends the monthly fact history via COPY inside one
// transaction.
func (r *Repository) SaveFacts(facts []models.MonthlyFactRecord) error {
	if len(facts) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn("credit_fact_history",
		"loan_id", "period_month", "mob", "balance_principal", "overdue_principal",
		"interest_scheduled", "overdue_interest", "scheduled_payment", "actual_payment",
		"dpd_bucket", "overdue_days", "status", "migration_scenario", "batch_id"))
	if err != nil {
		return fmt.Errorf("failed to prepare fact copy: %w", err)
	}

	for _, f := range facts {
		if _, err := stmt.Exec(
			f.LoanID, f.PeriodMonth, f.MOB,
			f.BalancePrincipal.StringFixed(2), f.OverduePrincipal.StringFixed(2),
			f.InterestScheduled.StringFixed(2), f.OverdueInterest.StringFixed(2),
			f.ScheduledPayment.StringFixed(2), f.ActualPayment.StringFixed(2),
			string(f.DPDBucket), f.OverdueDays, string(f.Status), f.MigrationScenario, f.BatchID,
		); err != nil {
			return fmt.Errorf("failed to copy fact row: %w", err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return fmt.Errorf("failed to flush fact copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close fact copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit facts: %w", err)
	}
	return nil
}

// UpsertMacroLog records the interpolated macro state of a month together
// with its computed activity coefficient.
func (r *Repository) UpsertMacroLog(rec models.MacroLogRecord) error {
	query := `
		INSERT INTO macro_params_log (year_month, rate_cbr, employment_rate, unemployment_rate,
		                              macro_index, k_macro_calculated, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (year_month) DO UPDATE SET
			rate_cbr = EXCLUDED.rate_cbr,
			employment_rate = EXCLUDED.employment_rate,
			unemployment_rate = EXCLUDED.unemployment_rate,
			macro_index = EXCLUDED.macro_index,
			k_macro_calculated = EXCLUDED.k_macro_calculated,
			source = EXCLUDED.source`
	if _, err := r.db.Exec(query,
		rec.YearMonth, rec.RateCBR, rec.EmploymentRate, rec.UnemploymentRate,
		rec.MacroIndex, rec.KMacroCalculated, rec.Source,
	); err != nil {
		return fmt.Errorf("failed to upsert macro log: %w", err)
	}
	return nil
}

// ReportCounts aggregates the issued portfolio for the generation report.
func (r *Repository) ReportCounts(batchID string) (int, map[string]int, error) {
	var total int
	if err := r.db.QueryRow(
		`SELECT COUNT(*) FROM loan_issue WHERE batch_id = $1`, batchID,
	).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("failed to count loans: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT EXTRACT(YEAR FROM issue_date)::int AS y, COUNT(*)
		FROM loan_issue
		WHERE batch_id = $1
		GROUP BY y ORDER BY y`, batchID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count loans by year: %w", err)
	}
	defer rows.Close()

	byYear := make(map[string]int)
	for rows.Next() {
		var year, count int
		if err := rows.Scan(&year, &count); err != nil {
			return 0, nil, fmt.Errorf("failed to scan year counts: %w", err)
		}
		byYear[fmt.Sprintf("%d", year)] = count
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to iterate year counts: %w", err)
	}
	return total, byYear, nil
}
