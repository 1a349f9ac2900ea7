// Package generator synthesizes the initial loan portfolio: for every month
// of the simulation window it derives an issuance volume from macro and
// seasonal conditions and samples individual loan records under bounded
// randomness. A single seeded generator drives all draws in issuance order,
// so a pinned seed reproduces the portfolio exactly.
package generator

import (
	"math"
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

const (
	defaultProductCode = "consumer_loan"
	defaultBaseMargin  = 0.05

	amountNoiseStd = 0.3
	rateNoiseStd   = 0.02
	termNoiseStd   = 0.2
)

// Generator produces the loan portfolio for a simulation window.
type Generator struct {
	loanCfg     config.LoanParameters
	sensitivity config.Sensitivity
	baseMonthly int
	series      *macro.MonthlySeries
	seasons     []models.SeasonPeriod
	products    map[string]refdata.Product
	rand        *rng.Source
	log         *logrus.Logger
}

// New builds a generator over an interpolated macro series.
func New(cfg *config.Config, series *macro.MonthlySeries, seasons []models.SeasonPeriod,
	products map[string]refdata.Product, rand *rng.Source, log *logrus.Logger) *Generator {
	return &Generator{
		loanCfg:     cfg.LoanParameters,
		sensitivity: cfg.Sensitivity,
		baseMonthly: cfg.Simulation.BaseMonthlyIssuance,
		series:      series,
		seasons:     seasons,
		products:    products,
		rand:        rand,
		log:         log,
	}
}

// MonthlyIssuance derives the loan count for one month: the base volume scaled
// by the macro activity coefficient, the seasonal issuance multiplier and a
// bounded uniform random factor, rounded and floored at zero.
func (g *Generator) MonthlyIssuance(m models.MacroState, season models.SeasonalState) int {
	kMacro := macro.ActivityCoefficient(m, g.sensitivity.AlphaRate, g.sensitivity.BetaEmployment)
	kRandom := g.rand.Uniform(0.9, 1.1)
	n := int(math.Round(float64(g.baseMonthly) * kMacro * season.KIssue * kRandom))
	if n < 0 {
		return 0
	}
	return n
}

// GenerateMonth synthesizes all loans issued in a given month.
func (g *Generator) GenerateMonth(year int, month time.Month, batchID string) []models.Loan {
	state := g.series.At(year, int(month))
	cohort := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	season := macro.ResolveSeason(g.seasons, cohort)

	n := g.MonthlyIssuance(state, season)
	if n == 0 {
		g.log.Debugf("No loans generated for %04d-%02d", year, month)
		return nil
	}

	issueDates := g.spreadOverMonth(n, year, month)
	loans := make([]models.Loan, 0, n)
	for _, issueDate := range issueDates {
		loans = append(loans, models.Loan{
			IssueDate:             issueDate,
			CohortMonth:           cohort,
			Amount:                g.sampleAmount(season),
			InterestRate:          g.sampleRate(state),
			TermMonths:            g.sampleTerm(),
			ProductType:           defaultProductCode,
			MacroRateCBR:          round2f(state.RateCBR),
			MacroEmploymentRate:   round2f(state.EmploymentRate),
			MacroUnemploymentRate: round2f(state.UnemploymentRate),
			MacroIndex:            round2f(state.MacroIndex),
			SeasonKIssue:          round2f(season.KIssue),
			SeasonKAmount:         round2f(season.KAmount),
			SeasonPeriodName:      season.PeriodName,
			BatchID:               batchID,
		})
	}
	return loans
}

// sampleAmount draws the principal around the configured average with
// Gaussian noise, scaled by the seasonal amount multiplier and clamped to the
// configured bounds.
func (g *Generator) sampleAmount(season models.SeasonalState) decimal.Decimal {
	base := g.loanCfg.AvgAmount * (1.0 + g.rand.Normal(0, amountNoiseStd))
	amount := finance.Clamp(base*season.KAmount, g.loanCfg.MinAmount, g.loanCfg.MaxAmount)
	return decimal.NewFromFloat(amount).Round(2)
}

// sampleRate draws the annual nominal rate as key rate plus the product margin
// plus Gaussian noise, floored at zero and stored as a percentage.
func (g *Generator) sampleRate(state models.MacroState) decimal.Decimal {
	margin := defaultBaseMargin
	if p, ok := g.products[defaultProductCode]; ok {
		margin = p.BaseMargin
	}
	rate := state.RateCBR/100.0 + margin + g.rand.Normal(0, rateNoiseStd)
	if rate < 0 {
		rate = 0
	}
	return decimal.NewFromFloat(rate * 100.0).Round(2)
}

// sampleTerm draws the term around the configured average with Gaussian
// noise, rounded and clamped to the configured bounds.
func (g *Generator) sampleTerm() int {
	base := float64(g.loanCfg.AvgTermMonths) * (1.0 + g.rand.Normal(0, termNoiseStd))
	return finance.ClampInt(int(math.Round(base)), g.loanCfg.MinTermMonths, g.loanCfg.MaxTermMonths)
}

// spreadOverMonth spreads n issue dates uniformly at random across the
// calendar days of the month.
func (g *Generator) spreadOverMonth(n int, year int, month time.Month) []time.Time {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := daysInMonth(year, month)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, g.rand.Intn(days))
	}
	return dates
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func round2f(v float64) float64 {
	return math.Round(v*100) / 100
}
