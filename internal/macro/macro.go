// Package macro expands sparse macroeconomic anchor points into a complete
// monthly series and resolves seasonal multipliers for calendar dates.
package macro

import (
	"fmt"
	"time"

	"github.com/iRatG/loan-portfolio/internal/models"
	"github.com/iRatG/loan-portfolio/internal/refdata"
)

// Reference values the activity coefficient measures deviations against.
const (
	referenceRateCBR    = 8.0
	referenceEmployment = 94.0
)

// MonthlySeries is the complete interpolated macro series over a simulation
// window. Lookups outside the window clamp to the nearest edge month.
type MonthlySeries struct {
	startYear int
	endYear   int
	states    []models.MacroState // one per month, index 0 = January of startYear
}

// monthIndex maps (year, month) to a position on the integer month grid.
func (s *MonthlySeries) monthIndex(year, month int) int {
	idx := (year-s.startYear)*12 + month - 1
	if idx < 0 {
		return 0
	}
	if idx >= len(s.states) {
		return len(s.states) - 1
	}
	return idx
}

// At returns the macro state of the given month. Months before or after the
// window hold the edge values constant.
func (s *MonthlySeries) At(year, month int) models.MacroState {
	return s.states[s.monthIndex(year, month)]
}

// Interpolate expands the anchors into one MacroState per month of the window
// [startYear, endYear] by linear interpolation on the month-index grid. Values
// before the first anchor and after the last one hold constant; there is no
// extrapolation. Anchors outside the window are ignored; the call fails when
// none fall inside it.
func Interpolate(anchors []refdata.MacroAnchor, startYear, endYear int) (*MonthlySeries, error) {
	if len(anchors) == 0 {
		return nil, fmt.Errorf("no macro anchors provided")
	}
	months := (endYear - startYear + 1) * 12

	xs := make([]float64, 0, len(anchors))
	ys := make([]models.MacroState, 0, len(anchors))
	for _, a := range anchors {
		idx := (a.Year-startYear)*12 + a.Month - 1
		if idx < 0 || idx >= months {
			continue
		}
		xs = append(xs, float64(idx))
		ys = append(ys, a.MacroState)
	}
	if len(xs) == 0 {
		return nil, fmt.Errorf("macro anchors do not overlap simulation window %d-%d", startYear, endYear)
	}

	states := make([]models.MacroState, months)
	for i := range states {
		x := float64(i)
		states[i] = models.MacroState{
			RateCBR:          interp(x, xs, ys, func(m models.MacroState) float64 { return m.RateCBR }),
			EmploymentRate:   interp(x, xs, ys, func(m models.MacroState) float64 { return m.EmploymentRate }),
			UnemploymentRate: interp(x, xs, ys, func(m models.MacroState) float64 { return m.UnemploymentRate }),
			MacroIndex:       interp(x, xs, ys, func(m models.MacroState) float64 { return m.MacroIndex }),
		}
	}
	return &MonthlySeries{startYear: startYear, endYear: endYear, states: states}, nil
}

// interp linearly interpolates a single macro field at x over anchor break
// points xs (sorted ascending), holding edge values constant outside the
// anchor range.
func interp(x float64, xs []float64, ys []models.MacroState, field func(models.MacroState) float64) float64 {
	if x <= xs[0] {
		return field(ys[0])
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return field(ys[last])
	}
	for i := 1; i <= last; i++ {
		if x <= xs[i] {
			x0, x1 := xs[i-1], xs[i]
			y0, y1 := field(ys[i-1]), field(ys[i])
			if x1 == x0 {
				return y1
			}
			return y0 + (y1-y0)*(x-x0)/(x1-x0)
		}
	}
	return field(ys[last])
}

// ResolveSeason maps a calendar date to the first seasonal period containing
// it. Periods whose end precedes their start wrap across the year boundary.
// No match yields neutral multipliers and no label.
func ResolveSeason(periods []models.SeasonPeriod, date time.Time) models.SeasonalState {
	m, d := int(date.Month()), date.Day()
	for _, p := range periods {
		var inRange bool
		if p.StartMonth < p.EndMonth || (p.StartMonth == p.EndMonth && p.StartDay <= p.EndDay) {
			inRange = (m > p.StartMonth || (m == p.StartMonth && d >= p.StartDay)) &&
				(m < p.EndMonth || (m == p.EndMonth && d <= p.EndDay))
		} else {
			inRange = (m > p.StartMonth || (m == p.StartMonth && d >= p.StartDay)) ||
				(m < p.EndMonth || (m == p.EndMonth && d <= p.EndDay))
		}
		if inRange {
			state := models.SeasonalState{KIssue: p.KIssue, KAmount: p.KAmount}
			if p.PeriodName != "" {
				name := p.PeriodName
				state.PeriodName = &name
			}
			return state
		}
	}
	return models.NeutralSeason()
}

// ActivityCoefficient computes k_macro: the issuance activity multiplier of a
// month. Key-rate growth above the 8% reference suppresses activity scaled by
// alphaRate; employment above the 94% reference boosts it scaled by
// betaEmployment; the composite macro index multiplies the result.
func ActivityCoefficient(m models.MacroState, alphaRate, betaEmployment float64) float64 {
	kRate := 1.0 - alphaRate*(m.RateCBR-referenceRateCBR)/referenceRateCBR
	kEmp := 1.0 + betaEmployment*(m.EmploymentRate-referenceEmployment)/referenceEmployment
	return kRate * kEmp * m.MacroIndex
}
