// Package refdata loads the reference datasets consumed by the generator and
// the fact simulator: macro anchor points, seasonal periods, the delinquency
// migration matrix, noise parameters and the product table. Everything is
// loaded once per run and never mutated afterwards.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/iRatG/loan-portfolio/internal/models"
)

// MacroAnchor is one sparse macro observation keyed by year and month.
type MacroAnchor struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	models.MacroState
}

// Noise holds the stochastic scenario parameters of the fact simulator.
type Noise struct {
	FullEarlyRepayProb float64 `json:"full_early_repay_prob"`
}

// Product is one row of the product reference table.
type Product struct {
	Code       string  `json:"code"`
	Type       string  `json:"type"`
	BaseMargin float64 `json:"base_margin"`
	FeeRate    float64 `json:"fee_rate"`
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read reference file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed reference file %s: %w", path, err)
	}
	return nil
}

// LoadMacroAnchors reads the sparse macro anchor points, sorted by year/month.
func LoadMacroAnchors(path string) ([]MacroAnchor, error) {
	var raw struct {
		MacroData []struct {
			Year             int     `json:"year"`
			Month            int     `json:"month"`
			RateCBR          float64 `json:"rate_cbr"`
			EmploymentRate   float64 `json:"employment_rate"`
			UnemploymentRate float64 `json:"unemployment_rate"`
			MacroIndex       float64 `json:"macro_index"`
		} `json:"macro_data"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	if len(raw.MacroData) == 0 {
		return nil, fmt.Errorf("no macro anchors in %s", path)
	}

	anchors := make([]MacroAnchor, 0, len(raw.MacroData))
	for _, rec := range raw.MacroData {
		if rec.Month < 1 || rec.Month > 12 {
			return nil, fmt.Errorf("macro anchor %d-%d: month out of range", rec.Year, rec.Month)
		}
		anchors = append(anchors, MacroAnchor{
			Year:  rec.Year,
			Month: rec.Month,
			MacroState: models.MacroState{
				RateCBR:          rec.RateCBR,
				EmploymentRate:   rec.EmploymentRate,
				UnemploymentRate: rec.UnemploymentRate,
				MacroIndex:       rec.MacroIndex,
			},
		})
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].Year != anchors[j].Year {
			return anchors[i].Year < anchors[j].Year
		}
		return anchors[i].Month < anchors[j].Month
	})
	return anchors, nil
}

// LoadSeasonPeriods reads the ordered seasonal period definitions.
func LoadSeasonPeriods(path string) ([]models.SeasonPeriod, error) {
	var raw struct {
		SeasonalCoefficients []models.SeasonPeriod `json:"seasonal_coefficients"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	for i, p := range raw.SeasonalCoefficients {
		if p.StartMonth < 1 || p.StartMonth > 12 || p.EndMonth < 1 || p.EndMonth > 12 {
			return nil, fmt.Errorf("season period %d: month out of range", i)
		}
	}
	return raw.SeasonalCoefficients, nil
}

// LoadMigrationMatrix reads the per-year bucket migration weights into a typed
// table indexed by (year, from-bucket).
func LoadMigrationMatrix(path string) (*models.MigrationMatrix, error) {
	var raw struct {
		Yearly map[string]map[string]map[string]float64 `json:"yearly"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	matrix := &models.MigrationMatrix{Yearly: make(map[int]map[models.Bucket]models.BucketWeights)}
	for yearKey, byBucket := range raw.Yearly {
		year, err := strconv.Atoi(yearKey)
		if err != nil {
			return nil, fmt.Errorf("migration matrix: invalid year key %q", yearKey)
		}
		rows := make(map[models.Bucket]models.BucketWeights, len(byBucket))
		for fromKey, toProbs := range byBucket {
			from, err := models.ParseBucket(fromKey)
			if err != nil {
				return nil, fmt.Errorf("migration matrix year %d: %w", year, err)
			}
			var weights models.BucketWeights
			for toKey, p := range toProbs {
				to, err := models.ParseBucket(toKey)
				if err != nil {
					return nil, fmt.Errorf("migration matrix %d/%s: %w", year, fromKey, err)
				}
				weights[to.Order()] = p
			}
			rows[from] = weights
		}
		matrix.Yearly[year] = rows
	}
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// LoadNoise reads the noise scenario parameters.
func LoadNoise(path string) (*Noise, error) {
	var raw struct {
		Noise Noise `json:"noise"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	n := raw.Noise
	if n.FullEarlyRepayProb < 0 || n.FullEarlyRepayProb > 1 {
		return nil, fmt.Errorf("full_early_repay_prob must be within [0, 1], got %v", n.FullEarlyRepayProb)
	}
	return &n, nil
}

// LoadProducts reads the product reference table keyed by product code.
func LoadProducts(path string) (map[string]Product, error) {
	var raw struct {
		Products []Product `json:"products"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}
	products := make(map[string]Product, len(raw.Products))
	for _, p := range raw.Products {
		if p.Code == "" {
			return nil, fmt.Errorf("product reference %s: empty product code", path)
		}
		products[p.Code] = p
	}
	return products, nil
}
