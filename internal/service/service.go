package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iRatG/loan-portfolio/internal/config"
	"github.com/iRatG/loan-portfolio/internal/generator"
	"github.com/iRatG/loan-portfolio/internal/integrations/cbr"
	"github.com/iRatG/loan-portfolio/internal/macro"
	"github.com/iRatG/loan-portfolio/internal/models"
	"github.com/iRatG/loan-portfolio/internal/refdata"
	"github.com/iRatG/loan-portfolio/internal/repository"
	"github.com/iRatG/loan-portfolio/internal/rng"
	"github.com/iRatG/loan-portfolio/internal/simulator"
	"github.com/iRatG/loan-portfolio/internal/utils/email"
)

// Service orchestrates a full simulation run: portfolio generation, fact
// simulation and reporting. A run is all-or-nothing: each stage commits in a
// single bulk write and any failure aborts without partial output.
type Service struct {
	repo *repository.Repository
	log  *logrus.Logger
	cfg  *config.Config
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, log: log, cfg: cfg}
}

// refs bundles the reference datasets of one run.
type refs struct {
	anchors  []refdata.MacroAnchor
	seasons  []models.SeasonPeriod
	matrix   *models.MigrationMatrix
	noise    *refdata.Noise
	products map[string]refdata.Product
}

func (s *Service) loadRefs() (*refs, error) {
	r := &refs{}
	var err error
	if r.anchors, err = refdata.LoadMacroAnchors(s.cfg.Refs.MacroReference); err != nil {
		return nil, err
	}
	if r.seasons, err = refdata.LoadSeasonPeriods(s.cfg.Refs.SeasonReference); err != nil {
		return nil, err
	}
	if r.matrix, err = refdata.LoadMigrationMatrix(s.cfg.Refs.MigrationMatrix); err != nil {
		return nil, err
	}
	if r.noise, err = refdata.LoadNoise(s.cfg.Refs.NoiseReference); err != nil {
		return nil, err
	}
	if r.products, err = refdata.LoadProducts(s.cfg.Refs.ProductReference); err != nil {
		return nil, err
	}
	return r, nil
}

// refreshKeyRate overrides the most recent anchor's key rate with the live
// CBR value. Best effort: on any error the run proceeds with file anchors.
func (s *Service) refreshKeyRate(anchors []refdata.MacroAnchor) {
	if s.cfg.Refs.CBRURL == "" || len(anchors) == 0 {
		return
	}
	client := cbr.NewClient(s.cfg.Refs.CBRURL, s.log)
	rate, err := client.KeyRate()
	if err != nil {
		s.log.Warnf("CBR key rate refresh failed, using file anchors: %v", err)
		return
	}
	last := &anchors[len(anchors)-1]
	s.log.Infof("Overriding anchor %04d-%02d key rate %.2f -> %.2f",
		last.Year, last.Month, last.RateCBR, rate)
	last.RateCBR = rate
}

// Run executes both simulation stages under one batch id and returns the
// generation report.
func (s *Service) Run(batchID string) (*models.GenerationReport, error) {
	started := time.Now()

	refs, err := s.loadRefs()
	if err != nil {
		return nil, err
	}
	s.refreshKeyRate(refs.anchors)

	sim := s.cfg.Simulation
	series, err := macro.Interpolate(refs.anchors, sim.StartYear, sim.EndYear)
	if err != nil {
		return nil, err
	}

	// One seeded source drives all draws: issuance order during generation,
	// then loan order, month order during simulation.
	rand := rng.New(sim.RandomSeed)

	inserted, err := s.generatePortfolio(refs, series, rand, batchID)
	if err != nil {
		return nil, err
	}

	if err := s.simulateFacts(refs, series, rand, batchID); err != nil {
		return nil, err
	}

	report, err := s.buildReport(batchID, inserted)
	if err != nil {
		return nil, err
	}

	s.log.Infof("Run %s complete in %s: %d loans", batchID, time.Since(started).Round(time.Millisecond), report.TotalLoans)
	return report, nil
}

// generatePortfolio runs Module 1: month-by-month loan issuance over the
// window, committed in one bulk write.
func (s *Service) generatePortfolio(refs *refs, series *macro.MonthlySeries, rand *rng.Source, batchID string) (int, error) {
	gen := generator.New(s.cfg, series, refs.seasons, refs.products, rand, s.log)

	var loans []models.Loan
	sim := s.cfg.Simulation
	for year := sim.StartYear; year <= sim.EndYear; year++ {
		for month := time.January; month <= time.December; month++ {
			monthly := gen.GenerateMonth(year, month, batchID)
			loans = append(loans, monthly...)

			state := series.At(year, int(month))
			kMacro := macro.ActivityCoefficient(state, s.cfg.Sensitivity.AlphaRate, s.cfg.Sensitivity.BetaEmployment)
			if err := s.repo.UpsertMacroLog(models.MacroLogRecord{
				YearMonth:        fmt.Sprintf("%04d-%02d-01", year, month),
				RateCBR:          state.RateCBR,
				EmploymentRate:   state.EmploymentRate,
				UnemploymentRate: state.UnemploymentRate,
				MacroIndex:       state.MacroIndex,
				KMacroCalculated: kMacro,
				Source:           "interpolated",
			}); err != nil {
				return 0, err
			}

			s.log.Debugf("Generated %d loans for %04d-%02d (k_macro=%.3f)", len(monthly), year, month, kMacro)
		}
	}

	inserted, err := s.repo.SaveLoans(loans)
	if err != nil {
		return 0, err
	}
	s.log.Infof("Portfolio generation complete: %d loans", inserted)
	return inserted, nil
}

// simulateFacts runs Module 2: reads the issued portfolio back and evolves
// every loan through its monthly state machine.
func (s *Service) simulateFacts(refs *refs, series *macro.MonthlySeries, rand *rng.Source, batchID string) error {
	loans, err := s.repo.LoadLoans(batchID)
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		s.log.Warnf("No loans in batch %s, skipping fact simulation", batchID)
		return nil
	}

	sim := simulator.New(&s.cfg.Collections, series, refs.seasons, refs.matrix, refs.noise, rand, s.log)
	facts := sim.Run(loans, batchID)

	if err := s.repo.SaveFacts(facts); err != nil {
		return err
	}
	s.log.Infof("Fact history committed: %d rows", len(facts))
	return nil
}

// buildReport aggregates the run summary, saves it as JSON and optionally
// emails it.
func (s *Service) buildReport(batchID string, inserted int) (*models.GenerationReport, error) {
	total, byYear, err := s.repo.ReportCounts(batchID)
	if err != nil {
		return nil, err
	}
	report := &models.GenerationReport{
		BatchID:       batchID,
		InsertedTotal: inserted,
		TotalLoans:    total,
		LoansByYear:   byYear,
	}

	if path := s.cfg.Report.Path; path != "" {
		if err := saveJSON(path, report); err != nil {
			return nil, err
		}
		s.log.Infof("Saved generation report to %s", path)
	}

	if s.cfg.Report.EmailTo != "" {
		sender := email.NewSender(s.cfg.Report, s.log)
		if err := sender.SendGenerationReport(*report); err != nil {
			// Notification failure does not invalidate committed output.
			s.log.Warnf("Report notification failed: %v", err)
		}
	}
	return report, nil
}

func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
