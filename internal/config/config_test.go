package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iRatG/loan-portfolio/internal/models"
)

func validConfig() *Config {
	return &Config{
		Simulation: Simulation{
			StartYear:           2013,
			EndYear:             2017,
			BaseMonthlyIssuance: 100,
			RandomSeed:          42,
		},
		LoanParameters: LoanParameters{
			AvgAmount:     300000,
			MinAmount:     50000,
			MaxAmount:     1500000,
			AvgTermMonths: 36,
			MinTermMonths: 6,
			MaxTermMonths: 84,
		},
		Sensitivity: Sensitivity{AlphaRate: 0.6, BetaEmployment: 1.5, GammaMacro: 1.0},
		Database:    Database{ConnectionString: "postgres://localhost/test"},
		Collections: Collections{
			BucketPriority:      "max",
			DPDMode:             "age_oldest",
			TypicalCureMultiple: 1.5,
			PCureByBucket:       map[string]float64{"1-30": 0.35},
			PaymentPolicyByBucket: map[string][]float64{
				"0": {1, 1, 1, 1},
			},
		},
		Refs: Refs{
			MacroReference:   "macro.json",
			SeasonReference:  "season.json",
			MigrationMatrix:  "matrix.json",
			NoiseReference:   "noise.json",
			ProductReference: "products.json",
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collections.Priority != models.PriorityMax {
		t.Errorf("priority not resolved, got %v", cfg.Collections.Priority)
	}
	if cfg.Collections.Mode != models.DPDAgeOldest {
		t.Errorf("dpd mode not resolved, got %v", cfg.Collections.Mode)
	}
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Collections.BucketPriority = "optimistic"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown bucket_priority")
	}

	cfg = validConfig()
	cfg.Collections.DPDMode = "reset_always"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown dpd_mode")
	}
}

func TestValidateRejectsInvertedWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Simulation.StartYear = 2018
	cfg.Simulation.EndYear = 2013
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for start_year > end_year")
	}
}

func TestValidateRequiresCureBlock(t *testing.T) {
	cfg := validConfig()
	cfg.Collections.TypicalCureMultiple = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing typical_cure_multiple")
	}

	cfg = validConfig()
	cfg.Collections.PCureByBucket = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for missing p_cure_by_bucket")
	}
}

func TestValidateDefaultsCrisisMultiplier(t *testing.T) {
	cfg := validConfig()
	cfg.Collections.IntentWorsenMultiplier20142015 = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collections.IntentWorsenMultiplier20142015 != 0.85 {
		t.Errorf("crisis multiplier not defaulted, got %v", cfg.Collections.IntentWorsenMultiplier20142015)
	}

	cfg = validConfig()
	cfg.Collections.IntentWorsenMultiplier20142015 = 0.7
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collections.IntentWorsenMultiplier20142015 != 0.7 {
		t.Errorf("configured multiplier overwritten, got %v", cfg.Collections.IntentWorsenMultiplier20142015)
	}
}

func TestValidateRejectsBadCureProbability(t *testing.T) {
	cfg := validConfig()
	cfg.Collections.PCureByBucket["31-60"] = 1.2
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for probability above 1")
	}

	cfg = validConfig()
	cfg.Collections.PCureByBucket["not-a-bucket"] = 0.5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown bucket key")
	}
}

func TestValidateRejectsBadPaymentPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Collections.PaymentPolicyByBucket["1-30"] = []float64{1, 1}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for wrong fraction count")
	}

	cfg = validConfig()
	cfg.Collections.PaymentPolicyByBucket["1-30"] = []float64{1, -0.5, 0, 0}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative fraction")
	}
}

func TestPaymentFractionsFallsBackToLadder(t *testing.T) {
	coll := &Collections{
		PaymentPolicyByBucket: map[string][]float64{
			"1-30": {0.9, 0.9, 0.1, 0.1},
		},
	}

	got := coll.PaymentFractions(models.Bucket1To30)
	if got[0] != 0.9 || got[3] != 0.1 {
		t.Errorf("configured policy not used: %v", got)
	}

	got = coll.PaymentFractions(models.Bucket31To60)
	want := models.DefaultPaymentFractions(models.Bucket31To60)
	if got != want {
		t.Errorf("expected default ladder %v, got %v", want, got)
	}
}

func TestLoadReadsTOMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "debug"

[simulation]
start_year = 2013
end_year = 2014
base_monthly_issuance = 50
random_seed = 7

[loan_parameters]
avg_amount = 300000.0
min_amount = 50000.0
max_amount = 1500000.0
avg_term_months = 36
min_term_months = 6
max_term_months = 84

[sensitivity]
alpha_rate = 0.6
beta_employment = 1.5
gamma_macro = 1.0

[database]
connection_string = "postgres://file/db"

[collections]
bucket_priority = "intent"
dpd_mode = "age_oldest"
typical_cure_multiple = 1.5

[collections.p_cure_by_bucket]
"1-30" = 0.35

[refs]
macro_reference = "macro.json"
season_reference = "season.json"
migration_matrix = "matrix.json"
noise_reference = "noise.json"
product_reference = "products.json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DB_CONN", "postgres://env/db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.ConnectionString != "postgres://env/db" {
		t.Errorf("DB_CONN override not applied, got %q", cfg.Database.ConnectionString)
	}
	if cfg.Collections.Priority != models.PriorityIntent {
		t.Errorf("expected intent priority, got %v", cfg.Collections.Priority)
	}
	if cfg.Simulation.RandomSeed != 7 {
		t.Errorf("expected seed 7, got %d", cfg.Simulation.RandomSeed)
	}
	if cfg.Collections.IntentWorsenMultiplier20142015 != 0.85 {
		t.Errorf("expected defaulted crisis multiplier 0.85, got %v", cfg.Collections.IntentWorsenMultiplier20142015)
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "failed to read config") {
		t.Errorf("unexpected error message: %v", err)
	}
}
