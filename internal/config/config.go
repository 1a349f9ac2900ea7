package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/iRatG/loan-portfolio/internal/models"
)

// defaultIntentWorsenMultiplier is the regulatory forbearance dampening
// applied when the config omits intent_worsen_multiplier_2014_2015.
const defaultIntentWorsenMultiplier = 0.85

// Simulation holds the window and volume parameters of a run.
type Simulation struct {
	StartYear           int   `mapstructure:"start_year" validate:"required"`
	EndYear             int   `mapstructure:"end_year" validate:"required"`
	BaseMonthlyIssuance int   `mapstructure:"base_monthly_issuance" validate:"gt=0"`
	RandomSeed          int64 `mapstructure:"random_seed"`
}

// LoanParameters bounds the sampled loan amount and term.
type LoanParameters struct {
	AvgAmount     float64 `mapstructure:"avg_amount" validate:"gt=0"`
	MinAmount     float64 `mapstructure:"min_amount" validate:"gt=0"`
	MaxAmount     float64 `mapstructure:"max_amount" validate:"gt=0"`
	AvgTermMonths int     `mapstructure:"avg_term_months" validate:"gte=1"`
	MinTermMonths int     `mapstructure:"min_term_months" validate:"gte=1"`
	MaxTermMonths int     `mapstructure:"max_term_months" validate:"gte=1"`
}

// Sensitivity holds the macro activity coefficient sensitivities.
type Sensitivity struct {
	AlphaRate      float64 `mapstructure:"alpha_rate"`
	BetaEmployment float64 `mapstructure:"beta_employment"`
	GammaMacro     float64 `mapstructure:"gamma_macro"`
}

// Database holds sink connection parameters.
type Database struct {
	ConnectionString string `mapstructure:"connection_string" validate:"required"`
}

// Collections holds the delinquency-handling policies of the fact simulator.
type Collections struct {
	BucketPriority                 string               `mapstructure:"bucket_priority"`
	DPDMode                        string               `mapstructure:"dpd_mode"`
	EscalationAfterNMissed         int                  `mapstructure:"escalation_after_n_missed_principal" validate:"gte=0"`
	PCureByBucket                  map[string]float64   `mapstructure:"p_cure_by_bucket"`
	TypicalCureMultiple            float64              `mapstructure:"typical_cure_multiple" validate:"gte=0"`
	IntentWorsenMultiplier20142015 float64              `mapstructure:"intent_worsen_multiplier_2014_2015"`
	PaymentPolicyByBucket          map[string][]float64 `mapstructure:"payment_policy_by_bucket"`

	// Parsed policy enums, populated during Load.
	Priority models.BucketPriority `mapstructure:"-"`
	Mode     models.DPDMode        `mapstructure:"-"`
}

// Refs points at the reference datasets loaded once per run.
type Refs struct {
	MacroReference   string `mapstructure:"macro_reference" validate:"required"`
	SeasonReference  string `mapstructure:"season_reference" validate:"required"`
	MigrationMatrix  string `mapstructure:"migration_matrix" validate:"required"`
	NoiseReference   string `mapstructure:"noise_reference" validate:"required"`
	ProductReference string `mapstructure:"product_reference" validate:"required"`
	// CBRURL enables the optional key-rate refresh when non-empty.
	CBRURL string `mapstructure:"cbr_url"`
}

// Report configures the end-of-run generation report.
type Report struct {
	Path string `mapstructure:"path"`

	// Optional email notification; disabled when To is empty.
	EmailTo      string `mapstructure:"email_to"`
	SenderEmail  string `mapstructure:"sender_email"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     string `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// Schedule enables periodic re-generation when Cron is a valid cron spec.
type Schedule struct {
	Cron string `mapstructure:"cron"`
}

// Config is the full application configuration.
type Config struct {
	Simulation     Simulation     `mapstructure:"simulation" validate:"required"`
	LoanParameters LoanParameters `mapstructure:"loan_parameters" validate:"required"`
	Sensitivity    Sensitivity    `mapstructure:"sensitivity" validate:"required"`
	Database       Database       `mapstructure:"database" validate:"required"`
	Collections    Collections    `mapstructure:"collections" validate:"required"`
	Refs           Refs           `mapstructure:"refs" validate:"required"`
	Report         Report         `mapstructure:"report"`
	Schedule       Schedule       `mapstructure:"schedule"`
	LogLevel       string         `mapstructure:"log_level"`
}

// Load reads the TOML configuration file, applies environment overrides and
// validates the result. Policy names are parsed into closed enums here so an
// unknown policy fails the run before anything is generated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides for deployment-specific values.
	if conn := os.Getenv("DB_CONN"); conn != "" {
		cfg.Database.ConnectionString = conn
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		cfg.Report.SMTPPassword = pass
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural and semantic constraints of a configuration,
// resolves the string policy names into enums and applies the crisis
// dampening default. The cure block is required: a missing cure multiple or
// probability table aborts the run instead of silently disabling cure.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sim := cfg.Simulation
	if sim.StartYear > sim.EndYear {
		return fmt.Errorf("start_year %d must be <= end_year %d", sim.StartYear, sim.EndYear)
	}

	lp := cfg.LoanParameters
	if lp.MinAmount >= lp.MaxAmount {
		return fmt.Errorf("min_amount must be < max_amount")
	}
	if lp.MinTermMonths >= lp.MaxTermMonths {
		return fmt.Errorf("min_term_months must be < max_term_months")
	}

	coll := &cfg.Collections
	priority, err := models.ParseBucketPriority(coll.BucketPriority)
	if err != nil {
		return err
	}
	coll.Priority = priority

	mode, err := models.ParseDPDMode(coll.DPDMode)
	if err != nil {
		return err
	}
	coll.Mode = mode

	if coll.TypicalCureMultiple <= 0 {
		return fmt.Errorf("typical_cure_multiple must be positive, got %v", coll.TypicalCureMultiple)
	}
	if len(coll.PCureByBucket) == 0 {
		return fmt.Errorf("p_cure_by_bucket must not be empty")
	}
	if coll.IntentWorsenMultiplier20142015 == 0 {
		coll.IntentWorsenMultiplier20142015 = defaultIntentWorsenMultiplier
	}

	for bucket, p := range coll.PCureByBucket {
		if _, err := models.ParseBucket(bucket); err != nil {
			return fmt.Errorf("p_cure_by_bucket: %w", err)
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("p_cure_by_bucket[%s] must be within [0, 1], got %v", bucket, p)
		}
	}
	for bucket, fractions := range coll.PaymentPolicyByBucket {
		if _, err := models.ParseBucket(bucket); err != nil {
			return fmt.Errorf("payment_policy_by_bucket: %w", err)
		}
		if len(fractions) != 4 {
			return fmt.Errorf("payment_policy_by_bucket[%s] must have 4 fractions, got %d", bucket, len(fractions))
		}
		for _, f := range fractions {
			if f < 0 {
				return fmt.Errorf("payment_policy_by_bucket[%s] fractions must be non-negative", bucket)
			}
		}
	}
	return nil
}

// PaymentFractions returns the configured policy for a bucket, falling back
// to the default ladder when the bucket is absent from the config.
func (c *Collections) PaymentFractions(b models.Bucket) models.PaymentFractions {
	if fractions, ok := c.PaymentPolicyByBucket[string(b)]; ok && len(fractions) == 4 {
		var pf models.PaymentFractions
		copy(pf[:], fractions)
		return pf
	}
	return models.DefaultPaymentFractions(b)
}

// CureProbability returns the configured cure probability for a bucket, zero
// when absent.
func (c *Collections) CureProbability(b models.Bucket) float64 {
	return c.PCureByBucket[string(b)]
}
