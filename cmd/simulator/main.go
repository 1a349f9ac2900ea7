package main

import (
	"database/sql"
	"flag"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iRatG/loan-portfolio/internal/config"
	"github.com/iRatG/loan-portfolio/internal/repository"
	"github.com/iRatG/loan-portfolio/internal/service"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to TOML configuration")
	batchID := flag.String("batch", "", "batch id for the run (default: random UUID)")
	flag.Parse()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.Database.ConnectionString)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	if err := repo.Migrate(); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}
	svc := service.NewService(repo, logger, cfg)

	runOnce := func() {
		id := *batchID
		if id == "" {
			id = uuid.New().String()
		}
		logger.Infof("Starting simulation run, batch %s", id)
		if _, err := svc.Run(id); err != nil {
			logger.Errorf("Simulation run %s failed: %v", id, err)
		}
	}

	if spec := cfg.Schedule.Cron; spec != "" {
		c := cron.New()
		if _, err := c.AddFunc(spec, runOnce); err != nil {
			logger.Fatalf("Invalid cron spec %q: %v", spec, err)
		}
		logger.Infof("Scheduled regeneration with cron spec %q", spec)
		c.Run()
		return
	}

	runOnce()
}
