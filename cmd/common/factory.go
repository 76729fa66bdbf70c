package common

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/jonesrussell/godocscan/internal/analysis"
	"github.com/jonesrussell/godocscan/internal/config"
	"github.com/jonesrussell/godocscan/internal/database"
	"github.com/jonesrussell/godocscan/internal/logger"
	"github.com/jonesrussell/godocscan/internal/processor"
	"github.com/jonesrussell/godocscan/internal/scanner"
	"github.com/jonesrussell/godocscan/internal/scheduler"
)

// Services bundles the repositories and services built on a CommandDeps.
type Services struct {
	Instances *database.InstanceRepository
	Bots      *database.BotRepository
	Documents *database.DocumentRepository
	Queue     *database.QueueRepository
	Results   *database.AnalysisResultRepository

	Scanner   *scanner.Service
	Processor *processor.Service
	Scheduler *scheduler.Scheduler
}

// BuildDeps loads configuration, creates the logger, and opens the
// database connection. The schema is applied idempotently on startup.
func BuildDeps(ctx context.Context, v *viper.Viper, debug bool) (*CommandDeps, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if debug {
		cfg.Logger.Level = logger.DebugLevel
		cfg.Logger.Development = true
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	deps := &CommandDeps{
		Logger: log,
		Config: cfg,
		DB:     db,
	}
	if err := deps.Validate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return deps, nil
}

// BuildServices wires the repositories, scanner, processor, and
// scheduler from shared dependencies.
func BuildServices(deps *CommandDeps) *Services {
	instances := database.NewInstanceRepository(deps.DB)
	bots := database.NewBotRepository(deps.DB)
	documents := database.NewDocumentRepository(deps.DB)
	queue := database.NewQueueRepository(deps.DB)
	results := database.NewAnalysisResultRepository(deps.DB)

	analyzer := analysis.NewClient(
		analysis.WithBaseURL(deps.Config.Analysis.BaseURL),
		analysis.WithAPIKey(deps.Config.Analysis.APIKey),
		analysis.WithModel(deps.Config.Analysis.Model),
		analysis.WithTimeout(deps.Config.Analysis.Timeout),
	)

	scannerSvc := scanner.NewService(
		instances,
		documents,
		queue,
		results,
		nil,
		scanner.Config{
			PageSize:    deps.Config.Scheduler.PageSize,
			MaxAttempts: deps.Config.Scheduler.MaxAttempts,
		},
		deps.Logger.WithComponent("scanner"),
	)

	processorSvc := processor.NewService(
		queue,
		documents,
		bots,
		instances,
		results,
		analyzer,
		nil,
		processor.Config{
			RetryDelayMinutes: deps.Config.Scheduler.RetryDelayMinutes,
			StuckThreshold:    deps.Config.Scheduler.StuckThreshold,
		},
		deps.Logger.WithComponent("processor"),
	)

	sched := scheduler.NewScheduler(scannerSvc, processorSvc, instances, deps.Logger)

	return &Services{
		Instances: instances,
		Bots:      bots,
		Documents: documents,
		Queue:     queue,
		Results:   results,
		Scanner:   scannerSvc,
		Processor: processorSvc,
		Scheduler: sched,
	}
}
