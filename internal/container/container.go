package container

import (
	"context"
	"fmt"

	"ceaiinsights/adapters/memory"
	"ceaiinsights/adapters/postgres"
	"ceaiinsights/ai"
	"ceaiinsights/app"
	"ceaiinsights/internal"
	"ceaiinsights/internal/config"
	"ceaiinsights/models"
	"ceaiinsights/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure; nil when history is kept in memory
	DB *sqlx.DB

	History   ports.AnalysisRepository
	Generator ports.SummaryGenerator
	Analysis  *app.AnalysisService
}

// New creates a container from configuration
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{Config: cfg, Logger: logger}

	if err := c.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize analysis history: %w", err)
	}
	if err := c.initGenerator(ctx); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}

	c.Analysis = app.NewAnalysisService(c.Generator, c.History, app.AnalysisServiceConfig{
		Retry: app.RetryPolicy{
			MaxAttempts: cfg.Analysis.MaxAttempts,
			Delay:       cfg.Analysis.RetryDelay,
		},
		MaxConcurrent: int64(cfg.Analysis.MaxConcurrent),
	}, logger)

	logger.Info("Container initialized - provider=%s, model=%s, persistent=%t",
		c.Generator.Provider(), c.Generator.Model(), c.DB != nil)
	return c, nil
}

// initHistory opens the SQL store when DATABASE_URL is set and falls back to memory
func (c *Container) initHistory(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		c.History = memory.NewAnalysisRepository(c.Config.Analysis.HistoryLimit)
		return nil
	}

	db, err := postgres.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return err
	}
	c.DB = db
	c.History = postgres.NewAnalysisRepository(db)
	return nil
}

func (c *Container) initGenerator(ctx context.Context) error {
	aiConfig := models.AIConfigFrom(c.Config.AI)

	switch aiConfig.Provider {
	case config.ProviderOpenAI:
		c.Generator = ai.NewOpenAISummarizer(aiConfig, c.Logger)
		return nil
	default:
		client, err := ai.NewGeminiClient(ctx, aiConfig, c.Logger)
		if err != nil {
			return err
		}
		c.Generator = client
		return nil
	}
}

// Shutdown releases held resources
func (c *Container) Shutdown() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("Failed to close database: %v", err)
		}
		c.DB = nil
	}
}
