package main

import (
	"context"
	"os"
	"time"

	"ceaiinsights/adapters/postgres"
	"ceaiinsights/internal"
	"ceaiinsights/internal/migration"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var driver, url string
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Create or upgrade the analysis history schema",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.NewDefaultLogger().Named("Migrate")

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			// Open applies pending migrations before returning
			db, err := postgres.Open(ctx, driver, url)
			if err != nil {
				return err
			}
			defer db.Close()

			logger.Info("Schema at version %s (%s)", migration.NewRunner().Version(), driver)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", envOr("DATABASE_DRIVER", "postgres"), "postgres or sqlite3")
	cmd.Flags().StringVar(&url, "url", os.Getenv("DATABASE_URL"), "database URL")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
