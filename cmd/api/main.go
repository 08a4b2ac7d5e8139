package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ceaiinsights/internal"
	"ceaiinsights/internal/api"
	"ceaiinsights/internal/config"
	"ceaiinsights/internal/container"
	"ceaiinsights/internal/session"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	appConfig, err := config.Load()
	if err != nil {
		internal.DefaultLogger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Logging.Level), appConfig.Logging.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, appConfig, logger); err != nil {
		logger.Error("API server stopped: %v", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, appConfig *config.Config, logger *internal.Logger) error {
	appContainer, err := container.New(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer appContainer.Shutdown()

	router := api.NewRouter(appContainer.Analysis, appContainer.History, api.Config{
		AnalysisTimeout: appConfig.Analysis.Timeout,
		MaxBodySize:     session.JSONBodyLimit(appConfig.Upload.MaxFileSize),
		HistoryLimit:    appConfig.Analysis.HistoryLimit,
		BaseContext:     ctx,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Server.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting headless API on port %s", appConfig.Server.APIPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
