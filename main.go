package main

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ceaiinsights/internal"
	"ceaiinsights/internal/config"
	"ceaiinsights/internal/container"
	"ceaiinsights/internal/session"
	"ceaiinsights/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

//go:embed ui/templates ui/static
var embeddedFiles embed.FS

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		internal.DefaultLogger.Info("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		internal.DefaultLogger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Logging.Level), appConfig.Logging.Format)
	defer logger.Sync()

	if err := run(appConfig, logger); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}

func run(appConfig *config.Config, logger *internal.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer appContainer.Shutdown()

	gin.SetMode(appConfig.Server.GinMode)

	sessions := session.NewStore(appConfig.Server.SessionTTL, logger)
	server, err := ui.NewServer(embeddedFiles, ui.Deps{
		Analysis:        appContainer.Analysis,
		History:         appContainer.History,
		Sessions:        sessions,
		Provider:        appContainer.Generator.Provider(),
		Model:           appContainer.Generator.Model(),
		MaxFileSize:     appConfig.Upload.MaxFileSize,
		SessionTTL:      appConfig.Server.SessionTTL,
		AnalysisTimeout: appConfig.Analysis.Timeout,
		HistoryLimit:    appConfig.Analysis.HistoryLimit,
		BaseContext:     ctx,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sessions.Run(gctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting CEAI Insights on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
