package ui

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"ceaiinsights/app"
	"ceaiinsights/internal"
	"ceaiinsights/internal/session"
	"ceaiinsights/ports"
	"ceaiinsights/ui/middleware"

	"github.com/gin-gonic/gin"
)

// Deps are the services the web server drives
type Deps struct {
	Analysis        *app.AnalysisService
	History         ports.AnalysisRepository
	Sessions        *session.Store
	Provider        string
	Model           string
	MaxFileSize     int64
	SessionTTL      time.Duration
	AnalysisTimeout time.Duration
	HistoryLimit    int
	// BaseContext bounds analyses; it is cancelled on shutdown
	BaseContext context.Context
	Logger      *internal.Logger
}

// Server represents the web server for the CEAI uploader
type Server struct {
	router    *gin.Engine
	templates *template.Template
	assets    fs.FS
	deps      Deps
	logger    *internal.Logger
}

// NewServer creates the server. assets must hold ui/templates and ui/static.
func NewServer(assets fs.FS, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = internal.DefaultLogger
	}
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}
	if deps.AnalysisTimeout <= 0 {
		deps.AnalysisTimeout = 3 * time.Minute
	}

	s := &Server{
		router: gin.New(),
		assets: assets,
		deps:   deps,
		logger: deps.Logger.Named("UI"),
	}

	if err := s.parseTemplates(); err != nil {
		return nil, err
	}

	s.router.MaxMultipartMemory = deps.MaxFileSize + 1<<20
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) parseTemplates() error {
	templatesFS, err := fs.Sub(s.assets, "ui/templates")
	if err != nil {
		return fmt.Errorf("failed to create templates filesystem: %w", err)
	}

	funcMap := template.FuncMap{
		"mb": func(n int64) int64 { return n >> 20 },
	}
	s.templates, err = template.New("").Funcs(funcMap).ParseFS(templatesFS, "*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	return nil
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), middleware.RequestLogger(s.deps.Logger))

	staticFS, err := fs.Sub(s.assets, "ui/static")
	if err != nil {
		s.logger.Error("Failed to create static filesystem: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	withSession := middleware.Sessions(s.deps.Sessions, s.deps.SessionTTL)
	s.router.GET("/", withSession, s.handleIndex)

	api := s.router.Group("/api")
	{
		sessionAPI := api.Group("", withSession)
		sessionAPI.POST("/upload", s.handleUpload)
		sessionAPI.DELETE("/upload", s.handleClear)
		sessionAPI.GET("/state", s.handleState)
		sessionAPI.POST("/analyze", s.handleAnalyze)

		// history is private to the session that produced it
		sessionAPI.GET("/analyses", s.handleListAnalyses)
		sessionAPI.GET("/analyses/:id", s.handleGetAnalysis)
		sessionAPI.GET("/analyses/:id/export.xlsx", s.handleExportAnalysis)

		api.POST("/v1/analyze", s.handleAnalyzeJSON)
	}
}

// Handler exposes the router for an http.Server or tests
func (s *Server) Handler() http.Handler {
	return s.router
}
