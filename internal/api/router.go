package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ceaiinsights/app"
	"ceaiinsights/internal"
	"ceaiinsights/models"
	"ceaiinsights/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HistorySessionID marks analyses submitted through the headless API
const HistorySessionID = "api"

// Config holds headless API settings
type Config struct {
	AnalysisTimeout time.Duration
	MaxBodySize     int64
	HistoryLimit    int
	// BaseContext bounds analyses; it is cancelled on shutdown
	BaseContext context.Context
}

// Handler serves the JSON-only analysis API
type Handler struct {
	analysis *app.AnalysisService
	history  ports.AnalysisRepository
	config   Config
	logger   *internal.Logger
}

// NewRouter builds the chi router for the headless API
func NewRouter(analysis *app.AnalysisService, history ports.AnalysisRepository, config Config, logger *internal.Logger) http.Handler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if config.BaseContext == nil {
		config.BaseContext = context.Background()
	}
	if config.AnalysisTimeout <= 0 {
		config.AnalysisTimeout = 3 * time.Minute
	}

	h := &Handler{analysis: analysis, history: history, config: config, logger: logger.Named("API")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", h.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", h.handleAnalyze)
		r.Get("/analyses", h.handleListAnalyses)
	})

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response: %v", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze accepts {csvData} and answers {summary} or {error}
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodySize)
	}

	var input models.AnalysisInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, models.AnalysisResult{Error: "Request body is too large."})
			return
		}
		h.writeJSON(w, http.StatusBadRequest, models.AnalysisResult{Error: "Invalid request body: expected {\"csvData\": string}."})
		return
	}

	ctx, cancel := context.WithTimeout(h.config.BaseContext, h.config.AnalysisTimeout)
	defer cancel()

	outcome := h.analysis.Submit(ctx, app.Submission{
		SessionID: HistorySessionID,
		CSVData:   input.CSVData,
	})

	h.logger.Info("POST /v1/analyze [%s] -> %s after %d attempts", middleware.GetReqID(r.Context()), outcome.Kind, outcome.Attempts)
	h.writeJSON(w, outcome.Kind.HTTPStatus(), outcome.Result)
}

func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if h.config.HistoryLimit > 0 && limit > h.config.HistoryLimit {
		limit = h.config.HistoryLimit
	}

	records, err := h.history.ListBySession(r.Context(), HistorySessionID, limit)
	if err != nil {
		h.logger.Error("Failed to list analyses: %v", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load analysis history."})
		return
	}
	if records == nil {
		records = []*models.AnalysisRecord{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": records})
}
