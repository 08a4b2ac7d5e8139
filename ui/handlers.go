package ui

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"ceaiinsights/adapters/excel"
	"ceaiinsights/app"
	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/internal/report"
	"ceaiinsights/internal/session"
	"ceaiinsights/models"
	"ceaiinsights/ui/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// stateResponse is the session state as the browser sees it
type stateResponse struct {
	session.State
	CanAnalyze bool               `json:"canAnalyze"`
	Message    string             `json:"message,omitempty"`
	RecordID   string             `json:"recordId,omitempty"`
	Violations []report.Violation `json:"violations,omitempty"`
}

func (s *Server) respondState(c *gin.Context, status int, sess *session.Session, outcome *app.Outcome, message string) {
	state := sess.State()
	resp := stateResponse{State: state, CanAnalyze: state.CanAnalyze(), Message: message}
	if outcome != nil {
		if outcome.RecordID != uuid.Nil {
			resp.RecordID = outcome.RecordID.String()
		}
		resp.Violations = outcome.Violations
	}
	c.JSON(status, resp)
}

// handleIndex renders the uploader page
func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, "index.html", gin.H{
		"MaxFileSize": s.deps.MaxFileSize,
		"Provider":    s.deps.Provider,
		"Model":       s.deps.Model,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"provider": s.deps.Provider,
		"model":    s.deps.Model,
		"sessions": s.deps.Sessions.Len(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	s.respondState(c, http.StatusOK, middleware.Session(c), nil, "")
}

// handleUpload accepts the multipart field "file". A request without a file is
// treated as an empty drop.
func (s *Server) handleUpload(c *gin.Context) {
	sess := middleware.Session(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.deps.MaxFileSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		switch {
		case errors.Is(err, http.ErrMissingFile):
			sess.DropNothing()
			s.respondState(c, http.StatusOK, sess, nil, "")
		case isBodyTooLarge(err):
			tooLarge := session.ErrFileTooLarge(s.deps.MaxFileSize)
			sess.Fail(tooLarge)
			s.respondState(c, statusFor(tooLarge), sess, nil, "")
		default:
			s.logger.Warn("Malformed upload: %v", err)
			s.respondState(c, http.StatusBadRequest, sess, nil, "Malformed upload request.")
		}
		return
	}

	file, err := header.Open()
	if err != nil {
		sess.Fail(err)
		s.respondState(c, http.StatusBadRequest, sess, nil, "")
		return
	}
	defer file.Close()

	err = sess.Ingest(header.Filename, header.Header.Get("Content-Type"), header.Size, file, s.deps.MaxFileSize)
	if err != nil {
		s.logger.Info("Upload rejected for session %s: %v", sess.ID, err)
		s.respondState(c, statusFor(err), sess, nil, "")
		return
	}

	s.logger.Info("Accepted %s (%d bytes) for session %s", header.Filename, header.Size, sess.ID)
	s.respondState(c, http.StatusOK, sess, nil, "")
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func (s *Server) handleClear(c *gin.Context) {
	sess := middleware.Session(c)
	sess.Clear()
	s.respondState(c, http.StatusOK, sess, nil, "")
}

// analysisContext bounds an analysis by the server lifetime rather than the
// request, so a dropped connection still leaves the session in a terminal state
func (s *Server) analysisContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.deps.BaseContext, s.deps.AnalysisTimeout)
}

// handleAnalyze submits the session's held CSV text
func (s *Server) handleAnalyze(c *gin.Context) {
	sess := middleware.Session(c)

	ticket, err := sess.BeginAnalysis()
	if err != nil {
		s.respondState(c, statusFor(err), sess, nil, userMessage(err))
		return
	}

	ctx, cancel := s.analysisContext()
	defer cancel()

	outcome := s.deps.Analysis.Submit(ctx, app.Submission{
		SessionID: sess.ID.String(),
		File:      ticket.File,
		CSVData:   ticket.Content,
	})
	sess.Complete(ticket, outcome.Result)

	s.respondState(c, outcome.Kind.HTTPStatus(), sess, &outcome, "")
}

// handleAnalyzeJSON is the stateless {csvData} -> {summary}|{error} contract
func (s *Server) handleAnalyzeJSON(c *gin.Context) {
	if s.deps.MaxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, session.JSONBodyLimit(s.deps.MaxFileSize))
	}

	var input models.AnalysisInput
	if err := c.ShouldBindJSON(&input); err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, models.AnalysisResult{Error: session.FileTooLargeMessage(s.deps.MaxFileSize)})
			return
		}
		c.JSON(http.StatusBadRequest, models.AnalysisResult{Error: "Invalid request body: expected {\"csvData\": string}."})
		return
	}

	ctx, cancel := s.analysisContext()
	defer cancel()

	outcome := s.deps.Analysis.Submit(ctx, app.Submission{CSVData: input.CSVData})
	c.JSON(outcome.Kind.HTTPStatus(), outcome.Result)
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if s.deps.HistoryLimit > 0 && limit > s.deps.HistoryLimit {
		limit = s.deps.HistoryLimit
	}

	sess := middleware.Session(c)
	records, err := s.deps.History.ListBySession(c.Request.Context(), sess.ID.String(), limit)
	if err != nil {
		s.logger.Error("Failed to list analyses: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to load analysis history."})
		return
	}
	if records == nil {
		records = []*models.AnalysisRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"analyses": records})
}

func (s *Server) lookupRecord(c *gin.Context) (*models.AnalysisRecord, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis id."})
		return nil, false
	}

	record, err := s.deps.History.GetByID(c.Request.Context(), id)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.logger.Error("Failed to load analysis %s: %v", id, err)
		}
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return nil, false
	}
	if record.SessionID != middleware.Session(c).ID.String() {
		notFound := apperrors.NotFound("analysis " + id.String())
		c.JSON(statusFor(notFound), gin.H{"error": userMessage(notFound)})
		return nil, false
	}
	return record, true
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	record, ok := s.lookupRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis":    record,
		"departments": report.ParseDepartments(record.Summary),
	})
}

func (s *Server) handleExportAnalysis(c *gin.Context) {
	record, ok := s.lookupRecord(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := excel.WriteWorkbook(&buf, record); err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}

	name := strings.ReplaceAll(strings.TrimSuffix(record.FileName, filepath.Ext(record.FileName)), `"`, "")
	if name == "" {
		name = "ceai"
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`-report.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
