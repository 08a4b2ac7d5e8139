package models

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// AnalysisInput is the request sent to the summary model
type AnalysisInput struct {
	CSVData string `json:"csvData"`
}

// AnalysisOutput is the structured response expected from the summary model
type AnalysisOutput struct {
	Summary string `json:"summary"`
}

// AnalysisResult is what a submission returns to the user: exactly one field is set
type AnalysisResult struct {
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the result carries a summary
func (r AnalysisResult) OK() bool {
	return r.Summary != "" && r.Error == ""
}

// OutcomeKind classifies how a submission ended
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeInvalidInput OutcomeKind = "invalid_input"
	OutcomeContentError OutcomeKind = "content_error"
	OutcomeExhausted    OutcomeKind = "exhausted"
	OutcomeFatal        OutcomeKind = "fatal"
)

// HTTPStatus is the response status for a submission that ended this way
func (k OutcomeKind) HTTPStatus() int {
	switch k {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeInvalidInput:
		return http.StatusBadRequest
	case OutcomeExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// AnalysisRecord is the persisted trace of one submission. The CSV content is never stored.
type AnalysisRecord struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	SessionID    string      `json:"-" db:"session_id"`
	FileName     string      `json:"file_name" db:"file_name"`
	FileSize     int64       `json:"file_size" db:"file_size"`
	Provider     string      `json:"provider" db:"provider"`
	Model        string      `json:"model" db:"model"`
	Status       OutcomeKind `json:"status" db:"status"`
	Summary      string      `json:"summary,omitempty" db:"summary"`
	ErrorMessage string      `json:"error,omitempty" db:"error_message"`
	Attempts     int         `json:"attempts" db:"attempts"`
	DurationMS   int64       `json:"duration_ms" db:"duration_ms"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// FileMeta describes the uploaded file a submission came from
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}
