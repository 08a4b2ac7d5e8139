package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"ceaiinsights/internal/errors"
	"ceaiinsights/models"
	"ceaiinsights/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AnalysisRepositoryImpl implements AnalysisRepository on sqlx. Queries are
// written with ? bindvars and rebound for the connected driver.
type AnalysisRepositoryImpl struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new SQL analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &AnalysisRepositoryImpl{db: db}
}

const analysisColumns = `id, session_id, file_name, file_size, provider, model, status,
		       summary, error_message, attempts, duration_ms, created_at`

// Save inserts a record, assigning an id when it has none
func (r *AnalysisRepositoryImpl) Save(ctx context.Context, record *models.AnalysisRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analyses (
			id, session_id, file_name, file_size, provider, model, status,
			summary, error_message, attempts, duration_ms, created_at
		) VALUES (
			:id, :session_id, :file_name, :file_size, :provider, :model, :status,
			:summary, :error_message, :attempts, :duration_ms, :created_at
		)
	`, record)
	if err != nil {
		return dbError(err, "failed to save analysis")
	}
	return nil
}

// GetByID retrieves one record
func (r *AnalysisRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error) {
	var record models.AnalysisRecord
	err := r.db.GetContext(ctx, &record, r.db.Rebind(`
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE id = ?
	`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("analysis " + id.String())
	}
	if err != nil {
		return nil, dbError(err, "failed to get analysis")
	}
	return &record, nil
}

// ListRecent returns up to limit records, newest first
func (r *AnalysisRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*models.AnalysisRecord
	err := r.db.SelectContext(ctx, &records, r.db.Rebind(`
		SELECT `+analysisColumns+`
		FROM analyses
		ORDER BY created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, dbError(err, "failed to list analyses")
	}
	return records, nil
}

// ListBySession returns up to limit records of one session, newest first
func (r *AnalysisRepositoryImpl) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []*models.AnalysisRecord
	err := r.db.SelectContext(ctx, &records, r.db.Rebind(`
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), sessionID, limit)
	if err != nil {
		return nil, dbError(err, "failed to list session analyses")
	}
	return records, nil
}

func dbError(err error, message string) error {
	return &errors.AppError{Code: errors.CodeDatabaseError, Message: message, Cause: err}
}
