package ports

import (
	"context"

	"ceaiinsights/models"

	"github.com/google/uuid"
)

// AnalysisRepository persists the outcome of every submission
type AnalysisRepository interface {
	Save(ctx context.Context, record *models.AnalysisRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
	// ListBySession returns up to limit records submitted by one session, newest first
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.AnalysisRecord, error)
}
