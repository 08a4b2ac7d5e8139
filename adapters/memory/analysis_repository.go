package memory

import (
	"context"
	"sort"
	"sync"

	"ceaiinsights/internal/errors"
	"ceaiinsights/models"
	"ceaiinsights/ports"

	"github.com/google/uuid"
)

// AnalysisRepository keeps the most recent records in memory. It is used when
// no database is configured; the oldest record is dropped once capacity is reached.
type AnalysisRepository struct {
	mu       sync.RWMutex
	records  []*models.AnalysisRecord
	capacity int
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

// NewAnalysisRepository creates a store holding at most capacity records
func NewAnalysisRepository(capacity int) *AnalysisRepository {
	if capacity <= 0 {
		capacity = 200
	}
	return &AnalysisRepository{capacity: capacity}
}

func (r *AnalysisRepository) Save(ctx context.Context, record *models.AnalysisRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	copied := *record

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, &copied)
	if over := len(r.records) - r.capacity; over > 0 {
		r.records = append(r.records[:0:0], r.records[over:]...)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.ID == id {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, errors.NotFound("analysis " + id.String())
}

func (r *AnalysisRepository) ListRecent(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	return r.list(limit, func(*models.AnalysisRecord) bool { return true }), nil
}

func (r *AnalysisRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.AnalysisRecord, error) {
	return r.list(limit, func(rec *models.AnalysisRecord) bool { return rec.SessionID == sessionID }), nil
}

func (r *AnalysisRepository) list(limit int, keep func(*models.AnalysisRecord) bool) []*models.AnalysisRecord {
	r.mu.RLock()
	out := make([]*models.AnalysisRecord, 0, len(r.records))
	for _, rec := range r.records {
		if !keep(rec) {
			continue
		}
		copied := *rec
		out = append(out, &copied)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
