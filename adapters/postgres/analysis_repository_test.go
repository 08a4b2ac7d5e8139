package postgres

import (
	"context"
	"testing"
	"time"

	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *AnalysisRepositoryImpl {
	t.Helper()
	db, err := Open(context.Background(), "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAnalysisRepository(db).(*AnalysisRepositoryImpl)
}

func TestAnalysisRepositorySaveAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	record := &models.AnalysisRecord{
		SessionID:  "5b0b6a4e-4a36-4c9b-9a57-5d1a0f7e2c11",
		FileName:   "survey.csv",
		FileSize:   2048,
		Provider:   "gemini",
		Model:      "gemini-2.0-flash",
		Status:     models.OutcomeSuccess,
		Summary:    "OVERALL RESULTS\nSteady.",
		Attempts:   2,
		DurationMS: 4100,
		CreatedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, record))
	require.NotEqual(t, uuid.Nil, record.ID)

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(record, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalysisRepositoryGetMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestAnalysisRepositoryListRecent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	statuses := []models.OutcomeKind{models.OutcomeSuccess, models.OutcomeExhausted, models.OutcomeFatal}
	for i, status := range statuses {
		require.NoError(t, repo.Save(ctx, &models.AnalysisRecord{
			FileName:     "survey.csv",
			Status:       status,
			ErrorMessage: string(status),
			Attempts:     i + 1,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.OutcomeFatal, records[0].Status)
	assert.Equal(t, 3, records[0].Attempts)
	assert.Equal(t, models.OutcomeExhausted, records[1].Status)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), "sqlite3", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigInvalid))
}

func TestAnalysisRepositoryListBySession(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, sid := range []string{"alice", "bob", "alice"} {
		require.NoError(t, repo.Save(ctx, &models.AnalysisRecord{
			SessionID: sid,
			Status:    models.OutcomeSuccess,
			Attempts:  i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := repo.ListBySession(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Attempts)
	assert.Equal(t, "alice", records[1].SessionID)

	records, err = repo.ListBySession(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
