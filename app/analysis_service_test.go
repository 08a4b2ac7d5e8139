package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"ceaiinsights/adapters/memory"
	"ceaiinsights/internal"
	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const surveyCSV = "Department,Management Support,Autonomy\nHR,4,3\nIT,5,4\n"

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateSummary(ctx context.Context, input models.AnalysisInput) (*models.AnalysisOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*models.AnalysisOutput)
	return out, args.Error(1)
}

func (m *mockGenerator) Provider() string { return "gemini" }
func (m *mockGenerator) Model() string    { return "gemini-test" }

// recordingSleeper records requested waits instead of sleeping
type recordingSleeper struct {
	waits   []time.Duration
	onSleep func()
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if s.onSleep != nil {
		s.onSleep()
	}
	return ctx.Err()
}

type fixture struct {
	gen     *mockGenerator
	sleeper *recordingSleeper
	history *memory.AnalysisRepository
	service *AnalysisService
}

func newFixture(policy RetryPolicy) *fixture {
	f := &fixture{
		gen:     &mockGenerator{},
		sleeper: &recordingSleeper{},
		history: memory.NewAnalysisRepository(10),
	}
	f.service = NewAnalysisService(f.gen, f.history, AnalysisServiceConfig{
		Retry:   policy,
		Sleeper: f.sleeper,
	}, internal.NewNopLogger())
	return f
}

func (f *fixture) expectCall(out *models.AnalysisOutput, err error) *mock.Call {
	return f.gen.On("GenerateSummary", mock.Anything, models.AnalysisInput{CSVData: surveyCSV}).Return(out, err)
}

func (f *fixture) lastRecord(t *testing.T) *models.AnalysisRecord {
	t.Helper()
	records, err := f.history.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

var errOverloaded = apperrors.ModelOverloaded("gemini", errors.New("The model is overloaded. Please try again later."))

func TestAnalyzeSuccessFirstAttempt(t *testing.T) {
	f := newFixture(DefaultRetryPolicy())
	f.expectCall(&models.AnalysisOutput{Summary: "OVERALL RESULTS\nSteady."}, nil).Once()

	outcome := f.service.Submit(context.Background(), Submission{
		SessionID: "s-1",
		File:      models.FileMeta{Name: "survey.csv", Size: int64(len(surveyCSV))},
		CSVData:   surveyCSV,
	})

	assert.Equal(t, models.AnalysisResult{Summary: "OVERALL RESULTS\nSteady."}, outcome.Result)
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Empty(t, f.sleeper.waits)
	assert.Empty(t, outcome.Violations)
	f.gen.AssertExpectations(t)

	rec := f.lastRecord(t)
	assert.Equal(t, outcome.RecordID, rec.ID)
	want := &models.AnalysisRecord{
		ID:        rec.ID,
		SessionID: "s-1",
		FileName:  "survey.csv",
		FileSize:  int64(len(surveyCSV)),
		Provider:  "gemini",
		Model:     "gemini-test",
		Status:    models.OutcomeSuccess,
		Summary:   "OVERALL RESULTS\nSteady.",
		Attempts:  1,
	}
	if diff := cmp.Diff(want, rec, cmpIgnoreTiming()); diff != "" {
		t.Errorf("history record mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeRetriesOverloadThenSucceeds(t *testing.T) {
	f := newFixture(RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second})
	f.expectCall(nil, errOverloaded).Twice()
	f.expectCall(&models.AnalysisOutput{Summary: "REPORT"}, nil).Once()

	outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

	assert.Equal(t, "REPORT", outcome.Result.Summary)
	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.sleeper.waits)
	f.gen.AssertNumberOfCalls(t, "GenerateSummary", 3)
	assert.Equal(t, 3, f.lastRecord(t).Attempts)
}

func TestAnalyzeExhaustsRetries(t *testing.T) {
	f := newFixture(RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second})
	f.expectCall(nil, errOverloaded)

	outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

	assert.Equal(t, models.AnalysisResult{
		Error: "Analysis failed after 3 attempts: The model is currently overloaded. Please try again later.",
	}, outcome.Result)
	assert.Equal(t, models.OutcomeExhausted, outcome.Kind)
	f.gen.AssertNumberOfCalls(t, "GenerateSummary", 3)
	assert.Len(t, f.sleeper.waits, 2)

	rec := f.lastRecord(t)
	assert.Equal(t, models.OutcomeExhausted, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
	assert.Empty(t, rec.Summary)
}

func TestAnalyzeRecognisesOverloadMessages(t *testing.T) {
	messages := []string{
		"[GoogleGenerativeAI Error]: Error fetching from model: [503 Service Unavailable] busy",
		"The model is overloaded. Please try again later.",
	}

	for _, msg := range messages {
		t.Run(msg, func(t *testing.T) {
			f := newFixture(RetryPolicy{MaxAttempts: 2, Delay: time.Second})
			f.expectCall(nil, errors.New(msg)).Once()
			f.expectCall(&models.AnalysisOutput{Summary: "REPORT"}, nil).Once()

			outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})
			assert.Equal(t, "REPORT", outcome.Result.Summary)
			assert.Equal(t, []time.Duration{time.Second}, f.sleeper.waits)
		})
	}
}

func TestAnalyzeSingleAttemptPolicy(t *testing.T) {
	f := newFixture(RetryPolicy{MaxAttempts: 1, Delay: time.Second})
	f.expectCall(nil, errOverloaded)

	outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

	assert.Equal(t, "Analysis failed after 1 attempts: The model is currently overloaded. Please try again later.", outcome.Result.Error)
	f.gen.AssertNumberOfCalls(t, "GenerateSummary", 1)
	assert.Empty(t, f.sleeper.waits)
}

func TestAnalyzeFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain failure", errors.New("connection refused"), "Analysis failed: connection refused"},
		{"classified credentials", apperrors.InvalidCredentials("openai", errors.New("status 401")), MsgInvalidAPIKey},
		{"credential message", errors.New("API key not valid. Please pass a valid API key."), MsgInvalidAPIKey},
		{"empty message", errors.New(""), MsgUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(DefaultRetryPolicy())
			f.expectCall(nil, tt.err)

			outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

			assert.Equal(t, models.AnalysisResult{Error: tt.want}, outcome.Result)
			assert.Equal(t, models.OutcomeFatal, outcome.Kind)
			f.gen.AssertNumberOfCalls(t, "GenerateSummary", 1)
			assert.Empty(t, f.sleeper.waits)
			assert.Equal(t, models.OutcomeFatal, f.lastRecord(t).Status)
		})
	}
}

func TestAnalyzeEmptySummaryIsNotRetried(t *testing.T) {
	for _, out := range []*models.AnalysisOutput{{Summary: ""}, nil} {
		f := newFixture(DefaultRetryPolicy())
		f.expectCall(out, nil)

		outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

		assert.Equal(t, models.AnalysisResult{Error: MsgNoSummary}, outcome.Result)
		assert.Equal(t, models.OutcomeContentError, outcome.Kind)
		f.gen.AssertNumberOfCalls(t, "GenerateSummary", 1)
	}
}

func TestAnalyzeEmptyInputSkipsModel(t *testing.T) {
	f := newFixture(DefaultRetryPolicy())

	result := f.service.Analyze(context.Background(), "")

	assert.Equal(t, models.AnalysisResult{Error: MsgEmptyInput}, result)
	f.gen.AssertNotCalled(t, "GenerateSummary", mock.Anything, mock.Anything)
	assert.Equal(t, models.OutcomeInvalidInput, f.lastRecord(t).Status)
}

func TestAnalyzeNonPositiveAttempts(t *testing.T) {
	f := newFixture(RetryPolicy{MaxAttempts: 0})

	outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

	assert.Equal(t, MsgNoAttempts, outcome.Result.Error)
	assert.Equal(t, models.OutcomeFatal, outcome.Kind)
	f.gen.AssertNotCalled(t, "GenerateSummary", mock.Anything, mock.Anything)
}

func TestAnalyzeCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(RetryPolicy{MaxAttempts: 3, Delay: time.Minute})
	f.sleeper.onSleep = cancel
	f.expectCall(nil, errOverloaded)

	outcome := f.service.Submit(ctx, Submission{CSVData: surveyCSV})

	assert.Equal(t, models.OutcomeFatal, outcome.Kind)
	assert.Equal(t, "Analysis failed: context canceled", outcome.Result.Error)
	f.gen.AssertNumberOfCalls(t, "GenerateSummary", 1)
	assert.Len(t, f.sleeper.waits, 1)

	rec := f.lastRecord(t)
	assert.Equal(t, models.OutcomeFatal, rec.Status, "the outcome is recorded despite the cancelled context")
}

func TestAnalyzeReportsFormattingViolations(t *testing.T) {
	f := newFixture(DefaultRetryPolicy())
	f.expectCall(&models.AnalysisOutput{Summary: "## Overall Results\nScores are **high**."}, nil)

	outcome := f.service.Submit(context.Background(), Submission{CSVData: surveyCSV})

	assert.Equal(t, models.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "## Overall Results\nScores are **high**.", outcome.Result.Summary, "summary is returned verbatim")
	assert.NotEmpty(t, outcome.Violations)
}

func TestAnalyzeBoundsConcurrentCalls(t *testing.T) {
	gen := &mockGenerator{}
	started := make(chan struct{})
	release := make(chan struct{})
	gen.On("GenerateSummary", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&models.AnalysisOutput{Summary: "REPORT"}, nil).Once()

	service := NewAnalysisService(gen, nil, AnalysisServiceConfig{
		Retry:         DefaultRetryPolicy(),
		MaxConcurrent: 1,
		Sleeper:       &recordingSleeper{},
	}, internal.NewNopLogger())

	done := make(chan models.AnalysisResult)
	go func() {
		done <- service.Analyze(context.Background(), surveyCSV)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	blocked := service.Analyze(ctx, surveyCSV)
	assert.Equal(t, "Analysis failed: context deadline exceeded", blocked.Error)

	close(release)
	assert.Equal(t, "REPORT", (<-done).Summary)
	gen.AssertNumberOfCalls(t, "GenerateSummary", 1)
}

func TestTimerSleeper(t *testing.T) {
	require.NoError(t, TimerSleeper{}.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TimerSleeper{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsOverloaded(t *testing.T) {
	assert.True(t, IsOverloaded(errOverloaded))
	assert.True(t, IsOverloaded(apperrors.Wrap(errOverloaded, "call failed")))
	assert.True(t, IsOverloaded(errors.New("got 503 Service Unavailable")))
	assert.False(t, IsOverloaded(errors.New("500 Internal Server Error")))
	assert.False(t, IsOverloaded(nil))
}

func cmpIgnoreTiming() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool {
		name := p.Last().String()
		return name == ".CreatedAt" || name == ".DurationMS"
	}, cmp.Ignore())
}
