package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ceaiinsights/internal"
	apperrors "ceaiinsights/internal/errors"
	"ceaiinsights/internal/report"
	"ceaiinsights/models"
	"ceaiinsights/ports"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Messages returned to the user by Analyze
const (
	MsgEmptyInput      = "CSV data is empty. Please upload a valid CSV file."
	MsgNoSummary       = "Analysis returned no summary. Please check the data or try again."
	MsgInvalidAPIKey   = "Analysis failed: Invalid API key configuration."
	MsgUnexpected      = "Failed to analyze data due to an unexpected error."
	MsgNoAttempts      = "Failed to analyze data after multiple attempts."
	msgExhaustedFormat = "Analysis failed after %d attempts: The model is currently overloaded. Please try again later."
)

// Substrings providers use for a busy model and a rejected key
const (
	overloadSignature    = "503 Service Unavailable"
	overloadSignatureAlt = "model is overloaded"
	credentialSignature  = "API key not valid"
)

const (
	defaultMaxAttempts   = 3
	defaultRetryDelay    = 2 * time.Second
	defaultMaxConcurrent = 4
)

// RetryPolicy bounds how often an overloaded model call is repeated
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns three attempts two seconds apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, Delay: defaultRetryDelay}
}

// Sleeper waits between attempts. Sleep returns early with ctx's error when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a real timer
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submission is one analysis request together with where it came from
type Submission struct {
	SessionID string
	File      models.FileMeta
	CSVData   string
}

// Outcome is the terminal result of a submission
type Outcome struct {
	Result     models.AnalysisResult
	Kind       models.OutcomeKind
	Attempts   int
	Duration   time.Duration
	RecordID   uuid.UUID
	Violations []report.Violation
}

// AnalysisServiceConfig configures an AnalysisService
type AnalysisServiceConfig struct {
	Retry         RetryPolicy
	MaxConcurrent int64
	Sleeper       Sleeper
}

// AnalysisService sends survey CSV text to the summary model, retrying while
// the model reports it is overloaded, and records every outcome.
type AnalysisService struct {
	generator ports.SummaryGenerator
	history   ports.AnalysisRepository
	retry     RetryPolicy
	sleeper   Sleeper
	slots     *semaphore.Weighted
	now       func() time.Time
	logger    *internal.Logger
}

// NewAnalysisService creates the orchestrator. history may be nil.
func NewAnalysisService(generator ports.SummaryGenerator, history ports.AnalysisRepository, cfg AnalysisServiceConfig, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = TimerSleeper{}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	return &AnalysisService{
		generator: generator,
		history:   history,
		retry:     cfg.Retry,
		sleeper:   cfg.Sleeper,
		slots:     semaphore.NewWeighted(cfg.MaxConcurrent),
		now:       time.Now,
		logger:    logger.Named("AnalysisService"),
	}
}

// Analyze runs one submission without session context: {summary} or {error}
func (s *AnalysisService) Analyze(ctx context.Context, csvData string) models.AnalysisResult {
	return s.Submit(ctx, Submission{CSVData: csvData}).Result
}

// Submit runs the retry loop for one submission and records its outcome
func (s *AnalysisService) Submit(ctx context.Context, sub Submission) Outcome {
	start := s.now()
	outcome := s.run(ctx, sub)
	outcome.Duration = s.now().Sub(start)

	if outcome.Kind == models.OutcomeSuccess {
		outcome.Violations = report.Audit(outcome.Result.Summary)
		if len(outcome.Violations) > 0 {
			s.logger.Warn("Summary breaks %d formatting rules (first: %s %q)",
				len(outcome.Violations), outcome.Violations[0].Rule, outcome.Violations[0].Snippet)
		}
	}

	s.logger.Info("Analysis finished - kind=%s, attempts=%d, duration=%v, file=%s",
		outcome.Kind, outcome.Attempts, outcome.Duration, sub.File.Name)

	outcome.RecordID = s.record(ctx, sub, outcome, start)
	return outcome
}

func (s *AnalysisService) run(ctx context.Context, sub Submission) Outcome {
	if sub.CSVData == "" {
		return Outcome{Result: models.AnalysisResult{Error: MsgEmptyInput}, Kind: models.OutcomeInvalidInput}
	}
	if s.retry.MaxAttempts <= 0 {
		return Outcome{Result: models.AnalysisResult{Error: MsgNoAttempts}, Kind: models.OutcomeFatal}
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return Outcome{Result: models.AnalysisResult{Error: describeFailure(err)}, Kind: models.OutcomeFatal}
	}
	defer s.slots.Release(1)

	input := models.AnalysisInput{CSVData: sub.CSVData}
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		out, err := s.generator.GenerateSummary(ctx, input)
		if err == nil {
			if out == nil || out.Summary == "" {
				s.logger.Warn("Attempt %d returned no summary", attempt)
				return Outcome{Result: models.AnalysisResult{Error: MsgNoSummary}, Kind: models.OutcomeContentError, Attempts: attempt}
			}
			return Outcome{Result: models.AnalysisResult{Summary: out.Summary}, Kind: models.OutcomeSuccess, Attempts: attempt}
		}

		if !IsOverloaded(err) {
			s.logger.Error("Attempt %d failed: %v", attempt, err)
			return Outcome{Result: models.AnalysisResult{Error: describeFailure(err)}, Kind: models.OutcomeFatal, Attempts: attempt}
		}

		if attempt == s.retry.MaxAttempts {
			s.logger.Error("Model still overloaded after %d attempts: %v", attempt, err)
			return Outcome{
				Result:   models.AnalysisResult{Error: fmt.Sprintf(msgExhaustedFormat, s.retry.MaxAttempts)},
				Kind:     models.OutcomeExhausted,
				Attempts: attempt,
			}
		}

		s.logger.Warn("Attempt %d/%d: model overloaded, retrying in %v", attempt, s.retry.MaxAttempts, s.retry.Delay)
		if err := s.sleeper.Sleep(ctx, s.retry.Delay); err != nil {
			return Outcome{Result: models.AnalysisResult{Error: describeFailure(err)}, Kind: models.OutcomeFatal, Attempts: attempt}
		}
	}

	return Outcome{Result: models.AnalysisResult{Error: MsgNoAttempts}, Kind: models.OutcomeFatal}
}

func (s *AnalysisService) record(ctx context.Context, sub Submission, outcome Outcome, start time.Time) uuid.UUID {
	if s.history == nil {
		return uuid.Nil
	}

	rec := &models.AnalysisRecord{
		ID:           uuid.New(),
		SessionID:    sub.SessionID,
		FileName:     sub.File.Name,
		FileSize:     sub.File.Size,
		Provider:     s.generator.Provider(),
		Model:        s.generator.Model(),
		Status:       outcome.Kind,
		Summary:      outcome.Result.Summary,
		ErrorMessage: outcome.Result.Error,
		Attempts:     outcome.Attempts,
		DurationMS:   outcome.Duration.Milliseconds(),
		CreatedAt:    start.UTC(),
	}

	// the record is written even when the request context has been cancelled
	if err := s.history.Save(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("Failed to record analysis: %v", err)
		return uuid.Nil
	}
	return rec.ID
}

// IsOverloaded reports whether err is the transient overload signature that
// is worth retrying
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.HasCode(err, apperrors.CodeModelOverloaded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, overloadSignature) || strings.Contains(msg, overloadSignatureAlt)
}

// describeFailure turns a non-retryable error into the user message
func describeFailure(err error) string {
	msg := err.Error()
	switch {
	case msg == "":
		return MsgUnexpected
	case apperrors.HasCode(err, apperrors.CodeInvalidCredentials) || strings.Contains(msg, credentialSignature):
		return MsgInvalidAPIKey
	default:
		return "Analysis failed: " + msg
	}
}
