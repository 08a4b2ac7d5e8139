package ports

import (
	"context"

	"ceaiinsights/models"
)

// SummaryGenerator turns survey CSV text into a plain-text report by calling an
// external model. Implementations return an output with an empty Summary when the
// model answered without one; transport and provider failures are returned as errors.
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, input models.AnalysisInput) (*models.AnalysisOutput, error)
	Provider() string
	Model() string
}
