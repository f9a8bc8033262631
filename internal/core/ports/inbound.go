package ports

import (
	"context"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

// RetrievalService is the public request/response surface of the core.
type RetrievalService interface {
	Search(ctx context.Context, query domain.Query, policy domain.PolicyContext) (*domain.SearchResponse, error)
}

// EvaluationService runs the offline evaluation harness against recorded
// experiment data. Never invoked inline with a live request.
type EvaluationService interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationReport, error)
}

// MetricsReader exposes windowed metrics summaries.
type MetricsReader interface {
	Summary(windowMinutes int) domain.MetricsSummary
}
