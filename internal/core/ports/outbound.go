package ports

import (
	"context"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

// SearchBackend is the uniform capability every content store adapter
// implements. New backends participate in fan-out by implementing this
// contract; the core never learns their wire protocols.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, filters map[string]any, limit int) ([]domain.SearchResult, error)
}

// Tracer starts traces and accepts retrieval/ingest events. Implementations
// must never let an observability failure escape into the request path.
type Tracer interface {
	StartTrace() string
	EmitRetrievalEvent(event domain.TraceEvent)
	EmitIngestEvent(event domain.IngestEvent)
}

// AlertSink delivers alerts to an external notification channel. The core's
// obligation ends at producing a well-formed Alert value.
type AlertSink interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// TraceEventPublisher streams retrieval events out for offline evaluation
// capture.
type TraceEventPublisher interface {
	PublishRetrievalEvent(ctx context.Context, event domain.TraceEvent) error
}

// AuditLog persists policy violations for long-term audit.
type AuditLog interface {
	RecordViolations(ctx context.Context, traceID string, violations []domain.PolicyViolation) error
}
