package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
)

const defaultSearchLimit = 10

var errEmptyQuery = errors.New("query text is empty")

// SearchUseCase runs one retrieval request end to end: trace start, fan-out,
// fusion, policy enforcement, trace emission. Adapter and observability
// failures degrade the response (lower coverage, missing metrics) but never
// fail it; a policy failure is the one case that intentionally empties it.
type SearchUseCase struct {
	fanout *FanoutCoordinator
	fusion *FusionEngine
	policy *PolicyEngine
	tracer ports.Tracer
	audit  ports.AuditLog
	logger *slog.Logger

	defaultLimit int
}

func NewSearchUseCase(
	fanout *FanoutCoordinator,
	fusion *FusionEngine,
	policy *PolicyEngine,
	tracer ports.Tracer,
	audit ports.AuditLog,
	logger *slog.Logger,
	defaultLimit int,
) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = defaultSearchLimit
	}
	return &SearchUseCase{
		fanout:       fanout,
		fusion:       fusion,
		policy:       policy,
		tracer:       tracer,
		audit:        audit,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query domain.Query, pctx domain.PolicyContext) (*domain.SearchResponse, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errEmptyQuery)
	}
	if query.Limit <= 0 {
		query.Limit = uc.defaultLimit
	}

	traceID := uc.tracer.StartTrace()
	start := time.Now()

	responses := uc.fanout.Dispatch(ctx, query)
	fused := uc.fusion.Fuse(responses, query.Limit)

	decision := uc.policy.Enforce(fused.Results, pctx)

	latencyMS := time.Since(start).Milliseconds()
	sourceLatencies := make(map[string]int64, len(responses))
	for _, resp := range responses {
		sourceLatencies[resp.SourceName] = resp.LatencyMS
		if resp.Err != nil {
			uc.logger.Warn("backend_degraded",
				"trace_id", traceID,
				"source", resp.SourceName,
				"latency_ms", resp.LatencyMS,
				"error", resp.Err,
			)
		}
	}

	uc.recordAudit(ctx, traceID, decision.Violations)

	uc.tracer.EmitRetrievalEvent(domain.TraceEvent{
		TraceID:         traceID,
		Timestamp:       time.Now().UTC(),
		Query:           query.Text,
		Filters:         query.Filters,
		TotalResults:    decision.TotalResults,
		SourcesUsed:     fused.SourcesUsed,
		LatencyMS:       latencyMS,
		SourceLatencies: sourceLatencies,
		Coverage:        fused.Coverage,
	})

	return &domain.SearchResponse{
		Results:         decision.Results,
		TotalResults:    decision.TotalResults,
		SourcesUsed:     fused.SourcesUsed,
		FusionMethod:    fused.FusionMethod,
		Coverage:        fused.Coverage,
		LatencyMS:       latencyMS,
		TraceID:         traceID,
		SourceLatencies: sourceLatencies,
		FilteredCount:   decision.FilteredCount,
		RedactedCount:   decision.RedactedCount,
	}, nil
}

// recordAudit persists violations best-effort; audit storage being down must
// not fail retrieval.
func (uc *SearchUseCase) recordAudit(ctx context.Context, traceID string, violations []domain.PolicyViolation) {
	if uc.audit == nil || len(violations) == 0 {
		return
	}
	if err := uc.audit.RecordViolations(ctx, traceID, violations); err != nil {
		uc.logger.Error("audit_record_failed", "trace_id", traceID, "error", err)
	}
}
