package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
	"github.com/kirillkom/retrieval-core/internal/evaluation"
	"github.com/kirillkom/retrieval-core/internal/observability/metrics"
)

type Router struct {
	retrieval ports.RetrievalService
	evaluator ports.EvaluationService
	reader    ports.MetricsReader
	tracer    ports.Tracer
	prom      *metrics.RetrievalMetrics
}

func NewRouter(
	retrieval ports.RetrievalService,
	evaluator ports.EvaluationService,
	reader ports.MetricsReader,
	tracer ports.Tracer,
	prom *metrics.RetrievalMetrics,
) *Router {
	return &Router{
		retrieval: retrieval,
		evaluator: evaluator,
		reader:    reader,
		tracer:    tracer,
		prom:      prom,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/evaluate", rt.evaluate)
	mux.HandleFunc("/v1/events/ingest", rt.ingestEvent)
	mux.HandleFunc("/v1/metrics/summary", rt.metricsSummary)

	var handler http.Handler = mux
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.prom != nil {
		handler = rt.prom.Middleware(handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query         string            `json:"query"`
	Filters       map[string]any    `json:"filters"`
	Limit         int               `json:"limit"`
	PolicyContext *policyContextDTO `json:"policy_context"`
}

type policyContextDTO struct {
	AllowedChannels []string `json:"allowed_channels"`
	AllowedSources  []string `json:"allowed_sources"`
	UserID          string   `json:"user_id"`
	RedactPII       *bool    `json:"redact_pii"`
	Mode            string   `json:"mode"`
}

func (d *policyContextDTO) toDomain() domain.PolicyContext {
	// Redaction defaults on; callers opt out explicitly.
	pctx := domain.PolicyContext{RedactPII: true}
	if d == nil {
		return pctx
	}
	pctx.AllowedChannels = d.AllowedChannels
	pctx.AllowedSources = d.AllowedSources
	pctx.UserID = d.UserID
	pctx.Mode = domain.PolicyMode(d.Mode)
	if d.RedactPII != nil {
		pctx.RedactPII = *d.RedactPII
	}
	return pctx
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	resp, err := rt.retrieval.Search(r.Context(), domain.Query{
		Text:    req.Query,
		Filters: req.Filters,
		Limit:   req.Limit,
	}, req.PolicyContext.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordRetrieval(resp)
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) recordRetrieval(resp *domain.SearchResponse) {
	if rt.prom == nil {
		return
	}
	used := make(map[string]struct{}, len(resp.SourcesUsed))
	for _, s := range resp.SourcesUsed {
		used[s] = struct{}{}
	}
	var failed []string
	for source := range resp.SourceLatencies {
		if _, ok := used[source]; !ok {
			failed = append(failed, source)
		}
	}
	rt.prom.RecordRetrieval(
		resp.LatencyMS,
		resp.Coverage,
		resp.TotalResults,
		resp.FilteredCount,
		resp.RedactedCount,
		resp.SourceLatencies,
		failed,
	)
}

type evaluateRequest struct {
	domain.EvaluationRequest
	ExportPath string `json:"export_path,omitempty"`
}

func (rt *Router) evaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	report, err := rt.evaluator.Evaluate(r.Context(), req.EvaluationRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.ExportPath != "" {
		if err := evaluation.WriteXLSX(report, req.ExportPath); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, report)
}

// ingestEvent accepts ingestion pipeline events as a pass-through sink; the
// core only counts them in metrics summaries.
func (rt *Router) ingestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.tracer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ingest sink unavailable"})
		return
	}

	var event domain.IngestEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	rt.tracer.EmitIngestEvent(event)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (rt *Router) metricsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	window := 60
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_minutes must be a positive integer"})
			return
		}
		window = parsed
	}

	writeJSON(w, http.StatusOK, rt.reader.Summary(window))
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if domain.IsKind(err, domain.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
