package domain

import "time"

// TraceEvent records one retrieval request for the rolling metrics window.
// Immutable once emitted.
type TraceEvent struct {
	TraceID         string           `json:"trace_id"`
	Timestamp       time.Time        `json:"timestamp"`
	Query           string           `json:"query"`
	Filters         map[string]any   `json:"filters,omitempty"`
	TotalResults    int              `json:"total_results"`
	SourcesUsed     []string         `json:"sources_used"`
	LatencyMS       int64            `json:"latency_ms"`
	SourceLatencies map[string]int64 `json:"source_latencies,omitempty"`
	Coverage        float64          `json:"coverage"`
}

// IngestEvent is accepted as a pass-through sink for the external ingestion
// pipeline; the retrieval core only counts it in metrics summaries.
type IngestEvent struct {
	TraceID    string    `json:"trace_id"`
	Timestamp  time.Time `json:"timestamp"`
	DocID      string    `json:"doc_id"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
}

type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

type AlertType string

const (
	AlertTypeLatency       AlertType = "latency"
	AlertTypeSourceLatency AlertType = "source_latency"
	AlertTypeCoverage      AlertType = "coverage"
)

// Alert is a derived observation handed to the external alert sink. It is
// never persisted by the core.
type Alert struct {
	Severity AlertSeverity `json:"severity"`
	Type     AlertType     `json:"type"`
	TraceID  string        `json:"trace_id,omitempty"`
	Message  string        `json:"message"`
}

type MetricsSummary struct {
	WindowMinutes    int                `json:"window_minutes"`
	TotalRetrievals  int                `json:"total_retrievals"`
	AvgLatencyMS     float64            `json:"avg_latency_ms"`
	P95LatencyMS     int64              `json:"p95_latency_ms"`
	AvgCoverage      float64            `json:"avg_coverage"`
	PerSourceLatency map[string]float64 `json:"per_source_latency,omitempty"`
	TotalIngests     int                `json:"total_ingests"`
	ErrorRate        float64            `json:"error_rate"`
}
