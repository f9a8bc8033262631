package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/core/ports"
)

const (
	traceIDPrefix    = "rag"
	alertQueueSize   = 64
	alertSendTimeout = 5 * time.Second
)

// AlertRecorder counts emitted alerts; implemented by the prometheus layer.
type AlertRecorder interface {
	RecordAlert(severity, alertType string)
}

// Tracer owns the shared metrics store and the alert queue. Threshold
// evaluation runs synchronously inside EmitRetrievalEvent but never raises;
// alert delivery is decoupled from the request path through a buffered
// channel drained by a single consumer goroutine.
type Tracer struct {
	store     *EventStore
	cfg       config.ObservabilityConfig
	sink      ports.AlertSink
	publisher ports.TraceEventPublisher
	recorder  AlertRecorder
	logger    *slog.Logger

	alerts chan domain.Alert
	done   chan struct{}
	wg     sync.WaitGroup
}

type Option func(*Tracer)

func WithAlertSink(sink ports.AlertSink) Option {
	return func(t *Tracer) { t.sink = sink }
}

func WithEventPublisher(p ports.TraceEventPublisher) Option {
	return func(t *Tracer) { t.publisher = p }
}

func WithAlertRecorder(r AlertRecorder) Option {
	return func(t *Tracer) { t.recorder = r }
}

func NewTracer(store *EventStore, cfg config.ObservabilityConfig, logger *slog.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracer{
		store:  store,
		cfg:    cfg,
		logger: logger,
		alerts: make(chan domain.Alert, alertQueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.wg.Add(1)
	go t.drainAlerts()
	return t
}

// StartTrace returns a globally unique, time-sortable, human-scannable id:
// rag_<unix_millis>_<8-hex>.
func (t *Tracer) StartTrace() string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", traceIDPrefix, time.Now().UnixMilli(), entropy)
}

// EmitRetrievalEvent appends the event to the rolling window, evaluates alert
// thresholds and enqueues any alerts. Observability failures must not fail
// the retrieval path, so everything here is recovered and logged.
func (t *Tracer) EmitRetrievalEvent(event domain.TraceEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("trace_emit_panic", "error", domain.WrapError(domain.ErrObservability, "emit retrieval event", fmt.Errorf("%v", r)))
		}
	}()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	t.store.Append(event)

	if t.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
		if err := t.publisher.PublishRetrievalEvent(ctx, event); err != nil {
			t.logger.Warn("trace_event_publish_failed", "trace_id", event.TraceID, "error", err)
		}
		cancel()
	}

	if !t.cfg.Alerts.Enabled {
		return
	}
	for _, alert := range evaluateThresholds(t.cfg.Thresholds, event) {
		t.enqueue(alert)
	}
}

func (t *Tracer) EmitIngestEvent(event domain.IngestEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("ingest_emit_panic", "error", domain.WrapError(domain.ErrObservability, "emit ingest event", fmt.Errorf("%v", r)))
		}
	}()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	t.store.AppendIngest(event)
}

func (t *Tracer) enqueue(alert domain.Alert) {
	if t.recorder != nil {
		t.recorder.RecordAlert(string(alert.Severity), string(alert.Type))
	}
	select {
	case t.alerts <- alert:
	default:
		// Queue full: dropping beats blocking a live request on alerting.
		t.logger.Warn("alert_queue_full", "severity", string(alert.Severity), "type", string(alert.Type))
	}
}

func (t *Tracer) drainAlerts() {
	defer t.wg.Done()
	for {
		select {
		case alert := <-t.alerts:
			t.deliver(alert)
		case <-t.done:
			for {
				select {
				case alert := <-t.alerts:
					t.deliver(alert)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) deliver(alert domain.Alert) {
	t.logger.Warn("alert", "severity", string(alert.Severity), "type", string(alert.Type), "message", alert.Message)
	if t.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
	defer cancel()
	if err := t.sink.Publish(ctx, alert); err != nil {
		t.logger.Error("alert_publish_failed", "error", domain.WrapError(domain.ErrObservability, "publish alert", err))
	}
}

// Close drains pending alerts and stops the consumer.
func (t *Tracer) Close() {
	close(t.done)
	t.wg.Wait()
}

// Summary aggregates the rolling window. p95 indexes the sorted latency
// sample at floor(n*0.95), clamped to the last element for small n.
func (t *Tracer) Summary(windowMinutes int) domain.MetricsSummary {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	cutoff := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)
	events := t.store.Snapshot(cutoff)

	summary := domain.MetricsSummary{
		WindowMinutes: windowMinutes,
		TotalIngests:  t.store.IngestCount(cutoff),
	}
	if len(events) == 0 {
		return summary
	}

	latencies := make([]int64, 0, len(events))
	sourceTotals := make(map[string]int64)
	sourceCounts := make(map[string]int)
	var latencySum, coverageSum float64
	degraded := 0

	for _, e := range events {
		latencies = append(latencies, e.LatencyMS)
		latencySum += float64(e.LatencyMS)
		coverageSum += e.Coverage
		if e.Coverage < 100 {
			degraded++
		}
		for source, latency := range e.SourceLatencies {
			sourceTotals[source] += latency
			sourceCounts[source]++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	idx := int(float64(len(latencies)) * 0.95)
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}

	summary.TotalRetrievals = len(events)
	summary.AvgLatencyMS = latencySum / float64(len(events))
	summary.P95LatencyMS = latencies[idx]
	summary.AvgCoverage = coverageSum / float64(len(events))
	summary.ErrorRate = float64(degraded) / float64(len(events))
	summary.PerSourceLatency = make(map[string]float64, len(sourceTotals))
	for source, total := range sourceTotals {
		summary.PerSourceLatency[source] = float64(total) / float64(sourceCounts[source])
	}
	return summary
}

// Reset clears the shared store; for tests and operational resets.
func (t *Tracer) Reset() {
	t.store.Reset()
}
