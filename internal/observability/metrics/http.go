package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetrievalMetrics is the per-service prometheus registry for the retrieval
// core: HTTP server metrics plus retrieval, fusion, policy and alert
// observations.
type RetrievalMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal    *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	sourceLatency     *prometheus.HistogramVec
	sourceErrors      *prometheus.CounterVec
	coverage          prometheus.Histogram
	fusedResults      prometheus.Histogram
	policyFiltered    prometheus.Counter
	policyRedacted    prometheus.Counter
	alertsTotal       *prometheus.CounterVec
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "rag",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "retrieval",
			Name:        "requests_total",
			Help:        "Total retrieval requests by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	retrievalDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "retrieval",
			Name:        "duration_seconds",
			Help:        "End-to-end retrieval duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)
	sourceLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "retrieval",
			Name:        "source_latency_seconds",
			Help:        "Per-backend search latency in seconds.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 5},
			ConstLabels: constLabels,
		},
		[]string{"source"},
	)
	sourceErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "retrieval",
			Name:        "source_errors_total",
			Help:        "Total backend search failures and timeouts.",
			ConstLabels: constLabels,
		},
		[]string{"source"},
	)
	coverage := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "retrieval",
			Name:        "coverage_percent",
			Help:        "Distribution of backend coverage per request.",
			Buckets:     []float64{0, 33, 50, 67, 100},
			ConstLabels: constLabels,
		},
	)
	fusedResults := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "rag",
			Subsystem:   "fusion",
			Name:        "results",
			Help:        "Distribution of fused result counts per request.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
			ConstLabels: constLabels,
		},
	)
	policyFiltered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "policy",
			Name:        "filtered_total",
			Help:        "Total results dropped by policy enforcement.",
			ConstLabels: constLabels,
		},
	)
	policyRedacted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "policy",
			Name:        "redacted_total",
			Help:        "Total results with redacted text.",
			ConstLabels: constLabels,
		},
	)
	alertsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rag",
			Subsystem:   "alerts",
			Name:        "emitted_total",
			Help:        "Total alerts emitted by severity and type.",
			ConstLabels: constLabels,
		},
		[]string{"severity", "type"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalDuration,
		sourceLatency,
		sourceErrors,
		coverage,
		fusedResults,
		policyFiltered,
		policyRedacted,
		alertsTotal,
	)

	return &RetrievalMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		retrievalTotal:    retrievalTotal,
		retrievalDuration: retrievalDuration,
		sourceLatency:     sourceLatency,
		sourceErrors:      sourceErrors,
		coverage:          coverage,
		fusedResults:      fusedResults,
		policyFiltered:    policyFiltered,
		policyRedacted:    policyRedacted,
		alertsTotal:       alertsTotal,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordRetrieval observes one completed retrieval request.
func (m *RetrievalMetrics) RecordRetrieval(latencyMS int64, coveragePct float64, totalResults, filtered, redacted int, sourceLatencies map[string]int64, failedSources []string) {
	status := "ok"
	if coveragePct < 100 {
		status = "degraded"
	}
	if coveragePct == 0 {
		status = "failed"
	}
	m.retrievalTotal.WithLabelValues(status).Inc()
	m.retrievalDuration.Observe(float64(latencyMS) / 1000.0)
	m.coverage.Observe(coveragePct)
	m.fusedResults.Observe(float64(totalResults))
	if filtered > 0 {
		m.policyFiltered.Add(float64(filtered))
	}
	if redacted > 0 {
		m.policyRedacted.Add(float64(redacted))
	}
	for source, latency := range sourceLatencies {
		m.sourceLatency.WithLabelValues(source).Observe(float64(latency) / 1000.0)
	}
	for _, source := range failedSources {
		m.sourceErrors.WithLabelValues(source).Inc()
	}
}

// RecordAlert satisfies the tracing layer's AlertRecorder.
func (m *RetrievalMetrics) RecordAlert(severity, alertType string) {
	m.alertsTotal.WithLabelValues(severity, alertType).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
