package tracing

import (
	"fmt"

	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

// evaluateThresholds derives graduated alerts from one retrieval event. Total
// latency and coverage escalate from warning to critical; a single slow
// source only ever warns.
func evaluateThresholds(t config.Thresholds, event domain.TraceEvent) []domain.Alert {
	var alerts []domain.Alert

	switch {
	case event.LatencyMS > t.CriticalLatencyMS:
		alerts = append(alerts, domain.Alert{
			Severity: domain.AlertCritical,
			Type:     domain.AlertTypeLatency,
			TraceID:  event.TraceID,
			Message:  fmt.Sprintf("retrieval latency %dms exceeds critical threshold %dms", event.LatencyMS, t.CriticalLatencyMS),
		})
	case event.LatencyMS > t.SlowQueryMS:
		alerts = append(alerts, domain.Alert{
			Severity: domain.AlertWarning,
			Type:     domain.AlertTypeLatency,
			TraceID:  event.TraceID,
			Message:  fmt.Sprintf("retrieval latency %dms exceeds slow threshold %dms", event.LatencyMS, t.SlowQueryMS),
		})
	}

	for source, latency := range event.SourceLatencies {
		if latency > t.CriticalLatencyMS {
			alerts = append(alerts, domain.Alert{
				Severity: domain.AlertWarning,
				Type:     domain.AlertTypeSourceLatency,
				TraceID:  event.TraceID,
				Message:  fmt.Sprintf("source %s latency %dms exceeds critical threshold %dms", source, latency, t.CriticalLatencyMS),
			})
		}
	}

	switch {
	case event.Coverage < t.CoverageCritical:
		alerts = append(alerts, domain.Alert{
			Severity: domain.AlertCritical,
			Type:     domain.AlertTypeCoverage,
			TraceID:  event.TraceID,
			Message:  fmt.Sprintf("coverage %.1f%% below critical threshold %.0f%%", event.Coverage, t.CoverageCritical),
		})
	case event.Coverage < t.CoverageWarning:
		alerts = append(alerts, domain.Alert{
			Severity: domain.AlertWarning,
			Type:     domain.AlertTypeCoverage,
			TraceID:  event.TraceID,
			Message:  fmt.Sprintf("coverage %.1f%% below warning threshold %.0f%%", event.Coverage, t.CoverageWarning),
		})
	}

	return alerts
}
