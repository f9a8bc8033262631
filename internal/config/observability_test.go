package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadObservabilityConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadObservabilityConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}

	def := DefaultObservabilityConfig()
	if cfg.Thresholds != def.Thresholds {
		t.Fatalf("expected default thresholds, got %+v", cfg.Thresholds)
	}
	if !cfg.Alerts.Enabled {
		t.Fatalf("expected alerts enabled by default")
	}
}

func TestLoadObservabilityConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observability.yaml")
	content := `
thresholds:
  slow_query_ms: 250
  critical_latency_ms: 2000
  coverage_warning_pct: 80
  coverage_critical_pct: 40
alerts:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadObservabilityConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Thresholds.SlowQueryMS != 250 || cfg.Thresholds.CriticalLatencyMS != 2000 {
		t.Fatalf("expected latency overrides, got %+v", cfg.Thresholds)
	}
	if cfg.Thresholds.CoverageWarning != 80 || cfg.Thresholds.CoverageCritical != 40 {
		t.Fatalf("expected coverage overrides, got %+v", cfg.Thresholds)
	}
	if cfg.Alerts.Enabled {
		t.Fatalf("expected alerts disabled")
	}
}

func TestLoadObservabilityConfigRejectsInvertedThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observability.yaml")
	content := `
thresholds:
  slow_query_ms: 5000
  critical_latency_ms: 1000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadObservabilityConfig(path); err == nil {
		t.Fatalf("expected error for critical below slow threshold")
	}
}
