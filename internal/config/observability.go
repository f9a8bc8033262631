package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds drive graduated alerting inside the tracing layer. Values are
// milliseconds for latency and percentages for coverage.
type Thresholds struct {
	SlowQueryMS       int64   `yaml:"slow_query_ms"`
	CriticalLatencyMS int64   `yaml:"critical_latency_ms"`
	CoverageWarning   float64 `yaml:"coverage_warning_pct"`
	CoverageCritical  float64 `yaml:"coverage_critical_pct"`
}

type ObservabilityConfig struct {
	Thresholds Thresholds `yaml:"thresholds"`
	Logging    struct {
		Enabled  bool   `yaml:"enabled"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"logging"`
	Alerts struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"alerts"`
}

func DefaultObservabilityConfig() ObservabilityConfig {
	var cfg ObservabilityConfig
	cfg.Thresholds = Thresholds{
		SlowQueryMS:       1000,
		CriticalLatencyMS: 5000,
		CoverageWarning:   67,
		CoverageCritical:  33,
	}
	cfg.Logging.Enabled = true
	cfg.Logging.LogLevel = "info"
	cfg.Alerts.Enabled = true
	return cfg
}

// LoadObservabilityConfig reads the observability YAML; a missing file yields
// the defaults so the request path never depends on optional tuning.
func LoadObservabilityConfig(path string) (ObservabilityConfig, error) {
	cfg := DefaultObservabilityConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read observability config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse observability config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ObservabilityConfig) validate() error {
	def := DefaultObservabilityConfig().Thresholds
	t := &c.Thresholds
	if t.SlowQueryMS <= 0 {
		t.SlowQueryMS = def.SlowQueryMS
	}
	if t.CriticalLatencyMS <= 0 {
		t.CriticalLatencyMS = def.CriticalLatencyMS
	}
	if t.CriticalLatencyMS < t.SlowQueryMS {
		return fmt.Errorf("critical_latency_ms %d below slow_query_ms %d", t.CriticalLatencyMS, t.SlowQueryMS)
	}
	if t.CoverageWarning <= 0 || t.CoverageWarning > 100 {
		t.CoverageWarning = def.CoverageWarning
	}
	if t.CoverageCritical <= 0 || t.CoverageCritical > 100 {
		t.CoverageCritical = def.CoverageCritical
	}
	if t.CoverageCritical > t.CoverageWarning {
		return fmt.Errorf("coverage_critical_pct %.0f above coverage_warning_pct %.0f", t.CoverageCritical, t.CoverageWarning)
	}
	return nil
}
