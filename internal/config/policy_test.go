package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadPolicyConfigCompilesPatterns(t *testing.T) {
	path := writeTempConfig(t, `
enabled: true
default_mode: redact
authorization:
  channel_based: true
prohibited_content:
  - secret
sensitive_patterns:
  - name: email
    pattern: '[a-z]+@[a-z]+\.[a-z]{2,}'
    replacement: '[EMAIL]'
audit:
  enabled: true
  log_violations: true
`)

	cfg, err := LoadPolicyConfig(path)
	if err != nil {
		t.Fatalf("load policy config: %v", err)
	}
	if cfg.DefaultMode != domain.PolicyModeRedact {
		t.Fatalf("expected redact default mode, got %s", cfg.DefaultMode)
	}
	rules := cfg.RedactionRules()
	if len(rules) != 1 || rules[0].Name != "email" {
		t.Fatalf("expected one compiled rule, got %+v", rules)
	}
	if got := rules[0].Pattern.ReplaceAllString("mail me: jane@corp.io", rules[0].Replacement); got != "mail me: [EMAIL]" {
		t.Fatalf("expected redaction to apply, got %q", got)
	}
}

func TestLoadPolicyConfigRejectsBadRegex(t *testing.T) {
	path := writeTempConfig(t, `
enabled: true
sensitive_patterns:
  - name: broken
    pattern: '[unclosed'
    replacement: 'x'
`)

	_, err := LoadPolicyConfig(path)
	if !domain.IsKind(err, domain.ErrPolicyConfig) {
		t.Fatalf("expected policy config error, got %v", err)
	}
}

func TestLoadPolicyConfigRejectsUnknownMode(t *testing.T) {
	path := writeTempConfig(t, `
enabled: true
default_mode: everything_goes
`)

	_, err := LoadPolicyConfig(path)
	if !domain.IsKind(err, domain.ErrPolicyConfig) {
		t.Fatalf("expected policy config error, got %v", err)
	}
}

func TestLoadPolicyConfigMissingFile(t *testing.T) {
	_, err := LoadPolicyConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !domain.IsKind(err, domain.ErrPolicyConfig) {
		t.Fatalf("expected policy config error for missing file, got %v", err)
	}
}

func TestValidateDefaultsModeToFilter(t *testing.T) {
	cfg := &PolicyConfig{Enabled: true}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.DefaultMode != domain.PolicyModeFilter {
		t.Fatalf("expected filter default, got %s", cfg.DefaultMode)
	}
}
