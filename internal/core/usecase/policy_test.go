package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

func testPolicyConfig(t *testing.T) *config.PolicyConfig {
	t.Helper()
	cfg := &config.PolicyConfig{
		Enabled:     true,
		DefaultMode: domain.PolicyModeFilter,
		ProhibitedContent: []string{
			"confidential",
		},
		SensitivePatterns: []config.SensitivePattern{
			{Name: "email", Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, Replacement: "[EMAIL]"},
			{Name: "phone", Pattern: `\+?\d[\d\s().-]{7,}\d`, Replacement: "[PHONE]"},
		},
	}
	cfg.Authorization.ChannelBased = true
	cfg.Audit.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate policy config: %v", err)
	}
	return cfg
}

func TestEnforceFilterModeDropsUnauthorizedChannel(t *testing.T) {
	engine := NewPolicyEngine(testPolicyConfig(t), nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "public", Text: "safe"},
		{ChunkID: "c2", ChannelID: "restricted", Text: "hidden"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{
		AllowedChannels: []string{"public"},
		Mode:            domain.PolicyModeFilter,
	})

	if decision.TotalResults != 1 {
		t.Fatalf("expected 1 surviving result, got %d", decision.TotalResults)
	}
	if decision.FilteredCount != 1 {
		t.Fatalf("expected filtered count 1, got %d", decision.FilteredCount)
	}
	if len(decision.Violations) != 1 || decision.Violations[0].Violation != domain.ViolationAuthorizationFailed {
		t.Fatalf("expected one authorization violation, got %+v", decision.Violations)
	}
}

func TestEnforceDroppedResultIsNeverRedacted(t *testing.T) {
	engine := NewPolicyEngine(testPolicyConfig(t), nil)

	// The unauthorized result carries a phone number; it must be dropped
	// by authorization without the redaction stage ever seeing it.
	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "restricted", Text: "call +1 (555) 123-4567"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{
		AllowedChannels: []string{"public"},
		RedactPII:       true,
		Mode:            domain.PolicyModeFilter,
	})

	if decision.TotalResults != 0 {
		t.Fatalf("expected result dropped, got %d", decision.TotalResults)
	}
	if decision.RedactedCount != 0 {
		t.Fatalf("dropped results must not count as redacted, got %d", decision.RedactedCount)
	}
	for _, v := range decision.Violations {
		if v.Violation == domain.ViolationPIIDetected {
			t.Fatalf("dropped result must not produce a pii violation: %+v", v)
		}
	}
}

func TestEnforceAuditOnlyKeepsViolatingResults(t *testing.T) {
	engine := NewPolicyEngine(testPolicyConfig(t), nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "restricted", Text: "hidden"},
		{ChunkID: "c2", ChannelID: "public", Text: "safe"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{
		AllowedChannels: []string{"public"},
		Mode:            domain.PolicyModeAuditOnly,
	})

	if decision.TotalResults != 2 {
		t.Fatalf("audit_only must keep all results, got %d", decision.TotalResults)
	}
	if decision.FilteredCount != 0 {
		t.Fatalf("audit_only must not filter, got %d", decision.FilteredCount)
	}
	if len(decision.Violations) != 1 {
		t.Fatalf("expected violation still recorded, got %+v", decision.Violations)
	}
}

func TestEnforceRedactsSensitivePatterns(t *testing.T) {
	engine := NewPolicyEngine(testPolicyConfig(t), nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "public", Text: "reach me at jane.doe@example.com today"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{RedactPII: true})

	got := decision.Results[0]
	if strings.Contains(got.Text, "example.com") {
		t.Fatalf("expected email redacted, got %q", got.Text)
	}
	if !strings.Contains(got.Text, "[EMAIL]") {
		t.Fatalf("expected replacement token, got %q", got.Text)
	}
	if got.Metadata["redacted"] != true {
		t.Fatalf("expected redacted metadata flag, got %+v", got.Metadata)
	}
	if decision.RedactedCount != 1 {
		t.Fatalf("expected redacted count 1, got %d", decision.RedactedCount)
	}

	// A second pass over already-redacted text must change nothing.
	second := engine.Enforce(decision.Results, domain.PolicyContext{RedactPII: true})
	if second.RedactedCount != 0 {
		t.Fatalf("redaction must be idempotent, got %d re-redactions", second.RedactedCount)
	}
	if second.Results[0].Text != got.Text {
		t.Fatalf("redacted text changed on second pass: %q vs %q", second.Results[0].Text, got.Text)
	}
}

func TestEnforceProhibitedContentFiltered(t *testing.T) {
	engine := NewPolicyEngine(testPolicyConfig(t), nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "public", Text: "this memo is Confidential material"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{Mode: domain.PolicyModeFilter})

	if decision.TotalResults != 0 {
		t.Fatalf("expected prohibited content dropped, got %d results", decision.TotalResults)
	}
	if decision.Violations[0].Violation != domain.ViolationContentFiltered {
		t.Fatalf("expected content_filtered violation, got %+v", decision.Violations)
	}
}

func TestEnforceSourceBasedAuthorization(t *testing.T) {
	cfg := testPolicyConfig(t)
	cfg.Authorization.SourceBased = true
	engine := NewPolicyEngine(cfg, nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "public", Sources: []string{"semantic"}, Text: "a"},
		{ChunkID: "c2", ChannelID: "public", Sources: []string{"analytics"}, Text: "b"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{
		AllowedSources: []string{"semantic", "keyword"},
		Mode:           domain.PolicyModeFilter,
	})

	if decision.TotalResults != 1 || decision.Results[0].ChunkID != "c1" {
		t.Fatalf("expected only semantic-sourced result, got %+v", decision.Results)
	}
}

func TestEnforceFailSafeWithoutConfig(t *testing.T) {
	engine := NewPolicyEngine(nil, nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", Text: "a"},
		{ChunkID: "c2", Text: "b"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{})

	if decision.TotalResults != 0 || len(decision.Results) != 0 {
		t.Fatalf("fail-safe must return zero results, got %+v", decision.Results)
	}
	if decision.FilteredCount != len(results) {
		t.Fatalf("fail-safe must mark all input filtered, got %d", decision.FilteredCount)
	}
	if len(decision.Violations) != 1 || decision.Violations[0].Violation != domain.ViolationPolicyError {
		t.Fatalf("expected single policy_error violation, got %+v", decision.Violations)
	}
}

func TestEnforceDisabledConfigPassesThrough(t *testing.T) {
	cfg := testPolicyConfig(t)
	cfg.Enabled = false
	engine := NewPolicyEngine(cfg, nil)

	results := []domain.SearchResult{
		{ChunkID: "c1", ChannelID: "restricted", Text: "secret email a@b.co"},
	}

	decision := engine.Enforce(results, domain.PolicyContext{
		AllowedChannels: []string{"public"},
		RedactPII:       true,
	})

	if decision.TotalResults != 1 {
		t.Fatalf("disabled policy must pass results through, got %d", decision.TotalResults)
	}
	if decision.Results[0].Text != results[0].Text {
		t.Fatalf("disabled policy must not modify text, got %q", decision.Results[0].Text)
	}
}
