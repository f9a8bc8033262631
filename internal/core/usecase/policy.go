package usecase

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/retrieval-core/internal/config"
	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

// PolicyEngine filters and redacts fused results per the caller's
// PolicyContext and the static policy configuration. It holds no per-request
// state and is safe for concurrent use across requests.
//
// A nil configuration means the config failed to load at startup; every call
// then fails safe and returns zero results rather than risk a policy bypass.
type PolicyEngine struct {
	cfg    *config.PolicyConfig
	logger *slog.Logger
}

func NewPolicyEngine(cfg *config.PolicyConfig, logger *slog.Logger) *PolicyEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyEngine{cfg: cfg, logger: logger}
}

// Enforce processes results in their fused order; downstream rank position is
// presentation-significant and must not be reshuffled here.
func (e *PolicyEngine) Enforce(results []domain.SearchResult, pctx domain.PolicyContext) (decision domain.PolicyDecision) {
	mode := pctx.Mode
	if e.cfg != nil && !mode.Valid() {
		mode = e.cfg.DefaultMode
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("policy_evaluation_panic", "panic", fmt.Sprint(r))
			decision = e.failSafe(results, mode, fmt.Sprintf("policy evaluation panic: %v", r))
		}
	}()

	if e.cfg == nil {
		return e.failSafe(results, mode, "policy configuration not loaded")
	}

	if !e.cfg.Enabled {
		return domain.PolicyDecision{
			Results:      results,
			TotalResults: len(results),
			PolicyMode:   mode,
		}
	}

	decision = domain.PolicyDecision{
		Results:    make([]domain.SearchResult, 0, len(results)),
		PolicyMode: mode,
	}

	for _, result := range results {
		violation, failed := e.check(result, pctx)
		if failed {
			decision.Violations = append(decision.Violations, violation)
			if mode != domain.PolicyModeAuditOnly {
				decision.FilteredCount++
				continue
			}
		}

		if pctx.RedactPII {
			redacted, changed := e.redact(result.Text)
			if changed {
				result.Text = redacted
				if result.Metadata == nil {
					result.Metadata = make(map[string]any, 1)
				}
				result.Metadata["redacted"] = true
				decision.RedactedCount++
				decision.Violations = append(decision.Violations, domain.PolicyViolation{
					ChunkID:   result.ChunkID,
					Violation: domain.ViolationPIIDetected,
					Reason:    "sensitive pattern matched in result text",
				})
			}
		}

		decision.Results = append(decision.Results, result)
	}

	decision.TotalResults = len(decision.Results)

	if e.cfg.Audit.LogViolations {
		for _, v := range decision.Violations {
			e.logger.Warn("policy_violation", "chunk_id", v.ChunkID, "violation", string(v.Violation), "reason", v.Reason)
		}
	}
	return decision
}

// check runs authorization and the configured content filter. The first
// failure wins; a failed result carries exactly one violation.
func (e *PolicyEngine) check(result domain.SearchResult, pctx domain.PolicyContext) (domain.PolicyViolation, bool) {
	if e.cfg.Authorization.ChannelBased && len(pctx.AllowedChannels) > 0 {
		if !contains(pctx.AllowedChannels, result.ChannelID) {
			return domain.PolicyViolation{
				ChunkID:   result.ChunkID,
				Violation: domain.ViolationAuthorizationFailed,
				Reason:    fmt.Sprintf("channel %q not in allowed set", result.ChannelID),
			}, true
		}
	}

	if e.cfg.Authorization.SourceBased && len(pctx.AllowedSources) > 0 {
		if !intersects(pctx.AllowedSources, result.Sources) {
			return domain.PolicyViolation{
				ChunkID:   result.ChunkID,
				Violation: domain.ViolationAuthorizationFailed,
				Reason:    "no result source in allowed set",
			}, true
		}
	}

	for _, term := range e.cfg.ProhibitedContent {
		if term == "" {
			continue
		}
		lowered := strings.ToLower(term)
		if strings.Contains(strings.ToLower(result.Text), lowered) ||
			strings.Contains(strings.ToLower(result.Title), lowered) {
			return domain.PolicyViolation{
				ChunkID:   result.ChunkID,
				Violation: domain.ViolationContentFiltered,
				Reason:    fmt.Sprintf("prohibited term %q", term),
			}, true
		}
	}

	return domain.PolicyViolation{}, false
}

// redact applies every configured sensitive pattern. Replacement tokens are
// chosen so a second pass leaves redacted text unchanged.
func (e *PolicyEngine) redact(text string) (string, bool) {
	out := text
	for _, rule := range e.cfg.RedactionRules() {
		out = rule.Pattern.ReplaceAllString(out, rule.Replacement)
	}
	return out, out != text
}

// failSafe is the answer to any configuration or evaluation failure: zero
// results, every input marked filtered, a single policy_error violation.
// Unredacted or unauthorized data must never leak on error.
func (e *PolicyEngine) failSafe(input []domain.SearchResult, mode domain.PolicyMode, reason string) domain.PolicyDecision {
	if !mode.Valid() {
		mode = domain.PolicyModeFilter
	}
	return domain.PolicyDecision{
		Results:       []domain.SearchResult{},
		TotalResults:  0,
		FilteredCount: len(input),
		PolicyMode:    mode,
		Violations: []domain.PolicyViolation{{
			Violation: domain.ViolationPolicyError,
			Reason:    reason,
		}},
	}
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
