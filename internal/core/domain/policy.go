package domain

type PolicyMode string

const (
	PolicyModeFilter    PolicyMode = "filter"
	PolicyModeRedact    PolicyMode = "redact"
	PolicyModeAuditOnly PolicyMode = "audit_only"
)

func (m PolicyMode) Valid() bool {
	switch m {
	case PolicyModeFilter, PolicyModeRedact, PolicyModeAuditOnly:
		return true
	}
	return false
}

// PolicyContext is the caller-supplied enforcement context. It is scoped to a
// single request and never persisted. Empty allow-lists mean "no restriction".
type PolicyContext struct {
	AllowedChannels []string   `json:"allowed_channels,omitempty"`
	AllowedSources  []string   `json:"allowed_sources,omitempty"`
	UserID          string     `json:"user_id,omitempty"`
	RedactPII       bool       `json:"redact_pii"`
	Mode            PolicyMode `json:"mode,omitempty"`
}

type ViolationKind string

const (
	ViolationAuthorizationFailed ViolationKind = "authorization_failed"
	ViolationContentFiltered     ViolationKind = "content_filtered"
	ViolationPIIDetected         ViolationKind = "pii_detected"
	ViolationPolicyError         ViolationKind = "policy_error"
)

type PolicyViolation struct {
	ChunkID   string        `json:"chunk_id"`
	Violation ViolationKind `json:"violation"`
	Reason    string        `json:"reason"`
}

// PolicyDecision is the outcome of enforcing a PolicyContext over a fused
// result list. Results keep their fused order; Violations is append-only, one
// entry per offending result.
type PolicyDecision struct {
	Results       []SearchResult    `json:"results"`
	TotalResults  int               `json:"total_results"`
	FilteredCount int               `json:"filtered_count"`
	RedactedCount int               `json:"redacted_count"`
	Violations    []PolicyViolation `json:"violations,omitempty"`
	PolicyMode    PolicyMode        `json:"policy_mode"`
}
