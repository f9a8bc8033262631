package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapter marks a per-backend timeout, network or protocol failure.
	// Contained by the fan-out coordinator, never a whole-request failure.
	ErrAdapter = errors.New("backend adapter failure")
	// ErrPolicyConfig marks unreadable or invalid policy configuration. The
	// policy engine fails safe on it.
	ErrPolicyConfig = errors.New("policy configuration invalid")
	// ErrObservability marks a metrics/alerting failure; logged and swallowed.
	ErrObservability = errors.New("observability failure")
	// ErrFusionInvariant marks a dedup-key collision. Should be unreachable.
	ErrFusionInvariant = errors.New("fusion invariant violated")

	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
