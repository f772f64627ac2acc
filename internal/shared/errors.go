package shared

import (
	"fmt"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Provider errors
	ErrNotAuthenticated    = fmt.Errorf("not authenticated")
	ErrRateLimited         = fmt.Errorf("rate limited")
	ErrCapabilityMissing   = fmt.Errorf("capability not available")
	ErrProviderRequest     = fmt.Errorf("provider request failed")
	ErrProviderUnavailable = fmt.Errorf("provider unavailable")

	// Catalog errors
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidRecord = fmt.Errorf("invalid provider record")
)

// RateLimitError reports a provider-side rate limit (HTTP 429 or equivalent).
//
// RetryAfter carries the provider-suggested wait when one was given, zero
// otherwise. Unwraps to [ErrRateLimited] so callers can match it with [errors.Is].
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
