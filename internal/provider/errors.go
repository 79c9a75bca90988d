package provider

import "fmt"

// ConfigError indicates missing or unusable provider credentials. It is
// always fatal to the operation; callers must never degrade to a default.
type ConfigError struct {
	Provider string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// ValidationError indicates malformed, missing, or out-of-range input.
// It is raised before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UpstreamError carries a non-2xx provider response. Body preserves the
// provider's error detail verbatim so the user sees the specific rejection
// (e.g. "amount below minimum").
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, e.Body)
}

// NotFoundError indicates the provider does not know the given order id.
type NotFoundError struct {
	Provider string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: order %s not found", e.Provider, e.ID)
}
