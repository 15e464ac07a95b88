package consensus

import "fmt"

// InsufficientProvidersError is returned before dispatch when fewer enabled
// providers are registered than the configured minimum.
type InsufficientProvidersError struct {
	Required  int
	Available int
}

func (e *InsufficientProvidersError) Error() string {
	return fmt.Sprintf("insufficient providers: need %d, have %d", e.Required, e.Available)
}

// InsufficientResponsesError is returned after dispatch when fewer providers
// answered successfully than the configured minimum.
type InsufficientResponsesError struct {
	Required int
	Actual   int
}

func (e *InsufficientResponsesError) Error() string {
	return fmt.Sprintf("insufficient responses: need %d, got %d", e.Required, e.Actual)
}

// ConfigurationError means a provider could not be constructed, typically
// because its credential is missing. The caller skips registration; the
// consensus call path never sees this error.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s not configured: %s", e.Provider, e.Reason)
}
