package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for provider dispatch.
var (
	// ErrProviderError wraps any failure reported by a backend.
	ErrProviderError = errors.New("provider error")

	// ErrCredentialMissing indicates a backend that needs a key got none.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrUnknownProvider is returned in strict mode for names outside the registry.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrFatalAPI marks failures that will not go away on their own:
	// bad credentials, exhausted quota or billing problems.
	ErrFatalAPI = errors.New("fatal API error")
)

var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"api key not valid",
	"invalid x-api-key",
	"authentication",
	"unauthorized",
	"permission denied",
	"401",
	"403",
}

// isFatalAPIError reports whether err looks like an auth or quota failure.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal errors with ErrFatalAPI and returns others as-is.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}

// providerError wraps a backend failure. The original error stays reachable
// through errors.Is and errors.As.
func providerError(name Name, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderError, name, wrapFatalError(err))
}
