package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common error kinds for the setoran session core
var (
	// Transport errors
	ErrNetwork      = errors.New("network unreachable")
	ErrServer       = errors.New("server error")
	ErrClient       = errors.New("client error")
	ErrUnauthorized = errors.New("unauthorized")

	// Session errors
	ErrSessionExpired     = errors.New("session expired")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrLoginInProgress    = errors.New("login already in progress")
	ErrInvalidState       = errors.New("operation not valid in current session state")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Credential vault errors
	ErrCredentialVault   = errors.New("credential vault unavailable")
	ErrNoSavedCredential = errors.New("no saved credential")

	// Biometric errors
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")
	ErrBiometricFailed      = errors.New("biometric authentication failed")
)

// HTTPError carries a non-2xx response. It unwraps to the error kind of its status code
// so callers can use Is(err, ErrServer) and still read the status and body.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: %d %s", e.kind(), e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: %d %s", e.kind(), e.StatusCode, body)
}

func (e *HTTPError) Unwrap() error {
	return e.kind()
}

func (e *HTTPError) kind() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return ErrClient
	}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
