package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
)

// Message turns an error returned by the Manager into text for the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *autherrors.HTTPError
	hasHTTPErr := errors.As(err, &httpErr)

	switch {
	case errors.Is(err, autherrors.ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, autherrors.ErrSessionExpired):
		return "Your session has expired. Please log in again."
	case errors.Is(err, autherrors.ErrNoSavedCredential):
		return "No saved credential. Log in with your password first."
	case errors.Is(err, autherrors.ErrBiometricUnavailable):
		return "Biometric authentication is not available on this device."
	case errors.Is(err, autherrors.ErrBiometricFailed):
		return "Biometric verification failed. Use your password instead."
	case errors.Is(err, autherrors.ErrLoginInProgress):
		return "A login is already in progress."
	case errors.Is(err, autherrors.ErrNotLoggedIn):
		return "You are not logged in."
	case errors.Is(err, autherrors.ErrNetwork):
		return "Cannot reach the server. Check your connection and try again."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, autherrors.ErrServer) && hasHTTPErr:
		return fmt.Sprintf("The server failed to process the request (status %d).", httpErr.StatusCode)
	case errors.Is(err, autherrors.ErrServer):
		return "The server failed to process the request."
	case hasHTTPErr && strings.TrimSpace(httpErr.Body) != "":
		return fmt.Sprintf("Request rejected: %s", strings.TrimSpace(httpErr.Body))
	case hasHTTPErr:
		return fmt.Sprintf("Request rejected (status %d).", httpErr.StatusCode)
	default:
		return "Something went wrong: " + err.Error()
	}
}
