package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
)

const maxErrorBody = 4 << 10

// Classify returns nil for 2xx/3xx responses and an *errors.HTTPError otherwise. It reads (but does
// not close) up to 4KiB of the body for the error message.
func Classify(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &autherrors.HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
}

// TransportError makes sure a failed call surfaces as ErrNetwork unless the caller gave up.
func TransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, autherrors.ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %w", autherrors.ErrNetwork, err)
}
