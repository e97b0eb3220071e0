// Package biometric provides the user-verification gate that unlocks the credential vault.
package biometric

import (
	"context"
	"fmt"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
)

// Status is the capability state reported by the platform.
type Status int

const (
	StatusAvailable Status = iota
	StatusNoHardware
	StatusHardwareUnavailable
	StatusNoneEnrolled
	StatusSecurityUpdateRequired
	StatusUnsupported
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusNoHardware:
		return "no hardware"
	case StatusHardwareUnavailable:
		return "hardware unavailable"
	case StatusNoneEnrolled:
		return "none enrolled"
	case StatusSecurityUpdateRequired:
		return "security update required"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Gate probes capability and runs a user-verification challenge.
// Authenticate returns nil on success and an error wrapping ErrBiometricUnavailable or
// ErrBiometricFailed otherwise; each call has exactly one outcome.
type Gate interface {
	CanAuthenticate(ctx context.Context) bool
	Authenticate(ctx context.Context) error
}

// FuncGate adapts platform bindings (or test doubles) to Gate.
type FuncGate struct {
	StatusFunc    func(ctx context.Context) Status
	ChallengeFunc func(ctx context.Context) error
}

var _ Gate = FuncGate{}

func (g FuncGate) status(ctx context.Context) Status {
	if g.StatusFunc == nil {
		return StatusUnknown
	}
	return g.StatusFunc(ctx)
}

func (g FuncGate) CanAuthenticate(ctx context.Context) bool {
	return g.status(ctx) == StatusAvailable
}

func (g FuncGate) Authenticate(ctx context.Context) error {
	if s := g.status(ctx); s != StatusAvailable {
		return fmt.Errorf("%w: %s", autherrors.ErrBiometricUnavailable, s)
	}
	if g.ChallengeFunc == nil {
		return fmt.Errorf("%w: no challenge configured", autherrors.ErrBiometricUnavailable)
	}
	if err := g.ChallengeFunc(ctx); err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrBiometricFailed, err)
	}
	return nil
}
