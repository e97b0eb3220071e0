package biometric

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// Prompter asks the user for their PIN.
type Prompter func(ctx context.Context) (string, error)

// PINGate verifies a locally enrolled PIN against a bcrypt hash. It stands in for a fingerprint
// prompt on hosts without biometric hardware (CLI, desktop).
type PINGate struct {
	hashFile string
	prompt   Prompter
}

var _ Gate = (*PINGate)(nil)

const minPINLength = 4

func NewPINGate(hashFile string, prompt Prompter) *PINGate {
	return &PINGate{hashFile: hashFile, prompt: prompt}
}

// Enroll stores the bcrypt hash of pin, replacing any previous enrollment.
func (g *PINGate) Enroll(pin string) error {
	if len(strings.TrimSpace(pin)) < minPINLength {
		return fmt.Errorf("PIN must be at least %d characters", minPINLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("PINGate.Enroll hash: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(g.hashFile), 0o700); err != nil {
		return fmt.Errorf("PINGate.Enroll mkdir: %w", err)
	}
	if err := os.WriteFile(g.hashFile, hash, 0o600); err != nil {
		return fmt.Errorf("PINGate.Enroll write: %w", err)
	}
	return nil
}

// Unenroll removes the stored PIN.
func (g *PINGate) Unenroll() error {
	if err := os.Remove(g.hashFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("PINGate.Unenroll: %w", err)
	}
	return nil
}

func (g *PINGate) Status() Status {
	if g.prompt == nil {
		return StatusNoHardware
	}
	hash, err := os.ReadFile(g.hashFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return StatusNoneEnrolled
	case err != nil:
		return StatusHardwareUnavailable
	case len(hash) == 0:
		return StatusNoneEnrolled
	}
	return StatusAvailable
}

func (g *PINGate) CanAuthenticate(context.Context) bool {
	return g.Status() == StatusAvailable
}

func (g *PINGate) Authenticate(ctx context.Context) error {
	if s := g.Status(); s != StatusAvailable {
		return fmt.Errorf("%w: %s", autherrors.ErrBiometricUnavailable, s)
	}
	hash, err := os.ReadFile(g.hashFile)
	if err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrBiometricUnavailable, err)
	}

	pin, err := g.prompt(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrBiometricFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrBiometricFailed, err)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pin)); err != nil {
		return fmt.Errorf("%w: PIN not recognised", autherrors.ErrBiometricFailed)
	}
	return nil
}
