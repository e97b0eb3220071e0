// Package vault holds the user's login identifier and secret for biometric re-login.
//
// The vault fails closed: any storage or decryption error is logged and reported as
// "no saved credential" rather than surfaced to the caller.
package vault

import (
	"fmt"
	"strings"
	"sync"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Credential is the stored login pair. Present mirrors the presence flag written with it.
type Credential struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	Present    bool   `json:"present"`
}

// complete reports whether the flag and both fields agree.
func (c *Credential) complete() bool {
	return c != nil && c.Present && c.Identifier != "" && c.Secret != ""
}

// Repo is the underlying secure storage primitive.
type Repo interface {
	// Load returns the stored credential, or nil when there is none
	Load() (*Credential, error)
	Save(credential *Credential) error
	Delete() error
}

type Vault struct {
	repo   Repo
	logger zerolog.Logger
	mu     sync.Mutex
}

type Option func(*Vault)

func WithLogger(logger zerolog.Logger) Option {
	return func(v *Vault) {
		v.logger = logger
	}
}

func New(repo Repo, options ...Option) *Vault {
	v := &Vault{
		repo:   repo,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Save clears any previous credential and then writes the new pair.
func (v *Vault) Save(identifier, secret string) error {
	if strings.TrimSpace(identifier) == "" || secret == "" {
		return errors.New("[Vault.Save] identifier and secret are required")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.repo.Delete(); err != nil {
		v.logger.Error().Err(err).Msg("vault: clear before save failed")
		return fmt.Errorf("%w: %w", autherrors.ErrCredentialVault, err)
	}
	if err := v.repo.Save(&Credential{Identifier: identifier, Secret: secret, Present: true}); err != nil {
		v.logger.Error().Err(err).Msg("vault: save failed")
		return fmt.Errorf("%w: %w", autherrors.ErrCredentialVault, err)
	}
	return nil
}

// Get returns the stored credential. ok is false when nothing usable is stored or the storage failed.
func (v *Vault) Get() (credential Credential, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stored, err := v.repo.Load()
	if err != nil {
		v.logger.Warn().Err(err).Msg("vault: read failed, treating credential as absent")
		return Credential{}, false
	}
	if !stored.complete() {
		return Credential{}, false
	}
	return *stored, true
}

func (v *Vault) Identifier() string {
	c, _ := v.Get()
	return c.Identifier
}

func (v *Vault) Secret() string {
	c, _ := v.Get()
	return c.Secret
}

func (v *Vault) Has() bool {
	_, ok := v.Get()
	return ok
}

func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.repo.Delete(); err != nil {
		v.logger.Error().Err(err).Msg("vault: clear failed")
		return fmt.Errorf("%w: %w", autherrors.ErrCredentialVault, err)
	}
	return nil
}
