// Package session owns the session lifecycle: login, silent refresh, authenticated requests and
// logout. The Manager is the only writer of the token record.
package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-setoran-session/biometric"
	"github.com/jrsteele09/go-setoran-session/identity"
	"github.com/jrsteele09/go-setoran-session/internal/config"
	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/jrsteele09/go-setoran-session/token"
	"github.com/jrsteele09/go-setoran-session/vault"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// CredentialStore is the token record as seen by the session. *token.Store implements it.
type CredentialStore interface {
	Save(tokens token.Tokens) error
	Snapshot() *token.Record
	AccessToken() string
	RefreshToken() string
	IDToken() string
	IsAccessExpired() bool
	IsRefreshExpired() bool
	TouchActivity() error
	Clear() error
}

// CredentialVault holds the credential used for biometric login. *vault.Vault implements it.
type CredentialVault interface {
	Save(identifier, secret string) error
	Get() (vault.Credential, bool)
	Has() bool
	Clear() error
}

// ProfileCache is any locally cached profile artifact removed on logout.
type ProfileCache interface {
	Clear() error
}

var (
	_ CredentialStore = (*token.Store)(nil)
	_ CredentialVault = (*vault.Vault)(nil)
)

type Manager struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logoutURL  string
	store      CredentialStore
	vault      CredentialVault
	gate       biometric.Gate
	identity   identity.Reader
	profile    ProfileCache
	logger     zerolog.Logger
	metrics    *Metrics

	mu       sync.Mutex
	state    State
	expired  bool   // logged out by ExpireSession, reported as ErrSessionExpired until the next login or logout
	loginGen uint64 // bumped by every Login and Logout; only the latest login may commit
	refresh  singleflight.Group
}

type Option func(*Manager)

// WithHTTPClient sets the client used for every identity provider call, normally the gateway client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

func WithVault(v CredentialVault) Option {
	return func(m *Manager) {
		m.vault = v
	}
}

func WithBiometricGate(gate biometric.Gate) Option {
	return func(m *Manager) {
		m.gate = gate
	}
}

func WithIdentityReader(reader identity.Reader) Option {
	return func(m *Manager) {
		m.identity = reader
	}
}

func WithProfileCache(cache ProfileCache) Option {
	return func(m *Manager) {
		m.profile = cache
	}
}

// WithLogoutURL overrides the configured end-session endpoint. An empty URL disables it.
func WithLogoutURL(url string) Option {
	return func(m *Manager) {
		m.logoutURL = url
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// New builds a Manager for the configured identity provider and restores any persisted session.
func New(cfg config.OAuthConfig, store CredentialStore, options ...Option) *Manager {
	m := &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			Scopes:       cfg.GetScopes(),
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.GetTokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: http.DefaultClient,
		logoutURL:  cfg.GetLogoutURL(),
		store:      store,
		identity:   identity.NewUnverifiedReader(),
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	m.restore()
	return m
}

// restore derives the initial state from the persisted record.
func (m *Manager) restore() {
	record := m.store.Snapshot()
	switch {
	case record == nil:
		m.state = StateLoggedOut
	case m.store.IsRefreshExpired():
		m.state = StateExpired
	default:
		m.state = StateAuthenticated
	}
	m.logger.Debug().Str("state", m.state.String()).Msg("session: restored")
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AwaitingLogin reports whether the user is on the login screen: logged out or with a login in
// flight. Session policing has nothing to act on in either state.
func (m *Manager) AwaitingLogin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateLoggedOut || m.state == StateAuthenticating
}

// noSessionLocked is the error for a caller that needs a session and has none.
func (m *Manager) noSessionLocked() error {
	if m.expired {
		return autherrors.ErrSessionExpired
	}
	return autherrors.ErrNotLoggedIn
}

// Store exposes the token record for read-only consumers such as the inactivity monitor.
func (m *Manager) Store() CredentialStore {
	return m.store
}

// TouchActivity records user activity on the current session.
func (m *Manager) TouchActivity() error {
	if !m.State().HasSession() {
		return nil
	}
	return m.store.TouchActivity()
}

// DisplayName returns the name to greet the user with, read from the identity token.
func (m *Manager) DisplayName(ctx context.Context) (string, error) {
	claims, err := m.Claims(ctx)
	if err != nil {
		return "", err
	}
	return claims.DisplayName(), nil
}

func (m *Manager) Claims(ctx context.Context) (identity.Claims, error) {
	raw := m.store.IDToken()
	if raw == "" {
		return identity.Claims{}, autherrors.ErrNotLoggedIn
	}
	return m.identity.Read(ctx, raw)
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
