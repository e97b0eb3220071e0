// Package app wires the session core from configuration: persisted token store, encrypted
// credential vault, PIN gate, retrying HTTP client, session manager, resource API client and the
// inactivity monitor.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-setoran-session/activity"
	"github.com/jrsteele09/go-setoran-session/biometric"
	"github.com/jrsteele09/go-setoran-session/gateway"
	"github.com/jrsteele09/go-setoran-session/identity"
	"github.com/jrsteele09/go-setoran-session/internal/config"
	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/jrsteele09/go-setoran-session/session"
	"github.com/jrsteele09/go-setoran-session/setoran"
	"github.com/jrsteele09/go-setoran-session/token"
	tokenfilerepo "github.com/jrsteele09/go-setoran-session/token/filerepo"
	"github.com/jrsteele09/go-setoran-session/vault"
	vaultfilerepo "github.com/jrsteele09/go-setoran-session/vault/filerepo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const profileFileName = "profile.age"

type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry

	Store   *token.Store
	Vault   *vault.Vault
	PIN     *biometric.PINGate
	Profile *setoran.ProfileCache
	Session *session.Manager
	API     *setoran.Client
	Monitor *activity.Monitor
}

type options struct {
	logger         *zerolog.Logger
	prompter       biometric.Prompter
	gate           biometric.Gate
	gatewayOptions []gateway.Option
	onExpired      activity.ExpiredFunc
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithPINPrompter sets how the PIN gate asks for the PIN.
func WithPINPrompter(prompter biometric.Prompter) Option {
	return func(o *options) {
		o.prompter = prompter
	}
}

// WithBiometricGate replaces the PIN gate used for biometric login, e.g. with a platform binding.
func WithBiometricGate(gate biometric.Gate) Option {
	return func(o *options) {
		o.gate = gate
	}
}

// WithGatewayOptions are applied to the retrying transport after the configured ones.
func WithGatewayOptions(gatewayOptions ...gateway.Option) Option {
	return func(o *options) {
		o.gatewayOptions = append(o.gatewayOptions, gatewayOptions...)
	}
}

// WithExpiredFunc is called after the monitor forces a logout.
func WithExpiredFunc(fn activity.ExpiredFunc) Option {
	return func(o *options) {
		o.onExpired = fn
	}
}

// New builds the application graph. Nothing is started; call Start to run the inactivity monitor.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := options{
		prompter: func(context.Context) (string, error) {
			return "", fmt.Errorf("no PIN prompt configured")
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := newLogger(cfg, o.logger)
	if err := os.MkdirAll(cfg.GetDataFolder(), 0o700); err != nil {
		return nil, fmt.Errorf("app.New data folder: %w", err)
	}
	ageIdentity, err := securefile.LoadOrCreateIdentity(cfg.GetKeyFile())
	if err != nil {
		return nil, fmt.Errorf("app.New identity: %w", err)
	}

	var tokenFileOptions []securefile.Option
	if cfg.GetEncryptTokens() {
		tokenFileOptions = append(tokenFileOptions, securefile.WithIdentity(ageIdentity))
	}
	store := token.NewStore(
		tokenfilerepo.New(securefile.New(cfg.GetTokenFile(), tokenFileOptions...)),
		token.WithTokenExpiry(cfg.GetAccessTokenTTL(), cfg.GetRefreshTokenTTL()),
		token.WithLogger(logger),
	)

	vaultRepo, err := vaultfilerepo.New(securefile.New(cfg.GetVaultFile(), securefile.WithIdentity(ageIdentity)))
	if err != nil {
		return nil, fmt.Errorf("app.New vault: %w", err)
	}
	credentialVault := vault.New(vaultRepo, vault.WithLogger(logger))
	profile := setoran.NewProfileCache(securefile.New(
		filepath.Join(cfg.GetDataFolder(), profileFileName), securefile.WithIdentity(ageIdentity)))

	pin := biometric.NewPINGate(cfg.GetPINFile(), o.prompter)
	var gate biometric.Gate = pin
	if o.gate != nil {
		gate = o.gate
	}

	registry := prometheus.NewRegistry()
	httpClient := gateway.NewClient(cfg, append([]gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithMetrics(gateway.NewMetrics(registry)),
	}, o.gatewayOptions...)...)

	manager := session.New(cfg, store,
		session.WithHTTPClient(httpClient),
		session.WithVault(credentialVault),
		session.WithBiometricGate(gate),
		session.WithIdentityReader(identityReader(cfg, httpClient)),
		session.WithProfileCache(profile),
		session.WithLogger(logger),
		session.WithMetrics(session.NewMetrics(registry)),
	)

	api := setoran.New(cfg.GetAPIBaseURL(), httpClient, manager,
		setoran.WithProfileCache(profile),
		setoran.WithLogger(logger),
	)

	monitor := activity.New(store, manager,
		activity.WithThreshold(cfg.GetInactivityThreshold()),
		activity.WithInterval(cfg.GetActivityCheckInterval()),
		activity.WithGraceMode(activity.ParseGraceMode(cfg.GetGraceMode())),
		activity.WithLoginScreen(manager.AwaitingLogin),
		activity.WithExpiredFunc(o.onExpired),
		activity.WithLogger(logger),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Store:    store,
		Vault:    credentialVault,
		PIN:      pin,
		Profile:  profile,
		Session:  manager,
		API:      api,
		Monitor:  monitor,
	}, nil
}

// Start runs the inactivity monitor until ctx is cancelled or Close is called.
func (a *App) Start(ctx context.Context) {
	a.Monitor.Start(ctx)
}

func (a *App) Close() {
	a.Monitor.Stop()
}

func identityReader(cfg config.OAuthConfig, httpClient *http.Client) identity.Reader {
	if cfg.GetVerifyIDToken() {
		return identity.NewOIDCReader(cfg.GetIssuerURL(), cfg.GetJWKSURL(), cfg.GetClientID(),
			identity.WithHTTPClient(httpClient))
	}
	return identity.NewUnverifiedReader()
}

func newLogger(cfg config.EnvConfig, override *zerolog.Logger) zerolog.Logger {
	if override != nil {
		return *override
	}
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	return log.Logger.Level(level).With().Str("app", cfg.GetAppName()).Logger()
}
