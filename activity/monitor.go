// Package activity polices an open session: once the access token has expired it either renews the
// session or, when the user has gone idle or the refresh token is gone, forces a logout.
package activity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GraceMode decides what happens when the access token expired but the user is still active.
type GraceMode string

const (
	// GraceRefresh silently refreshes the tokens.
	GraceRefresh GraceMode = "refresh"
	// GraceKeepAlive only records activity and leaves the refresh to the next request.
	GraceKeepAlive GraceMode = "keepalive"
)

func ParseGraceMode(s string) GraceMode {
	if GraceMode(strings.ToLower(strings.TrimSpace(s))) == GraceKeepAlive {
		return GraceKeepAlive
	}
	return GraceRefresh
}

// Action is what a single check did.
type Action int

const (
	ActionSkipped Action = iota
	ActionNone
	ActionRefreshed
	ActionKeptAlive
	ActionExpired
)

func (a Action) String() string {
	switch a {
	case ActionSkipped:
		return "skipped"
	case ActionNone:
		return "none"
	case ActionRefreshed:
		return "refreshed"
	case ActionKeptAlive:
		return "kept_alive"
	case ActionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// TokenState is the read side of the token record. *token.Store implements it.
type TokenState interface {
	IsAccessExpired() bool
	IsRefreshExpired() bool
	IsInactive(threshold time.Duration) bool
}

// Session is the part of the session manager the monitor drives. *session.Manager implements it.
type Session interface {
	Refresh(ctx context.Context) error
	ExpireSession(ctx context.Context, reason string)
	TouchActivity() error
}

// ExpiredFunc is told about a forced logout, after the session has been cleared.
type ExpiredFunc func(ctx context.Context, reason string)

type Monitor struct {
	tokens        TokenState
	session       Session
	threshold     time.Duration
	interval      time.Duration
	grace         GraceMode
	onLoginScreen func() bool
	onExpired     ExpiredFunc
	logger        zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	checkMu sync.Mutex
	fired   bool
}

type Option func(*Monitor)

func WithThreshold(threshold time.Duration) Option {
	return func(m *Monitor) {
		m.threshold = threshold
	}
}

func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		m.interval = interval
	}
}

func WithGraceMode(mode GraceMode) Option {
	return func(m *Monitor) {
		m.grace = mode
	}
}

// WithLoginScreen sets the probe telling whether the login screen is showing; checks are skipped
// while it reports true.
func WithLoginScreen(probe func() bool) Option {
	return func(m *Monitor) {
		m.onLoginScreen = probe
	}
}

func WithExpiredFunc(fn ExpiredFunc) Option {
	return func(m *Monitor) {
		m.onExpired = fn
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func New(tokens TokenState, session Session, options ...Option) *Monitor {
	m := &Monitor{
		tokens:    tokens,
		session:   session,
		threshold: 10 * time.Minute,
		interval:  30 * time.Second,
		grace:     GraceRefresh,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Start begins periodic checks until Stop is called or ctx is done. Starting a running monitor is
// a no-op. Each Start allows one forced logout.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	m.checkMu.Lock()
	m.fired = false
	m.checkMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
	m.logger.Debug().Dur("interval", m.interval).Msg("activity: monitor started")
}

// Stop cancels the periodic checks and waits for the running check to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Debug().Msg("activity: monitor stopped")
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one policy evaluation.
func (m *Monitor) Check(ctx context.Context) Action {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	if m.fired || (m.onLoginScreen != nil && m.onLoginScreen()) {
		return ActionSkipped
	}
	if !m.tokens.IsAccessExpired() {
		return ActionNone
	}
	if m.tokens.IsRefreshExpired() {
		return m.expireLocked(ctx, "refresh token expired")
	}
	if m.tokens.IsInactive(m.threshold) {
		return m.expireLocked(ctx, "inactive for "+m.threshold.String())
	}

	if m.grace == GraceKeepAlive {
		if err := m.session.TouchActivity(); err != nil {
			m.logger.Warn().Err(err).Msg("activity: keep-alive failed")
		}
		return ActionKeptAlive
	}
	if err := m.session.Refresh(ctx); err != nil {
		return m.expireLocked(ctx, "silent refresh failed: "+err.Error())
	}
	return ActionRefreshed
}

func (m *Monitor) expireLocked(ctx context.Context, reason string) Action {
	m.fired = true
	m.session.ExpireSession(ctx, reason)
	if m.onExpired != nil {
		m.onExpired(ctx, reason)
	}
	return ActionExpired
}

// Touch records raw user input.
func (m *Monitor) Touch() {
	if err := m.session.TouchActivity(); err != nil {
		m.logger.Warn().Err(err).Msg("activity: touch failed")
	}
}
