package session

import (
	"context"
	"errors"
	"fmt"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"golang.org/x/oauth2"
)

const refreshFlight = "refresh"

// Operation is an API call made with a bearer token. A rejected token must be reported with an
// error matching ErrUnauthorized.
type Operation func(ctx context.Context, accessToken string) error

// Refresh rotates the tokens with the refresh grant. Concurrent callers share a single grant.
// A missing or expired refresh token moves the session to Expired without a network call.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refreshFrom(ctx, m.store.AccessToken())
}

// refreshFrom refreshes unless the stored access token has already been rotated away from stale.
// The grant is shared by every waiter, so it is not cancelled with the caller that started it;
// the gateway timeouts bound it instead.
func (m *Manager) refreshFrom(ctx context.Context, stale string) error {
	flightCtx := context.WithoutCancel(ctx)
	_, err, shared := m.refresh.Do(refreshFlight, func() (any, error) {
		return nil, m.doRefresh(flightCtx, stale)
	})
	if shared {
		m.logger.Debug().Err(err).Msg("session: joined in-flight refresh")
	}
	return err
}

func (m *Manager) doRefresh(ctx context.Context, stale string) error {
	m.mu.Lock()
	switch m.state {
	case StateAuthenticated:
	case StateExpired:
		m.mu.Unlock()
		return autherrors.ErrSessionExpired
	default:
		state, err := m.state, m.noSessionLocked()
		m.mu.Unlock()
		return autherrors.Wrapf(err, "[Manager.Refresh] session is %s", state)
	}

	record := m.store.Snapshot()
	if record != nil && record.AccessToken != stale && !m.store.IsAccessExpired() {
		m.mu.Unlock()
		return nil
	}
	if record == nil || record.RefreshToken == "" || m.store.IsRefreshExpired() {
		m.state = StateExpired
		m.mu.Unlock()
		m.metrics.refresh(autherrors.ErrSessionExpired)
		return autherrors.Wrapf(autherrors.ErrSessionExpired, "[Manager.Refresh] refresh token missing or expired")
	}
	m.state = StateRefreshing
	m.mu.Unlock()

	tok, err := m.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: record.RefreshToken}).Token()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRefreshing {
		return autherrors.Wrapf(autherrors.ErrNotLoggedIn, "[Manager.Refresh] session became %s during refresh", m.state)
	}
	if err != nil {
		m.state = StateExpired
		err = grantError(err)
		m.metrics.refresh(err)
		m.logger.Warn().Err(err).Msg("session: refresh failed")
		return fmt.Errorf("%w: %w", autherrors.ErrSessionExpired, err)
	}
	if err := m.store.Save(tokensFrom(tok, record)); err != nil {
		m.state = StateExpired
		m.metrics.refresh(err)
		return fmt.Errorf("%w: %w", autherrors.ErrSessionExpired, autherrors.Wrapf(err, "[Manager.Refresh] save tokens"))
	}
	m.state = StateAuthenticated
	m.metrics.refresh(nil)
	m.logger.Debug().Msg("session: tokens refreshed")
	return nil
}

// AuthenticatedRequest runs op with the current access token. An access token that has expired
// locally is refreshed first. When op reports ErrUnauthorized the tokens are refreshed at most
// once and op is retried once. A failed refresh or a second rejection expires the session.
func (m *Manager) AuthenticatedRequest(ctx context.Context, op Operation) error {
	m.mu.Lock()
	state, noSession := m.state, m.noSessionLocked()
	m.mu.Unlock()
	switch state {
	case StateLoggedOut, StateAuthenticating:
		return noSession
	case StateExpired:
		return m.expire(ctx, autherrors.ErrSessionExpired)
	}

	accessToken := m.store.AccessToken()
	if m.store.IsAccessExpired() {
		if err := m.refreshFrom(ctx, accessToken); err != nil {
			return m.refreshFailed(ctx, err)
		}
		accessToken = m.store.AccessToken()
	}

	err := op(ctx, accessToken)
	if !errors.Is(err, autherrors.ErrUnauthorized) {
		return err
	}

	m.logger.Debug().Msg("session: access token rejected")
	if err := m.refreshFrom(ctx, accessToken); err != nil {
		return m.refreshFailed(ctx, err)
	}
	err = op(ctx, m.store.AccessToken())
	if errors.Is(err, autherrors.ErrUnauthorized) {
		return m.expire(ctx, err)
	}
	return err
}

func (m *Manager) refreshFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, autherrors.ErrNotLoggedIn) {
		return err
	}
	return m.expire(ctx, err)
}

// expire forces logout and returns cause as a session-expired error.
func (m *Manager) expire(ctx context.Context, cause error) error {
	m.ExpireSession(ctx, cause.Error())
	if errors.Is(cause, autherrors.ErrSessionExpired) {
		return cause
	}
	return fmt.Errorf("%w: %w", autherrors.ErrSessionExpired, cause)
}
