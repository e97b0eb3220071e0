package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-setoran-session/gateway"
)

type LogoutOptions struct {
	// ForgetCredential also removes the credential saved for biometric login.
	ForgetCredential bool
	// ClearProfile also removes the cached profile.
	ClearProfile bool
}

// Logout clears the session. The state is LoggedOut afterwards whatever fails; cleanup errors are
// returned joined. The identity provider session is ended on a best-effort basis.
func (m *Manager) Logout(ctx context.Context, opts LogoutOptions) error {
	var errs []error

	m.mu.Lock()
	refreshToken := m.store.RefreshToken()
	m.state = StateLoggedOut
	m.expired = false
	m.loginGen++
	if err := m.store.Clear(); err != nil {
		errs = append(errs, err)
	}
	m.mu.Unlock()

	if opts.ForgetCredential && m.vault != nil {
		if err := m.vault.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if opts.ClearProfile && m.profile != nil {
		if err := m.profile.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if refreshToken != "" {
		m.endSession(ctx, refreshToken)
	}

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Warn().Err(err).Msg("session: logged out with cleanup errors")
	} else {
		m.logger.Info().Msg("session: logged out")
	}
	return err
}

// ExpireSession clears the tokens of a session that can no longer be used. The saved credential
// is kept so biometric login keeps working. A login in flight is left alone: it has no session to
// expire yet.
func (m *Manager) ExpireSession(_ context.Context, reason string) {
	m.mu.Lock()
	if m.state == StateAuthenticating {
		m.mu.Unlock()
		m.logger.Debug().Str("reason", reason).Msg("session: expiry ignored during login")
		return
	}
	wasLoggedIn := m.state != StateLoggedOut
	m.state = StateLoggedOut
	m.expired = m.expired || wasLoggedIn
	err := m.store.Clear()
	m.mu.Unlock()

	if err != nil {
		m.logger.Error().Err(err).Msg("session: failed to clear expired tokens")
	}
	if wasLoggedIn {
		m.metrics.forcedLogout()
		m.logger.Warn().Str("reason", reason).Msg("session: expired, logged out")
	}
}

func (m *Manager) endSession(ctx context.Context, refreshToken string) {
	if m.logoutURL == "" {
		return
	}
	form := url.Values{
		"client_id":     {m.oauth.ClientID},
		"refresh_token": {refreshToken},
	}
	if m.oauth.ClientSecret != "" {
		form.Set("client_secret", m.oauth.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.logoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		m.logger.Warn().Err(err).Msg("session: end-session request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn().Err(gateway.TransportError(err)).Msg("session: end-session call failed")
		return
	}
	defer resp.Body.Close()
	if err := gateway.Classify(resp); err != nil {
		m.logger.Warn().Err(err).Msg("session: end-session rejected")
	}
}
