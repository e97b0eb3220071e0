package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-setoran-session/gateway"
	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/jrsteele09/go-setoran-session/token"
	"golang.org/x/oauth2"
)

// Login exchanges the identifier and secret for tokens with the password grant. It is only valid
// from LoggedOut or Expired; a second Login while one is in flight fails with ErrLoginInProgress.
// When persistCredential is set the credential is written to the vault for biometric login.
func (m *Manager) Login(ctx context.Context, identifier, secret string, persistCredential bool) error {
	if strings.TrimSpace(identifier) == "" || secret == "" {
		return autherrors.Wrapf(autherrors.ErrInvalidCredentials, "[Manager.Login] identifier and secret are required")
	}

	m.mu.Lock()
	var gen uint64
	switch m.state {
	case StateAuthenticating:
		m.mu.Unlock()
		return autherrors.ErrLoginInProgress
	case StateLoggedOut, StateExpired:
		m.state = StateAuthenticating
		m.loginGen++
		gen = m.loginGen
		m.mu.Unlock()
	default:
		state := m.state
		m.mu.Unlock()
		return autherrors.Wrapf(autherrors.ErrInvalidState, "[Manager.Login] cannot log in while %s", state)
	}

	tokens, err := m.passwordGrant(ctx, identifier, secret)
	if err == nil {
		err = m.commitLogin(gen, tokens)
	} else {
		m.abortLogin(gen)
	}
	m.metrics.login(err)
	if err != nil {
		m.logger.Warn().Err(err).Str("identifier", identifier).Msg("session: login failed")
		return err
	}

	if persistCredential && m.vault != nil {
		// The session is usable without the vault; biometric login will report no saved credential.
		if err := m.vault.Save(identifier, secret); err != nil {
			m.logger.Warn().Err(err).Msg("session: credential not saved")
		}
	}
	m.logger.Info().Str("identifier", identifier).Msg("session: logged in")
	return nil
}

func (m *Manager) passwordGrant(ctx context.Context, identifier, secret string) (token.Tokens, error) {
	tok, err := m.oauth.PasswordCredentialsToken(m.clientContext(ctx), identifier, secret)
	if err != nil {
		return token.Tokens{}, grantError(err)
	}
	return tokensFrom(tok, nil), nil
}

// commitLogin stores the tokens unless the session was logged out, or another login was started,
// while the grant was in flight.
func (m *Manager) commitLogin(gen uint64, tokens token.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginGen != gen {
		return autherrors.Wrapf(autherrors.ErrInvalidState, "[Manager.Login] login abandoned by a logout")
	}
	if m.state != StateAuthenticating {
		return autherrors.Wrapf(autherrors.ErrInvalidState, "[Manager.Login] session became %s during login", m.state)
	}
	if err := m.store.Save(tokens); err != nil {
		m.state = StateLoggedOut
		return autherrors.Wrapf(err, "[Manager.Login] save tokens")
	}
	m.state = StateAuthenticated
	m.expired = false
	return nil
}

// abortLogin returns a failed login to LoggedOut. A failed attempt ends any earlier expiry, so
// callers see ErrNotLoggedIn from then on.
func (m *Manager) abortLogin(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAuthenticating && m.loginGen == gen {
		m.state = StateLoggedOut
		m.expired = false
	}
}

// BiometricLogin logs in with the saved credential once the biometric challenge succeeds.
func (m *Manager) BiometricLogin(ctx context.Context) error {
	if m.gate == nil || !m.gate.CanAuthenticate(ctx) {
		return autherrors.ErrBiometricUnavailable
	}
	if m.vault == nil {
		return autherrors.ErrNoSavedCredential
	}
	credential, ok := m.vault.Get()
	if !ok {
		return autherrors.ErrNoSavedCredential
	}
	if err := m.gate.Authenticate(ctx); err != nil {
		return err
	}
	return m.Login(ctx, credential.Identifier, credential.Secret, false)
}

// tokensFrom converts a grant response. Missing refresh or identity tokens fall back to the
// previous record so a provider that does not rotate them keeps the session intact.
func tokensFrom(tok *oauth2.Token, previous *token.Record) token.Tokens {
	tokens := token.Tokens{
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		IDToken:         extraString(tok, "id_token"),
		AccessLifetime:  time.Duration(tok.ExpiresIn) * time.Second,
		RefreshLifetime: extraSeconds(tok, "refresh_expires_in"),
	}
	if previous != nil {
		if tokens.RefreshToken == "" {
			tokens.RefreshToken = previous.RefreshToken
		}
		if tokens.IDToken == "" {
			tokens.IDToken = previous.IDToken
		}
	}
	return tokens
}

func extraString(tok *oauth2.Token, key string) string {
	s, _ := tok.Extra(key).(string)
	return s
}

func extraSeconds(tok *oauth2.Token, key string) time.Duration {
	var seconds int64
	switch v := tok.Extra(key).(type) {
	case float64:
		seconds = int64(v)
	case json.Number:
		seconds, _ = v.Int64()
	case string:
		seconds, _ = strconv.ParseInt(v, 10, 64)
	}
	return time.Duration(seconds) * time.Second
}

// grantError maps a token endpoint failure onto the error taxonomy.
func grantError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		httpErr := &autherrors.HTTPError{Body: string(retrieveErr.Body)}
		if retrieveErr.Response != nil {
			httpErr.StatusCode = retrieveErr.Response.StatusCode
		}
		if retrieveErr.ErrorDescription != "" {
			httpErr.Body = retrieveErr.ErrorDescription
		}
		if retrieveErr.ErrorCode == "invalid_grant" || httpErr.StatusCode == 401 {
			return fmt.Errorf("%w: %w", autherrors.ErrInvalidCredentials, httpErr)
		}
		return httpErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return gateway.TransportError(err)
	}
	// Malformed token responses.
	return fmt.Errorf("%w: %w", autherrors.ErrServer, err)
}
