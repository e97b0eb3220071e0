package devidp

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// StoredRefreshToken is the server-side record of an issued refresh token. The client only
// receives the Token field.
type StoredRefreshToken struct {
	Token     string
	UserID    string
	ClientID  string
	SessionID string
	Scope     string
	Iat       time.Time
}

// RefreshTokens issues opaque refresh tokens and rotates them on use.
type RefreshTokens struct {
	length  int
	ttl     time.Duration
	nowFunc func() time.Time

	tokens map[string]*StoredRefreshToken
	lock   sync.RWMutex
}

func NewRefreshTokens(ttl time.Duration, nowFunc func() time.Time) *RefreshTokens {
	return &RefreshTokens{
		length:  32,
		ttl:     ttl,
		nowFunc: nowFunc,
		tokens:  make(map[string]*StoredRefreshToken),
	}
}

// Create generates a new refresh token for the session, replacing the session's previous one.
func (m *RefreshTokens) Create(clientID, userID, sessionID, scope string) (string, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	tokenStr := hex.EncodeToString(tokenBytes)

	m.lock.Lock()
	defer m.lock.Unlock()
	for token, existing := range m.tokens {
		if existing.SessionID == sessionID {
			delete(m.tokens, token)
		}
	}
	m.tokens[tokenStr] = &StoredRefreshToken{
		Token:     tokenStr,
		UserID:    userID,
		ClientID:  clientID,
		SessionID: sessionID,
		Scope:     scope,
		Iat:       m.nowFunc(),
	}
	return tokenStr, nil
}

// Get returns the stored token when it exists and has not expired.
func (m *RefreshTokens) Get(token string) (*StoredRefreshToken, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	rt, ok := m.tokens[token]
	if !ok || m.isExpired(rt) {
		return nil, false
	}
	return rt, true
}

// DeleteSession removes the session's refresh token.
func (m *RefreshTokens) DeleteSession(sessionID string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for token, existing := range m.tokens {
		if existing.SessionID == sessionID {
			delete(m.tokens, token)
		}
	}
}

func (m *RefreshTokens) isExpired(rt *StoredRefreshToken) bool {
	return !m.nowFunc().Before(rt.Iat.Add(m.ttl))
}
