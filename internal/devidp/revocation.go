package devidp

import (
	"sync"
	"time"
)

// RevokedTokens remembers revoked token and session IDs until the tokens they cover expire.
type RevokedTokens struct {
	nowFunc func() time.Time
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewRevokedTokens(nowFunc func() time.Time) *RevokedTokens {
	return &RevokedTokens{
		nowFunc: nowFunc,
		revoked: make(map[string]time.Time),
	}
}

func (c *RevokedTokens) Add(id string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[id] = exp
}

func (c *RevokedTokens) IsRevoked(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[id]
	return exists
}

// Cleanup removes entries whose tokens have expired anyway.
func (c *RevokedTokens) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for id, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, id)
		}
	}
}
