package token

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrIncompleteTokens is returned by Save when any of the three tokens is missing.
var ErrIncompleteTokens = errors.New("access, refresh and identity tokens are required")

// Record is the persisted session credential set.
type Record struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	IDToken          string    `json:"id_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}

// Tokens is what the identity provider hands back from a grant.
// The lifetimes are optional hints reported by the provider (expires_in / refresh_expires_in);
// when set and shorter than the configured TTLs they win.
type Tokens struct {
	AccessToken     string
	RefreshToken    string
	IDToken         string
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

// Store is the credential store. All reads return copies taken under a lock so concurrent
// readers never observe a torn record.
type Store struct {
	repo       Repo
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
	logger     zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	record *Record
}

type StoreOption func(*Store)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) StoreOption {
	return func(s *Store) {
		s.accessTTL = accessTokenExpiry
		s.refreshTTL = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(repo Repo, options ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.accessTTL <= 0 {
		s.accessTTL = 5 * time.Minute
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = 30 * time.Minute
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// Save replaces the whole record. Expiries are computed from now; the activity timestamp is reset.
// The in-memory view only changes once the repo write succeeded.
func (s *Store) Save(tokens Tokens) error {
	if strings.TrimSpace(tokens.AccessToken) == "" ||
		strings.TrimSpace(tokens.RefreshToken) == "" ||
		strings.TrimSpace(tokens.IDToken) == "" {
		return ErrIncompleteTokens
	}

	now := s.nowFunc()
	record := &Record{
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		IDToken:          tokens.IDToken,
		AccessExpiresAt:  now.Add(effectiveTTL(s.accessTTL, tokens.AccessLifetime)),
		RefreshExpiresAt: now.Add(effectiveTTL(s.refreshTTL, tokens.RefreshLifetime)),
		LastActivityAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Save(record); err != nil {
		return errors.Wrap(err, "[Store.Save] repo.Save")
	}
	s.record = record
	s.loaded = true
	return nil
}

func effectiveTTL(configured, reported time.Duration) time.Duration {
	if reported > 0 && reported < configured {
		return reported
	}
	return configured
}

// Snapshot returns a copy of the current record, or nil when logged out.
func (s *Store) Snapshot() *Record {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return copyRecord(s.record)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return copyRecord(s.record)
}

func (s *Store) loadLocked() {
	if s.loaded {
		return
	}
	record, err := s.repo.Load()
	if err != nil {
		// An unreadable record is treated as no session; the next Save overwrites it.
		s.logger.Warn().Err(err).Msg("token store: failed to load record")
		record = nil
	}
	s.record = record
	s.loaded = true
}

func copyRecord(r *Record) *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (s *Store) AccessToken() string {
	if r := s.Snapshot(); r != nil {
		return r.AccessToken
	}
	return ""
}

func (s *Store) RefreshToken() string {
	if r := s.Snapshot(); r != nil {
		return r.RefreshToken
	}
	return ""
}

func (s *Store) IDToken() string {
	if r := s.Snapshot(); r != nil {
		return r.IDToken
	}
	return ""
}

// IsAccessExpired reports true when now >= access expiry or there is no record.
func (s *Store) IsAccessExpired() bool {
	r := s.Snapshot()
	return r == nil || !s.nowFunc().Before(r.AccessExpiresAt)
}

// IsRefreshExpired reports true when now >= refresh expiry or there is no record.
func (s *Store) IsRefreshExpired() bool {
	r := s.Snapshot()
	return r == nil || !s.nowFunc().Before(r.RefreshExpiresAt)
}

// IsInactive reports whether at least threshold has passed since the last recorded activity.
func (s *Store) IsInactive(threshold time.Duration) bool {
	r := s.Snapshot()
	return r == nil || s.nowFunc().Sub(r.LastActivityAt) >= threshold
}

// TouchActivity sets the activity timestamp to now. It is a no-op when logged out.
func (s *Store) TouchActivity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	if s.record == nil {
		return nil
	}

	touched := copyRecord(s.record)
	touched.LastActivityAt = s.nowFunc()
	if err := s.repo.Save(touched); err != nil {
		return errors.Wrap(err, "[Store.TouchActivity] repo.Save")
	}
	s.record = touched
	return nil
}

// Clear removes the whole record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(); err != nil {
		return errors.Wrap(err, "[Store.Clear] repo.Delete")
	}
	s.record = nil
	s.loaded = true
	return nil
}
