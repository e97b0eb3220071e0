package token_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/jrsteele09/go-setoran-session/token"
	tokenfilerepo "github.com/jrsteele09/go-setoran-session/token/filerepo"
	tokenfakerepo "github.com/jrsteele09/go-setoran-session/token/repofake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessTTL  = 5 * time.Minute
	refreshTTL = 30 * time.Minute
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testTokens(suffix string) token.Tokens {
	return token.Tokens{
		AccessToken:  "access-" + suffix,
		RefreshToken: "refresh-" + suffix,
		IDToken:      "id-" + suffix,
	}
}

func newTestStore(t *testing.T) (*token.Store, *tokenfakerepo.FakeTokenRepo, *testClock) {
	t.Helper()
	repo := tokenfakerepo.NewFakeTokensRepo()
	clock := newTestClock()
	store := token.NewStore(repo,
		token.WithTokenExpiry(accessTTL, refreshTTL),
		token.WithNowFunc(clock.Now),
	)
	return store, repo, clock
}

func TestStore_SaveAndRead(t *testing.T) {
	store, repo, clock := newTestStore(t)

	require.NoError(t, store.Save(testTokens("1")))

	require.Equal(t, "access-1", store.AccessToken())
	require.Equal(t, "refresh-1", store.RefreshToken())
	require.Equal(t, "id-1", store.IDToken())

	record := repo.Stored()
	require.NotNil(t, record)
	require.Equal(t, clock.Now().Add(accessTTL), record.AccessExpiresAt)
	require.Equal(t, clock.Now().Add(refreshTTL), record.RefreshExpiresAt)
	require.Equal(t, clock.Now(), record.LastActivityAt)
}

func TestStore_SaveRequiresAllTokens(t *testing.T) {
	store, repo, _ := newTestStore(t)

	tokens := testTokens("1")
	tokens.IDToken = ""
	require.ErrorIs(t, store.Save(tokens), token.ErrIncompleteTokens)
	require.Nil(t, repo.Stored())
	require.Nil(t, store.Snapshot())
}

func TestStore_EmptyStoreIsExpired(t *testing.T) {
	store, _, _ := newTestStore(t)

	require.Equal(t, "", store.AccessToken())
	require.Equal(t, "", store.RefreshToken())
	require.Equal(t, "", store.IDToken())
	require.True(t, store.IsAccessExpired())
	require.True(t, store.IsRefreshExpired())
	require.True(t, store.IsInactive(time.Hour))
	require.NoError(t, store.TouchActivity())
	require.Nil(t, store.Snapshot())
}

func TestStore_ExpiryBoundaries(t *testing.T) {
	store, _, clock := newTestStore(t)
	require.NoError(t, store.Save(testTokens("1")))

	require.False(t, store.IsAccessExpired())
	require.False(t, store.IsRefreshExpired())

	clock.Advance(accessTTL - time.Millisecond)
	require.False(t, store.IsAccessExpired())

	clock.Advance(time.Millisecond)
	require.True(t, store.IsAccessExpired(), "now == expiry counts as expired")
	require.False(t, store.IsRefreshExpired())

	clock.Advance(refreshTTL)
	require.True(t, store.IsRefreshExpired())
}

func TestStore_ExpiryAfterTTLForVariousTTLs(t *testing.T) {
	for _, ttl := range []time.Duration{time.Millisecond, time.Second, time.Minute, 12 * time.Hour} {
		t.Run(ttl.String(), func(t *testing.T) {
			clock := newTestClock()
			store := token.NewStore(tokenfakerepo.NewFakeTokensRepo(),
				token.WithTokenExpiry(ttl, 2*ttl),
				token.WithNowFunc(clock.Now),
			)
			require.NoError(t, store.Save(testTokens("x")))
			require.False(t, store.IsAccessExpired())

			clock.Advance(ttl + time.Millisecond)
			require.True(t, store.IsAccessExpired())
		})
	}
}

func TestStore_ReportedLifetimeShorterThanTTL(t *testing.T) {
	store, repo, clock := newTestStore(t)

	tokens := testTokens("1")
	tokens.AccessLifetime = time.Minute
	tokens.RefreshLifetime = time.Hour // longer than configured, ignored
	require.NoError(t, store.Save(tokens))

	record := repo.Stored()
	require.Equal(t, clock.Now().Add(time.Minute), record.AccessExpiresAt)
	require.Equal(t, clock.Now().Add(refreshTTL), record.RefreshExpiresAt)
}

func TestStore_FailedSaveKeepsPreviousRecord(t *testing.T) {
	store, repo, _ := newTestStore(t)
	require.NoError(t, store.Save(testTokens("old")))

	repo.FailSaves(true)
	require.ErrorIs(t, store.Save(testTokens("new")), tokenfakerepo.ErrSimulatedFailure)

	snapshot := store.Snapshot()
	require.Equal(t, "access-old", snapshot.AccessToken)
	require.Equal(t, "refresh-old", snapshot.RefreshToken)
	require.Equal(t, "id-old", snapshot.IDToken)
	require.Equal(t, "access-old", repo.Stored().AccessToken)
}

func TestStore_FailedFirstSaveLeavesNothing(t *testing.T) {
	store, repo, _ := newTestStore(t)
	repo.FailSaves(true)

	require.Error(t, store.Save(testTokens("1")))
	require.Nil(t, store.Snapshot())
	require.Nil(t, repo.Stored())
}

func TestStore_TouchActivityAndInactivity(t *testing.T) {
	store, repo, clock := newTestStore(t)
	require.NoError(t, store.Save(testTokens("1")))

	clock.Advance(4 * time.Minute)
	require.False(t, store.IsInactive(5*time.Minute))

	clock.Advance(time.Minute)
	require.True(t, store.IsInactive(5*time.Minute))

	require.NoError(t, store.TouchActivity())
	require.False(t, store.IsInactive(5*time.Minute))

	record := repo.Stored()
	require.Equal(t, clock.Now(), record.LastActivityAt)
	require.Equal(t, "access-1", record.AccessToken, "touch must not alter tokens")
}

func TestStore_Clear(t *testing.T) {
	store, repo, _ := newTestStore(t)
	require.NoError(t, store.Save(testTokens("1")))

	require.NoError(t, store.Clear())
	require.Nil(t, store.Snapshot())
	require.Nil(t, repo.Stored())
	require.True(t, store.IsAccessExpired())
}

func TestStore_LoadFailureTreatedAsLoggedOut(t *testing.T) {
	repo := tokenfakerepo.NewFakeTokensRepo()
	require.NoError(t, repo.Save(&token.Record{AccessToken: "a", RefreshToken: "r", IDToken: "i"}))
	repo.FailLoads(true)

	store := token.NewStore(repo)
	require.Nil(t, store.Snapshot())
	require.True(t, store.IsAccessExpired())
}

func TestStore_PersistsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	clock := newTestClock()

	first := token.NewStore(tokenfilerepo.New(securefile.New(path)), token.WithNowFunc(clock.Now))
	require.NoError(t, first.Save(testTokens("1")))

	second := token.NewStore(tokenfilerepo.New(securefile.New(path)), token.WithNowFunc(clock.Now))
	snapshot := second.Snapshot()
	require.NotNil(t, snapshot)
	require.Equal(t, "access-1", snapshot.AccessToken)
	require.True(t, clock.Now().Add(5*time.Minute).Equal(snapshot.AccessExpiresAt))

	require.NoError(t, second.Clear())
	third := token.NewStore(tokenfilerepo.New(securefile.New(path)))
	require.Nil(t, third.Snapshot())
}

func TestStore_ConcurrentReadsNeverTorn(t *testing.T) {
	store, _, _ := newTestStore(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, store.Save(testTokens(fmt.Sprint(i))))
			if i%10 == 0 {
				assert.NoError(t, store.Clear())
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snapshot := store.Snapshot()
			if snapshot == nil {
				continue
			}
			suffix := snapshot.AccessToken[len("access-"):]
			assert.Equal(t, "refresh-"+suffix, snapshot.RefreshToken)
			assert.Equal(t, "id-"+suffix, snapshot.IDToken)
			assert.False(t, snapshot.AccessExpiresAt.IsZero())
		}
	}()
	wg.Wait()
}
