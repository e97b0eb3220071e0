package activity_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-setoran-session/activity"
	"github.com/jrsteele09/go-setoran-session/token"
	tokenfakerepo "github.com/jrsteele09/go-setoran-session/token/repofake"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSession mutates the store the way the session manager does.
type fakeSession struct {
	store      *token.Store
	refreshErr error

	refreshes int32
	expiries  int32
	touches   int32
}

func (s *fakeSession) Refresh(context.Context) error {
	atomic.AddInt32(&s.refreshes, 1)
	if s.refreshErr != nil {
		return s.refreshErr
	}
	return s.store.Save(token.Tokens{AccessToken: "access-2", RefreshToken: "refresh-2", IDToken: "id-2"})
}

func (s *fakeSession) ExpireSession(context.Context, string) {
	atomic.AddInt32(&s.expiries, 1)
	_ = s.store.Clear()
}

func (s *fakeSession) TouchActivity() error {
	atomic.AddInt32(&s.touches, 1)
	return s.store.TouchActivity()
}

type fixture struct {
	clock   *clock
	store   *token.Store
	session *fakeSession
	fired   int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: &clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}}
	f.store = token.NewStore(tokenfakerepo.NewFakeTokensRepo(),
		token.WithTokenExpiry(5*time.Minute, 30*time.Minute),
		token.WithNowFunc(f.clock.Now),
	)
	require.NoError(t, f.store.Save(token.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1", IDToken: "id-1"}))
	f.session = &fakeSession{store: f.store}
	return f
}

func (f *fixture) monitor(options ...activity.Option) *activity.Monitor {
	opts := append([]activity.Option{
		activity.WithThreshold(10 * time.Minute),
		activity.WithExpiredFunc(func(context.Context, string) { atomic.AddInt32(&f.fired, 1) }),
	}, options...)
	return activity.New(f.store, f.session, opts...)
}

func TestCheck_AccessStillValid(t *testing.T) {
	f := newFixture(t)
	m := f.monitor()

	require.Equal(t, activity.ActionNone, m.Check(context.Background()))
	require.Zero(t, atomic.LoadInt32(&f.session.refreshes))
}

func TestCheck_LoginScreenSkips(t *testing.T) {
	f := newFixture(t)
	f.clock.Advance(time.Hour)
	m := f.monitor(activity.WithLoginScreen(func() bool { return true }))

	require.Equal(t, activity.ActionSkipped, m.Check(context.Background()))
	require.Zero(t, atomic.LoadInt32(&f.fired))
}

func TestCheck_InactiveForcesLogoutOnce(t *testing.T) {
	f := newFixture(t)
	m := f.monitor()
	f.clock.Advance(11 * time.Minute)

	require.Equal(t, activity.ActionExpired, m.Check(context.Background()))
	require.Equal(t, activity.ActionSkipped, m.Check(context.Background()))
	require.Equal(t, activity.ActionSkipped, m.Check(context.Background()))

	require.EqualValues(t, 1, atomic.LoadInt32(&f.fired))
	require.EqualValues(t, 1, atomic.LoadInt32(&f.session.expiries))
	require.Nil(t, f.store.Snapshot())
}

func TestCheck_RefreshExpiredForcesLogout(t *testing.T) {
	f := newFixture(t)
	m := f.monitor(activity.WithThreshold(time.Hour))
	f.clock.Advance(30 * time.Minute)

	require.Equal(t, activity.ActionExpired, m.Check(context.Background()))
	require.Zero(t, atomic.LoadInt32(&f.session.refreshes))
	require.EqualValues(t, 1, atomic.LoadInt32(&f.fired))
}

func TestCheck_GraceRefresh(t *testing.T) {
	f := newFixture(t)
	m := f.monitor()
	f.clock.Advance(4 * time.Minute)
	require.NoError(t, f.store.TouchActivity())
	f.clock.Advance(2 * time.Minute)

	require.Equal(t, activity.ActionRefreshed, m.Check(context.Background()))
	require.EqualValues(t, 1, atomic.LoadInt32(&f.session.refreshes))
	require.False(t, f.store.IsAccessExpired())
	require.Zero(t, atomic.LoadInt32(&f.fired))
}

func TestCheck_GraceRefreshFailureForcesLogout(t *testing.T) {
	f := newFixture(t)
	f.session.refreshErr = errors.New("session expired")
	m := f.monitor()
	f.clock.Advance(6 * time.Minute)

	require.Equal(t, activity.ActionExpired, m.Check(context.Background()))
	require.EqualValues(t, 1, atomic.LoadInt32(&f.fired))
}

func TestCheck_GraceKeepAlive(t *testing.T) {
	f := newFixture(t)
	m := f.monitor(activity.WithGraceMode(activity.GraceKeepAlive))
	f.clock.Advance(6 * time.Minute)

	require.Equal(t, activity.ActionKeptAlive, m.Check(context.Background()))
	require.Zero(t, atomic.LoadInt32(&f.session.refreshes))
	require.True(t, f.store.IsAccessExpired(), "keep-alive does not renew the access token")
	require.Equal(t, f.clock.Now(), f.store.Snapshot().LastActivityAt)
}

func TestParseGraceMode(t *testing.T) {
	require.Equal(t, activity.GraceKeepAlive, activity.ParseGraceMode(" KeepAlive "))
	require.Equal(t, activity.GraceRefresh, activity.ParseGraceMode("refresh"))
	require.Equal(t, activity.GraceRefresh, activity.ParseGraceMode("bogus"))
}

func TestTouch(t *testing.T) {
	f := newFixture(t)
	m := f.monitor()
	f.clock.Advance(9 * time.Minute)
	m.Touch()

	f.clock.Advance(2 * time.Minute)
	require.Equal(t, activity.ActionRefreshed, m.Check(context.Background()), "recent input keeps the session alive")
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	m := f.monitor(activity.WithInterval(5 * time.Millisecond))
	f.clock.Advance(11 * time.Minute)

	m.Start(context.Background())
	m.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.fired) == 1
	}, time.Second, 5*time.Millisecond)

	// Further ticks do not fire again.
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	require.EqualValues(t, 1, atomic.LoadInt32(&f.fired))
	m.Stop()

	// A restart re-arms the forced logout.
	require.NoError(t, f.store.Save(token.Tokens{AccessToken: "a", RefreshToken: "r", IDToken: "i"}))
	f.clock.Advance(11 * time.Minute)
	m.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&f.fired) == 2
	}, time.Second, 5*time.Millisecond)
	m.Stop()
}

func TestStopWhenContextCancelled(t *testing.T) {
	f := newFixture(t)
	m := f.monitor(activity.WithInterval(5 * time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()
	m.Stop()
	require.Zero(t, atomic.LoadInt32(&f.fired))
}
