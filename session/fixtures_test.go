package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-setoran-session/gateway"
	"github.com/jrsteele09/go-setoran-session/internal/config"
	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/jrsteele09/go-setoran-session/session"
	"github.com/jrsteele09/go-setoran-session/token"
	tokenfakerepo "github.com/jrsteele09/go-setoran-session/token/repofake"
	"github.com/jrsteele09/go-setoran-session/vault"
	vaultfakerepo "github.com/jrsteele09/go-setoran-session/vault/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "dosen.tif"
	testPassword = "rahasia123"
	testClientID = "setoran-mobile-dev"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
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

// fakeIDP is a token endpoint plus a resource check that only accepts the latest access token.
type fakeIDP struct {
	server *httptest.Server

	passwordCalls int32
	refreshCalls  int32
	logoutCalls   int32

	mu              sync.Mutex
	issued          int
	validAccess     string
	validRefresh    string
	rejectRefresh   bool
	refreshHook     func()
	passwordGate    chan struct{}
	lastLogoutToken string
	logoutStatus    int
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	idp := &fakeIDP{logoutStatus: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", idp.token)
	mux.HandleFunc("POST /logout", idp.logout)
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (f *fakeIDP) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("client_id") != testClientID {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		atomic.AddInt32(&f.passwordCalls, 1)
		f.mu.Lock()
		gate := f.passwordGate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPassword {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_grant")
			return
		}
	case "refresh_token":
		atomic.AddInt32(&f.refreshCalls, 1)
		f.mu.Lock()
		hook, reject, valid := f.refreshHook, f.rejectRefresh, f.validRefresh
		f.mu.Unlock()
		if hook != nil {
			hook()
		}
		if reject || r.PostForm.Get("refresh_token") != valid {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	f.mu.Lock()
	f.issued++
	n := f.issued
	f.validAccess = fmt.Sprintf("access-%d", n)
	f.validRefresh = fmt.Sprintf("refresh-%d", n)
	resp := map[string]any{
		"access_token":       f.validAccess,
		"refresh_token":      f.validRefresh,
		"id_token":           idToken("Dr. Siti Aminah", "siti.aminah"),
		"token_type":         "Bearer",
		"expires_in":         300,
		"refresh_expires_in": 1800,
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeIDP) logout(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.logoutCalls, 1)
	_ = r.ParseForm()
	f.mu.Lock()
	f.lastLogoutToken = r.PostForm.Get("refresh_token")
	status := f.logoutStatus
	f.mu.Unlock()
	w.WriteHeader(status)
}

func writeOAuthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "error_description": code})
}

func idToken(name, username string) string {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":                "dosen-1",
		"name":               name,
		"preferred_username": username,
	})
	raw, _ := tok.SignedString([]byte("test-only"))
	return raw
}

// revokeAccess makes the resource server reject the current access token.
func (f *fakeIDP) revokeAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validAccess = "revoked"
}

func (f *fakeIDP) set(fn func(f *fakeIDP)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// resource is an Operation backed by the fake resource server check.
func (f *fakeIDP) resource(calls *int32) session.Operation {
	return func(_ context.Context, accessToken string) error {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		f.mu.Lock()
		valid := f.validAccess
		f.mu.Unlock()
		if accessToken == "" || accessToken != valid {
			return &autherrors.HTTPError{StatusCode: http.StatusUnauthorized}
		}
		return nil
	}
}

// rejections counts callers whose first attempt was rejected. The refresh grant is held back until
// every caller has seen its 401 so all of them race for the same refresh.
type rejections struct {
	wg sync.WaitGroup
}

func newRejections(n int) *rejections {
	r := &rejections{}
	r.wg.Add(n)
	return r
}

func (r *rejections) wait() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// operation reports the first rejection of this caller before returning it.
func (r *rejections) operation(idp *fakeIDP) session.Operation {
	var once sync.Once
	resource := idp.resource(nil)
	return func(ctx context.Context, accessToken string) error {
		err := resource(ctx, accessToken)
		if err != nil {
			once.Do(r.wg.Done)
		}
		return err
	}
}

type fixture struct {
	idp       *fakeIDP
	clock     *clock
	tokenRepo *tokenfakerepo.FakeTokenRepo
	store     *token.Store
	vaultRepo *vaultfakerepo.FakeVaultRepo
	vault     *vault.Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		idp:       newFakeIDP(t),
		clock:     newClock(),
		tokenRepo: tokenfakerepo.NewFakeTokensRepo(),
		vaultRepo: vaultfakerepo.NewFakeVaultRepo(),
	}
	f.vault = vault.New(f.vaultRepo)
	f.store = f.newStore()

	t.Setenv("OAUTH_ISSUER_URL", f.idp.server.URL)
	t.Setenv("OAUTH_TOKEN_URL", f.idp.server.URL+"/token")
	t.Setenv("OAUTH_LOGOUT_URL", f.idp.server.URL+"/logout")
	t.Setenv("OAUTH_CLIENT_ID", testClientID)
	return f
}

func (f *fixture) newStore() *token.Store {
	return token.NewStore(f.tokenRepo,
		token.WithTokenExpiry(5*time.Minute, 30*time.Minute),
		token.WithNowFunc(f.clock.Now),
	)
}

func (f *fixture) manager(options ...session.Option) *session.Manager {
	client := &http.Client{Transport: gateway.NewTransport(
		gateway.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)}
	opts := append([]session.Option{
		session.WithHTTPClient(client),
		session.WithVault(f.vault),
	}, options...)
	return session.New(config.New(), f.store, opts...)
}

func loggedIn(t *testing.T, f *fixture, options ...session.Option) *session.Manager {
	t.Helper()
	m := f.manager(options...)
	require.NoError(t, m.Login(context.Background(), testUser, testPassword, false))
	require.Equal(t, session.StateAuthenticated, m.State())
	return m
}
