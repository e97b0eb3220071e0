package setoran_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/jrsteele09/go-setoran-session/internal/securefile"
	"github.com/jrsteele09/go-setoran-session/session"
	"github.com/jrsteele09/go-setoran-session/setoran"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticAuth hands every call the same token, the way an authenticated session would.
type staticAuth struct {
	token string
	calls int
}

func (a *staticAuth) AuthenticatedRequest(ctx context.Context, op session.Operation) error {
	a.calls++
	return op(ctx, a.token)
}

type recorded struct {
	method, path, auth, contentType, body string
}

func newAPI(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*rec = recorded{
			method:      r.Method,
			path:        r.URL.EscapedPath(),
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestDosenInfo(t *testing.T) {
	srv, rec := newAPI(t, http.StatusOK, `{"response":true,"data":{"nama":"Dr. Siti Aminah"}}`)
	auth := &staticAuth{token: "access-1"}
	cache := setoran.NewProfileCache(securefile.New(filepath.Join(t.TempDir(), "profile.json")))
	client := setoran.New(srv.URL+"/", srv.Client(), auth, setoran.WithProfileCache(cache))

	data, err := client.DosenInfo(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"response":true,"data":{"nama":"Dr. Siti Aminah"}}`, string(data))
	require.Equal(t, http.MethodGet, rec.method)
	require.Equal(t, "/dosen/pa-saya", rec.path)
	require.Equal(t, "Bearer access-1", rec.auth)
	require.Equal(t, 1, auth.calls)

	cached, found, err := cache.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, string(data), string(cached))

	require.NoError(t, cache.Clear())
	_, found, err = cache.Load()
	require.NoError(t, err)
	require.False(t, found)
}

func TestStudentSetoran(t *testing.T) {
	srv, rec := newAPI(t, http.StatusOK, `{"data":[]}`)
	client := setoran.New(srv.URL, srv.Client(), &staticAuth{token: "t"})

	_, err := client.StudentSetoran(context.Background(), " 12050110001 ")
	require.NoError(t, err)
	require.Equal(t, "/mahasiswa/setoran/12050110001", rec.path)
}

func TestSubmitAndCancelSetoran(t *testing.T) {
	payload := json.RawMessage(`{"data_setoran":[{"id_komponen_setoran":"an-naba"}]}`)

	for _, tc := range []struct {
		name   string
		call   func(*setoran.Client) (json.RawMessage, error)
		method string
	}{
		{"submit", func(c *setoran.Client) (json.RawMessage, error) {
			return c.SubmitSetoran(context.Background(), "12050110001", payload)
		}, http.MethodPost},
		{"cancel", func(c *setoran.Client) (json.RawMessage, error) {
			return c.CancelSetoran(context.Background(), "12050110001", payload)
		}, http.MethodDelete},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv, rec := newAPI(t, http.StatusOK, `{"response":true}`)
			client := setoran.New(srv.URL, srv.Client(), &staticAuth{token: "t"})

			_, err := tc.call(client)
			require.NoError(t, err)
			assert.Equal(t, tc.method, rec.method)
			assert.Equal(t, "application/json", rec.contentType)
			assert.JSONEq(t, string(payload), rec.body)
		})
	}
}

func TestErrorsAreClassified(t *testing.T) {
	for _, tc := range []struct {
		status int
		kind   error
	}{
		{http.StatusUnauthorized, autherrors.ErrUnauthorized},
		{http.StatusNotFound, autherrors.ErrClient},
		{http.StatusInternalServerError, autherrors.ErrServer},
	} {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv, _ := newAPI(t, tc.status, `{"message":"mahasiswa tidak ditemukan"}`)
			client := setoran.New(srv.URL, srv.Client(), &staticAuth{token: "t"})

			_, err := client.StudentSetoran(context.Background(), "1")
			require.ErrorIs(t, err, tc.kind)

			var httpErr *autherrors.HTTPError
			require.ErrorAs(t, err, &httpErr)
			require.Equal(t, tc.status, httpErr.StatusCode)
			require.Contains(t, httpErr.Body, "mahasiswa tidak ditemukan")
		})
	}
}

func TestUnreachableAPI(t *testing.T) {
	srv, _ := newAPI(t, http.StatusOK, `{}`)
	srv.Close()
	client := setoran.New(srv.URL, http.DefaultClient, &staticAuth{token: "t"})

	_, err := client.DosenInfo(context.Background())
	require.ErrorIs(t, err, autherrors.ErrNetwork)
}

func TestInvalidPayloadRejected(t *testing.T) {
	auth := &staticAuth{token: "t"}
	client := setoran.New("http://setoran.invalid", http.DefaultClient, auth)

	_, err := client.SubmitSetoran(context.Background(), "1", json.RawMessage(`{not json`))
	require.Error(t, err)
	require.Zero(t, auth.calls)
}
