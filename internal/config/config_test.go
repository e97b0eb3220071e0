package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-setoran-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := config.New()

	require.Equal(t, 5*time.Minute, c.GetAccessTokenTTL())
	require.Equal(t, 30*time.Minute, c.GetRefreshTokenTTL())
	require.Equal(t, 15*time.Second, c.GetHTTPTimeout())
	require.Equal(t, 3, c.GetMaxAttempts())
	require.Equal(t, time.Second, c.GetBackoffBase())
	require.Equal(t, 5*time.Second, c.GetBackoffMax())
	require.Equal(t, 30*time.Second, c.GetActivityCheckInterval())
	require.Equal(t, "refresh", c.GetGraceMode())
	require.Equal(t, []string{"openid", "profile", "email"}, c.GetScopes())
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "90s")
	t.Setenv("HTTP_MAX_ATTEMPTS", "5")
	t.Setenv("OAUTH_VERIFY_ID_TOKEN", "true")

	c := config.New()
	require.Equal(t, 90*time.Second, c.GetAccessTokenTTL())
	require.Equal(t, 5, c.GetMaxAttempts())
	require.True(t, c.GetVerifyIDToken())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	t.Setenv("HTTP_MAX_ATTEMPTS", "-1")

	c := config.New()
	require.Equal(t, 5*time.Minute, c.GetAccessTokenTTL())
	require.Equal(t, 3, c.GetMaxAttempts())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "setoran.yaml")
	err := os.WriteFile(path, []byte(`
OAUTH_ISSUER_URL: https://id.example.com/realms/test/
OAUTH_CLIENT_ID: test-client
REFRESH_TOKEN_TTL: 1h
HTTP_MAX_ATTEMPTS: 4
FOLDER: /var/lib/setoran
`), 0o600)
	require.NoError(t, err)

	t.Setenv("OAUTH_CLIENT_ID", "env-client")

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-client", c.GetClientID())
	require.Equal(t, time.Hour, c.GetRefreshTokenTTL())
	require.Equal(t, 4, c.GetMaxAttempts())
	require.Equal(t, "https://id.example.com/realms/test/protocol/openid-connect/token", c.GetTokenURL())
	require.Equal(t, filepath.Join("/var/lib/setoran", "session.json"), c.GetTokenFile())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
