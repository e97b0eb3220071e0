package config

import (
	"strings"
	"time"
)

type OAuthConfig interface {
	GetTokenURL() string
	GetLogoutURL() string
	GetIssuerURL() string
	GetJWKSURL() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetVerifyIDToken() bool
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

type OAuth struct{ values }

var _ OAuthConfig = OAuth{}

const defaultIssuer = "https://id.tif.uin-suska.ac.id/realms/dev"

func (o OAuth) GetIssuerURL() string {
	return strings.TrimRight(o.get("OAUTH_ISSUER_URL", defaultIssuer), "/")
}

func (o OAuth) GetTokenURL() string {
	return o.get("OAUTH_TOKEN_URL", o.GetIssuerURL()+"/protocol/openid-connect/token")
}

func (o OAuth) GetJWKSURL() string {
	return o.get("OAUTH_JWKS_URL", o.GetIssuerURL()+"/protocol/openid-connect/certs")
}

// GetLogoutURL returns the end-session endpoint. An empty value disables server-side logout.
func (o OAuth) GetLogoutURL() string {
	return o.get("OAUTH_LOGOUT_URL", o.GetIssuerURL()+"/protocol/openid-connect/logout")
}

func (o OAuth) GetClientID() string {
	return o.get("OAUTH_CLIENT_ID", "setoran-mobile-dev")
}

func (o OAuth) GetClientSecret() string {
	return o.get("OAUTH_CLIENT_SECRET", "")
}

func (o OAuth) GetScopes() []string {
	return strings.Fields(o.get("OAUTH_SCOPES", "openid profile email"))
}

// GetVerifyIDToken enables signature verification of the identity token through OIDC discovery
func (o OAuth) GetVerifyIDToken() bool {
	return o.bool("OAUTH_VERIFY_ID_TOKEN", false)
}

func (o OAuth) GetAccessTokenTTL() time.Duration {
	return o.duration("ACCESS_TOKEN_TTL", 5*time.Minute)
}

func (o OAuth) GetRefreshTokenTTL() time.Duration {
	return o.duration("REFRESH_TOKEN_TTL", 30*time.Minute)
}
