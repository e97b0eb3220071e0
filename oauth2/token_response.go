package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749, plus the
// refresh_expires_in extension Keycloak sends.
type TokenResponse struct {
	// AccessToken is the JWT used to access the resource API.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IDToken is the OpenID Connect ID token containing user identity information.
	// Only present: When "openid" scope was requested
	IDToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token (always "Bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Usage: Send to the token endpoint with grant_type=refresh_token
	// Security: Rotates on each use
	RefreshToken *string `json:"refresh_token,omitempty"`

	// RefreshExpiresIn is the lifetime in seconds of the refresh token.
	RefreshExpiresIn int `json:"refresh_expires_in,omitempty"`

	// Scope indicates the access token's granted permissions.
	// Example: "openid profile email"
	Scope string `json:"scope,omitempty"`
}
