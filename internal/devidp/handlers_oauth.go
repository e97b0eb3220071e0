package devidp

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-setoran-session/oauth2"
)

// WellKnownOpenIDConfig serves the OIDC discovery document of the realm
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issuer := s.issuer(r)
		resp := map[string]any{
			"issuer":                                issuer,
			"token_endpoint":                        issuer + RouteToken,
			"jwks_uri":                              issuer + RouteCerts,
			"end_session_endpoint":                  issuer + RouteLogout,
			"grant_types_supported":                 []oauth2.GrantType{oauth2.PasswordGrant, oauth2.RefreshTokenGrant},
			"response_types_supported":              []string{"token", "id_token"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{RS256},
			"scopes_supported":                      []string{"openid", "profile", "email"},
			"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
			"claims_supported":                      []string{"sub", "name", "preferred_username", "email"},
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.signer.GetJWKS()
		if err != nil {
			writeOAuthError(w, http.StatusInternalServerError, oauth2.ErrServerError, "failed to get JWKS: "+err.Error())
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, jwks)
	}
}

// Token handles the password and refresh_token grants
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "Failed to parse form data")
			return
		}
		if !s.clientAuthenticated(r) {
			writeOAuthError(w, http.StatusUnauthorized, oauth2.ErrInvalidClient, "Invalid client credentials")
			return
		}

		switch oauth2.GrantType(r.PostFormValue("grant_type")) {
		case oauth2.PasswordGrant:
			s.passwordGrants.Add(1)
			s.passwordGrant(w, r)
		case oauth2.RefreshTokenGrant:
			s.refreshGrants.Add(1)
			s.refreshGrant(w, r)
		default:
			writeOAuthError(w, http.StatusBadRequest, oauth2.ErrUnsupportedGrantType, "Unsupported grant type")
		}
	}
}

func (s *Server) passwordGrant(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "Missing parameter: username")
		return
	}

	user, ok := s.users.Authenticate(username, password)
	if !ok {
		s.logger.Info().Str("username", username).Msg("devidp: invalid user credentials")
		writeOAuthError(w, http.StatusUnauthorized, oauth2.ErrInvalidGrant, "Invalid user credentials")
		return
	}

	scope := r.PostFormValue("scope")
	if scope == "" {
		scope = defaultTokenScopes
	}
	s.issueTokens(w, r, user, uuid.NewString(), scope)
}

func (s *Server) refreshGrant(w http.ResponseWriter, r *http.Request) {
	stored, ok := s.refresh.Get(r.PostFormValue("refresh_token"))
	if !ok || stored.ClientID != s.clientID || s.revoked.IsRevoked(stored.SessionID) {
		writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidGrant, "Token is not active")
		return
	}
	user, ok := s.users.GetByID(stored.UserID)
	if !ok || user.Blocked {
		s.refresh.DeleteSession(stored.SessionID)
		writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidGrant, "User is disabled")
		return
	}
	s.issueTokens(w, r, user, stored.SessionID, stored.Scope)
}

// issueTokens mints an access and ID token pair and rotates the session's refresh token.
func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, user *User, sessionID, scope string) {
	issuer := s.issuer(r)
	accessToken, err := s.creator.CreateAccessToken(user, issuer, s.clientID, sessionID, scope)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, oauth2.ErrServerError, err.Error())
		return
	}
	idToken, err := s.creator.CreateIDToken(user, issuer, s.clientID, sessionID)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, oauth2.ErrServerError, err.Error())
		return
	}
	refreshToken, err := s.refresh.Create(s.clientID, user.ID, sessionID, scope)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, oauth2.ErrServerError, err.Error())
		return
	}

	resp := oauth2.TokenResponse{
		AccessToken:      ptr(accessToken),
		IDToken:          ptr(idToken),
		TokenType:        "Bearer",
		ExpiresIn:        int(s.accessTTL.Seconds()),
		RefreshToken:     ptr(refreshToken),
		RefreshExpiresIn: int(s.refreshTTL.Seconds()),
		Scope:            scope,
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// Logout ends the session of the presented refresh token. Its access tokens stop working at once.
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logouts.Add(1)
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidRequest, "Failed to parse form data")
			return
		}
		if !s.clientAuthenticated(r) {
			writeOAuthError(w, http.StatusUnauthorized, oauth2.ErrInvalidClient, "Invalid client credentials")
			return
		}

		stored, ok := s.refresh.Get(r.PostFormValue("refresh_token"))
		if !ok {
			writeOAuthError(w, http.StatusBadRequest, oauth2.ErrInvalidGrant, "Invalid refresh token")
			return
		}
		s.refresh.DeleteSession(stored.SessionID)
		s.revoked.Add(stored.SessionID, s.nowFunc().Add(s.accessTTL))
		s.revoked.Cleanup()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) clientAuthenticated(r *http.Request) bool {
	if r.PostFormValue("client_id") != s.clientID {
		return false
	}
	if s.clientSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.PostFormValue("client_secret")), []byte(s.clientSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOAuthError writes an OAuth2 error response
func writeOAuthError(w http.ResponseWriter, status int, code oauth2.ErrorCode, description string) {
	writeJSON(w, status, oauth2.ErrorResponse{Error: code, ErrorDescription: description})
}

func ptr[T any](v T) *T {
	return &v
}
