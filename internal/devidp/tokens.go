package devidp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Creator handles JWT token creation (ID tokens and access tokens)
type Creator struct {
	signer    Signer
	accessTTL time.Duration
	nowFunc   func() time.Time
}

func NewCreator(signer Signer, accessTTL time.Duration, nowFunc func() time.Time) *Creator {
	return &Creator{
		signer:    signer,
		accessTTL: accessTTL,
		nowFunc:   nowFunc,
	}
}

// CreateIDToken creates an OpenID Connect ID token
func (c *Creator) CreateIDToken(user *User, issuer, clientID, sessionID string) (string, error) {
	now := c.nowFunc()
	claims := jwtlib.MapClaims{
		"iss":                issuer,
		"sub":                user.ID,
		"aud":                clientID,
		"azp":                clientID,
		"typ":                "ID",
		"sid":                sessionID,
		"name":               user.Name,
		"preferred_username": user.Username,
		"email":              user.Email,
		"iat":                now.Unix(),
		"exp":                now.Add(c.accessTTL).Unix(),
		"jti":                uuid.NewString(),
	}
	return c.sign(claims)
}

// CreateAccessToken creates the bearer token accepted by the resource API
func (c *Creator) CreateAccessToken(user *User, issuer, clientID, sessionID, scope string) (string, error) {
	now := c.nowFunc()
	claims := jwtlib.MapClaims{
		"iss":                issuer,
		"aud":                "account",
		"azp":                clientID,
		"typ":                "Bearer",
		"sub":                user.ID,
		"sid":                sessionID,
		"scope":              scope,
		"preferred_username": user.Username,
		"iat":                now.Unix(),
		"exp":                now.Add(c.accessTTL).Unix(),
		"jti":                uuid.NewString(),
	}
	return c.sign(claims)
}

func (c *Creator) sign(claims jwtlib.MapClaims) (string, error) {
	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// AccessClaims are the verified claims of an access token.
type AccessClaims struct {
	jwtlib.RegisteredClaims
	Type              string `json:"typ"`
	SessionID         string `json:"sid"`
	Scope             string `json:"scope"`
	PreferredUsername string `json:"preferred_username"`
}

var (
	ErrTokenInactive = errors.New("token is not active")
	ErrTokenRevoked  = errors.New("token has been revoked")
)

// Inspector validates access tokens presented to the resource API
type Inspector struct {
	signer  Signer
	revoked *RevokedTokens
	nowFunc func() time.Time
}

func NewInspector(signer Signer, revoked *RevokedTokens, nowFunc func() time.Time) *Inspector {
	return &Inspector{
		signer:  signer,
		revoked: revoked,
		nowFunc: nowFunc,
	}
}

// Inspect verifies the signature, issuer, expiry and revocation state of an access token.
func (i *Inspector) Inspect(rawToken, issuer string) (*AccessClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrTokenInactive
	}

	var claims AccessClaims
	_, err := jwtlib.ParseWithClaims(rawToken, &claims, i.signer.GetVerificationKey,
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(i.nowFunc),
		jwtlib.WithValidMethods([]string{RS256}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInactive, err)
	}
	if claims.Type != "Bearer" {
		return nil, fmt.Errorf("%w: not an access token", ErrTokenInactive)
	}
	if i.revoked.IsRevoked(claims.ID) || i.revoked.IsRevoked(claims.SessionID) {
		return nil, ErrTokenRevoked
	}
	return &claims, nil
}

// ParseAndExtractJTI returns the ID and expiry of a token signed by this provider
func (i *Inspector) ParseAndExtractJTI(rawToken string) (jti string, exp time.Time, err error) {
	var claims jwtlib.RegisteredClaims
	_, err = jwtlib.ParseWithClaims(rawToken, &claims, i.signer.GetVerificationKey,
		jwtlib.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.ID == "" {
		return "", time.Time{}, errors.New("token missing jti claim")
	}
	if claims.ExpiresAt == nil {
		return "", time.Time{}, errors.New("token missing exp claim")
	}
	return claims.ID, claims.ExpiresAt.Time, nil
}
