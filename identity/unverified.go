package identity

import (
	"context"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// UnverifiedReader decodes the token payload without checking its signature. The token was
// received directly from the token endpoint over TLS, which is what the mobile client relied on.
type UnverifiedReader struct {
	parser *jwtlib.Parser
}

var _ Reader = (*UnverifiedReader)(nil)

func NewUnverifiedReader() *UnverifiedReader {
	return &UnverifiedReader{parser: jwtlib.NewParser()}
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

func (r *UnverifiedReader) Read(_ context.Context, rawIDToken string) (Claims, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return Claims{}, ErrNoIDToken
	}
	var tc tokenClaims
	if _, _, err := r.parser.ParseUnverified(rawIDToken, &tc); err != nil {
		return Claims{}, errors.Wrap(err, "[UnverifiedReader.Read] decode identity token")
	}
	return Claims{
		Subject:           tc.Subject,
		Name:              tc.Name,
		PreferredUsername: tc.PreferredUsername,
		Email:             tc.Email,
	}, nil
}
