// Package identity reads the user-facing claims carried by the OpenID Connect identity token.
package identity

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoIDToken is returned when there is no identity token to read.
var ErrNoIDToken = errors.New("no identity token")

// Claims are the identity claims the client shows to the user.
type Claims struct {
	Subject           string `json:"sub"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
}

// DisplayName returns the full name, falling back to the preferred username.
func (c Claims) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return c.PreferredUsername
}

// Reader extracts Claims from a raw identity token.
type Reader interface {
	Read(ctx context.Context, rawIDToken string) (Claims, error)
}
