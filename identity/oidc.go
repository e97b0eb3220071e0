package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// OIDCReader verifies the identity token signature, issuer and audience before reading claims.
// Expiry is not checked: the identity token is only used for display and lives as long as the
// session record that holds it.
type OIDCReader struct {
	verifier *oidc.IDTokenVerifier
}

var _ Reader = (*OIDCReader)(nil)

type oidcOptions struct {
	keySet     oidc.KeySet
	httpClient *http.Client
	nowFunc    func() time.Time
}

type OIDCOption func(*oidcOptions)

// WithKeySet replaces the remote JWKS (primarily for testing)
func WithKeySet(keySet oidc.KeySet) OIDCOption {
	return func(o *oidcOptions) {
		o.keySet = keySet
	}
}

func WithHTTPClient(client *http.Client) OIDCOption {
	return func(o *oidcOptions) {
		o.httpClient = client
	}
}

func WithNowFunc(now func() time.Time) OIDCOption {
	return func(o *oidcOptions) {
		o.nowFunc = now
	}
}

// NewOIDCReader builds a verifier for tokens issued by issuer to clientID. Keys are fetched lazily
// from jwksURL on first use.
func NewOIDCReader(issuer, jwksURL, clientID string, options ...OIDCOption) *OIDCReader {
	opts := &oidcOptions{}
	for _, opt := range options {
		opt(opts)
	}

	keySet := opts.keySet
	if keySet == nil {
		ctx := context.Background()
		if opts.httpClient != nil {
			ctx = oidc.ClientContext(ctx, opts.httpClient)
		}
		keySet = oidc.NewRemoteKeySet(ctx, jwksURL)
	}

	return &OIDCReader{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{
			ClientID:        clientID,
			SkipExpiryCheck: true,
			Now:             opts.nowFunc,
		}),
	}
}

func (r *OIDCReader) Read(ctx context.Context, rawIDToken string) (Claims, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return Claims{}, ErrNoIDToken
	}
	idToken, err := r.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Claims{}, errors.Wrap(err, "[OIDCReader.Read] verify identity token")
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return Claims{}, errors.Wrap(err, "[OIDCReader.Read] decode claims")
	}
	return claims, nil
}
