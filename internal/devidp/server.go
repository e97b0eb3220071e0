// Package devidp is a small Keycloak-shaped identity provider and setoran resource API for local
// development and end-to-end tests. It supports the password and refresh_token grants, the
// end-session endpoint, the JWKS endpoint and the dosen/setoran resource routes.
package devidp

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	RouteRealm         = "/realms/{realm}"
	RouteWellKnown     = "/.well-known/openid-configuration"
	RouteToken         = "/protocol/openid-connect/token"
	RouteLogout        = "/protocol/openid-connect/logout"
	RouteCerts         = "/protocol/openid-connect/certs"
	RouteAPI           = "/setoran-dev/v1"
	RouteDosenInfo     = "/dosen/pa-saya"
	RouteSetoranByNIM  = "/mahasiswa/setoran/{nim}"
	defaultRealm       = "dev"
	defaultAccessTTL   = 5 * time.Minute
	defaultRefreshTTL  = 30 * time.Minute
	defaultClientID    = "setoran-mobile-dev"
	defaultIDPKeyID    = "devidp-rs256"
	defaultIDPKeyBits  = 2048
	defaultTokenScopes = "openid profile email"
)

// Endpoint names a group of routes for failure injection and call counts.
type Endpoint string

const (
	EndpointToken  Endpoint = "token"
	EndpointLogout Endpoint = "logout"
	EndpointAPI    Endpoint = "api"
)

// Calls counts requests served per grant or endpoint.
type Calls struct {
	PasswordGrants int64
	RefreshGrants  int64
	Logouts        int64
	APICalls       int64
}

type Server struct {
	router       chi.Router
	realm        string
	clientID     string
	clientSecret string
	accessTTL    time.Duration
	refreshTTL   time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
	keyPair      *KeyPair

	users     *Users
	refresh   *RefreshTokens
	revoked   *RevokedTokens
	signer    Signer
	creator   *Creator
	inspector *Inspector
	setoran   *setoranBook

	passwordGrants atomic.Int64
	refreshGrants  atomic.Int64
	logouts        atomic.Int64
	apiCalls       atomic.Int64

	failMu   sync.Mutex
	failures map[Endpoint][]int
}

type Option func(*Server)

func WithRealm(realm string) Option {
	return func(s *Server) {
		s.realm = realm
	}
}

func WithClient(clientID, clientSecret string) Option {
	return func(s *Server) {
		s.clientID = clientID
		s.clientSecret = clientSecret
	}
}

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = accessTokenExpiry
		s.refreshTTL = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithKeyPair(keyPair *KeyPair) Option {
	return func(s *Server) {
		s.keyPair = keyPair
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates the provider with no users. A signing key is generated unless one is supplied.
func New(options ...Option) (*Server, error) {
	s := &Server{
		realm:      defaultRealm,
		clientID:   defaultClientID,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		nowFunc:    time.Now,
		logger:     log.Logger,
		users:      NewUsers(),
		setoran:    newSetoranBook(),
		failures:   make(map[Endpoint][]int),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.keyPair == nil {
		keyPair, err := GenerateRSAKeyPair(defaultIDPKeyID, defaultIDPKeyBits)
		if err != nil {
			return nil, fmt.Errorf("[devidp.New] %w", err)
		}
		s.keyPair = keyPair
	}
	s.signer = NewKeyPairSigner(s.keyPair)
	s.refresh = NewRefreshTokens(s.refreshTTL, s.nowFunc)
	s.revoked = NewRevokedTokens(s.nowFunc)
	s.creator = NewCreator(s.signer, s.accessTTL, s.nowFunc)
	s.inspector = NewInspector(s.signer, s.revoked, s.nowFunc)
	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.LoggingMiddleware)

	r.Route(RouteRealm, func(r chi.Router) {
		r.Use(s.RequireRealm)
		r.Get(RouteWellKnown, s.WellKnownOpenIDConfig())
		r.Get(RouteCerts, s.JWKS())
		r.With(s.FailureMiddleware(EndpointToken)).Post(RouteToken, s.Token())
		r.With(s.FailureMiddleware(EndpointLogout)).Post(RouteLogout, s.Logout())
	})

	r.Route(RouteAPI, func(r chi.Router) {
		r.Use(s.FailureMiddleware(EndpointAPI), s.RequireAuth)
		r.Get(RouteDosenInfo, s.DosenInfo())
		r.Get(RouteSetoranByNIM, s.StudentSetoran())
		r.Post(RouteSetoranByNIM, s.SubmitSetoran())
		r.Delete(RouteSetoranByNIM, s.CancelSetoran())
	})
	s.router = r
}

// BlockUser disables the account. Its refresh tokens stop working.
func (s *Server) BlockUser(username string) bool {
	user, ok := s.users.GetByUsername(username)
	if !ok {
		return false
	}
	blocked := *user
	blocked.Blocked = true
	s.users.Upsert(&blocked)
	return true
}

// AddUser registers a lecturer that can log in with the password grant.
func (s *Server) AddUser(username, password, name, email, nip string) (*User, error) {
	user, err := NewUser(username, password, name, email)
	if err != nil {
		return nil, err
	}
	user.NIP = nip
	s.users.Upsert(user)
	return user, nil
}

// AddStudent puts a student under the supervision of the lecturer.
func (s *Server) AddStudent(lecturer, nim, name string, angkatan int) {
	s.setoran.addStudent(lecturer, Student{NIM: nim, Name: name, Angkatan: angkatan})
}

// FailNext makes the next count requests to the endpoint fail with status.
func (s *Server) FailNext(endpoint Endpoint, status, count int) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	for i := 0; i < count; i++ {
		s.failures[endpoint] = append(s.failures[endpoint], status)
	}
}

// RevokeAccessToken makes the resource API reject the access token before it expires.
func (s *Server) RevokeAccessToken(rawToken string) error {
	jti, exp, err := s.inspector.ParseAndExtractJTI(rawToken)
	if err != nil {
		return err
	}
	s.revoked.Add(jti, exp)
	return nil
}

func (s *Server) Calls() Calls {
	return Calls{
		PasswordGrants: s.passwordGrants.Load(),
		RefreshGrants:  s.refreshGrants.Load(),
		Logouts:        s.logouts.Load(),
		APICalls:       s.apiCalls.Load(),
	}
}

// JWKSPath returns the certs path of the realm, relative to the server root.
func (s *Server) JWKSPath() string {
	return s.RealmPath() + RouteCerts
}

func (s *Server) RealmPath() string {
	return "/realms/" + s.realm
}

// issuer derives the realm URL from the request so tokens match the address clients used.
func (s *Server) issuer(r *http.Request) string {
	return getScheme(r) + "://" + r.Host + s.RealmPath()
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
