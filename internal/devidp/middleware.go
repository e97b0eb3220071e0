package devidp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-setoran-session/oauth2"
)

type contextKey string

const ContextKeyClaims contextKey = "claims"

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("devidp: request")
	})
}

func (s *Server) RequireRealm(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "realm") != s.realm {
			http.Error(w, `{"error":"Realm does not exist"}`, http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailureMiddleware answers with an injected status while failures are queued for the endpoint.
func (s *Server) FailureMiddleware(endpoint Endpoint) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if status, ok := s.nextFailure(endpoint); ok {
				s.logger.Debug().Str("endpoint", string(endpoint)).Int("status", status).Msg("devidp: injected failure")
				writeOAuthError(w, status, oauth2.ErrServerError, "injected failure")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) nextFailure(endpoint Endpoint) (int, bool) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	queue := s.failures[endpoint]
	if len(queue) == 0 {
		return 0, false
	}
	s.failures[endpoint] = queue[1:]
	return queue[0], true
}

// RequireAuth validates the Bearer access token and injects its claims
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.apiCalls.Add(1)

		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			writeOAuthError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		claims, err := s.inspector.Inspect(parts[1], s.issuer(r))
		if err != nil {
			writeOAuthError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *AccessClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AccessClaims)
	return claims
}
