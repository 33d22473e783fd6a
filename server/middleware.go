package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/buildworks/sitelink/transport"
)

type contextKey string

const accountContextKey contextKey = "account"

// bearerAuthMiddleware validates the Authorization header and loads the
// account into the request context.
func (s *Server) bearerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.tokens.subject(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "invalid token")
			return
		}
		acct, found := s.users.findByID(userID)
		if !found {
			writeError(w, http.StatusUnauthorized, transport.CodeUnauthorized, "unknown user")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountContextKey, acct)))
	})
}

func (s *Server) accountFromContext(r *http.Request) (*account, bool) {
	acct, ok := r.Context().Value(accountContextKey).(*account)
	return acct, ok
}
