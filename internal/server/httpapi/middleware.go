package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// UserIDFromContext returns the authenticated user id injected by
// requireAccessToken, or "" for unauthenticated requests.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// unauthorized writes the single generic 401 used for every verification
// failure, so callers cannot distinguish expired from revoked from forged.
func (s *HTTPServer) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, common.GenericAuthFailure)
}

// requireAccessToken authenticates the request off the Authorization header
// and injects the user id into the request context.
func (s *HTTPServer) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, common.BearerPrefix) {
			s.unauthorized(w)
			return
		}
		raw := strings.TrimPrefix(header, common.BearerPrefix)

		claims, err := s.tokens.VerifyToken(r.Context(), raw, auth.KindAccess)
		if err != nil {
			s.unauthorized(w)
			return
		}
		userID, err := claims.ResolveSubject()
		if err != nil {
			s.unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
