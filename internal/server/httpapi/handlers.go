package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/todovault/todovault/internal/common"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type sessionResponse struct {
	SessionID      string    `json:"session_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	UserAgent      string    `json:"user_agent,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
}

type tokenRecordResponse struct {
	TokenID   string    `json:"token_id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// serviceError maps service-layer sentinels onto HTTP statuses. Anything
// auth-shaped becomes the generic 401.
func (s *HTTPServer) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrorUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrUserInactive),
		errors.Is(err, common.ErrTokenRevoked),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrWrongTokenKind),
		errors.Is(err, common.ErrSignatureInvalid),
		errors.Is(err, common.ErrTokenMalformed),
		errors.Is(err, common.ErrUnsupportedAlgorithm),
		errors.Is(err, common.ErrKeyNotFound),
		errors.Is(err, common.ErrMissingSubjectClaim),
		errors.Is(err, common.ErrSubjectClaimsConflict):
		s.unauthorized(w)
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "email": user.Email})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.users.Login(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := s.users.RefreshToken(r.Context(), req.RefreshToken, r.UserAgent(), clientIP(r))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: access, TokenType: "Bearer"})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.users.Logout(r.Context(), req.RefreshToken); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	count, err := s.users.LogoutAll(r.Context(), userID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"revoked": count})
}

func (s *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	sessions, err := s.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionResponse{
			SessionID:      sess.SessionID,
			CreatedAt:      sess.CreatedAt,
			LastAccessedAt: sess.LastAccessedAt,
			ExpiresAt:      sess.ExpiresAt,
			UserAgent:      sess.UserAgent,
			IPAddress:      sess.IPAddress,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	// only the owner may revoke a session
	sessions, err := s.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	owned := false
	for _, sess := range sessions {
		if sess.SessionID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if _, err := s.sessions.RevokeSession(r.Context(), sessionID); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListTokens(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	recs, err := s.tokens.ListUserTokens(r.Context(), userID)
	if err != nil {
		s.serviceError(w, err)
		return
	}

	out := make([]tokenRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, tokenRecordResponse{
			TokenID:   rec.TokenID,
			Kind:      rec.Kind,
			ExpiresAt: rec.ExpiresAt,
			Revoked:   rec.Revoked,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// clientIP strips the port from RemoteAddr. Proxied deployments should
// terminate at something that rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
