package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/.well-known/jwks.json", s.handleJWKS)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
	})

	// everything below requires a live access token
	r.Group(func(r chi.Router) {
		r.Use(s.requireAccessToken)
		r.Get("/api/sessions", s.handleListSessions)
		r.Delete("/api/sessions/{sessionID}", s.handleRevokeSession)
		r.Get("/api/tokens", s.handleListTokens)
		r.Post("/api/auth/logout-all", s.handleLogoutAll)
	})

	return r
}
