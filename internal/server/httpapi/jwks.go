package httpapi

import (
	"net/http"

	"github.com/todovault/todovault/internal/server/auth"
)

// keySource is the read-only view of the key registry the JWKS handler
// needs. Satisfied by the keys repository.
type keySource = auth.KeySource

// handleJWKS publishes the public halves of the key registry in standard
// JWK-set form. Private material never leaves the database.
func (s *HTTPServer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set, err := auth.PublicKeySet(r.Context(), s.keys)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, set)
}
