// Package auth implements minting and verification of signed tokens: the
// symmetric (shared secret) path used for tokens we issue ourselves and the
// asymmetric path backed by the rotating key registry. Persistence of token
// metadata lives in the service layer; this package is side-effect free.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/todovault/todovault/internal/common"
)

// Kind distinguishes short-lived access tokens from longer-lived refresh
// tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Valid reports whether k is one of the known token kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims is the token payload. The subject normally travels in the standard
// `sub` claim; `user_id` is a legacy alias still emitted by older clients.
// `type` carries the token kind, `jti` (RegisteredClaims.ID) the unique
// token id used as the revocation key.
type Claims struct {
	jwt.RegisteredClaims
	LegacyUserID string `json:"user_id,omitempty"`
	Kind         string `json:"type,omitempty"`
}

// ResolveSubject returns the user id carried by the claims. `sub` wins when
// only one is set; tokens where `sub` and `user_id` are both present and
// disagree are rejected outright rather than silently picking one.
func (c *Claims) ResolveSubject() (string, error) {
	sub, legacy := c.Subject, c.LegacyUserID
	switch {
	case sub == "" && legacy == "":
		return "", common.ErrMissingSubjectClaim
	case sub != "" && legacy != "" && sub != legacy:
		return "", common.ErrSubjectClaimsConflict
	case sub != "":
		return sub, nil
	default:
		return legacy, nil
	}
}
