package models

import "time"

// TokenRecord is the persisted metadata of a minted JWT. The raw token is
// never stored; the record is keyed by the token's jti claim so revocation
// lookups are exact.
type TokenRecord struct {
	// TokenID is the jti claim of the minted token.
	TokenID string
	UserID  string
	// Kind is "access" or "refresh".
	Kind      string
	ExpiresAt time.Time
	// Revoked is monotonic: once true it never reverts. Expired rows are
	// flipped to true by the sweep instead of being deleted, for audit.
	Revoked   bool
	CreatedAt time.Time
}
