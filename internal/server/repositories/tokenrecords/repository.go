// Package tokenrecords declares the repository contract for persisted JWT
// metadata: one row per minted token, keyed by the token's jti claim, used
// for revocation lookups.
package tokenrecords

import (
	"context"

	"github.com/todovault/todovault/internal/server/models"
)

// Repository defines operations over token records. The revoked flag is
// monotonic: implementations must never flip it back to false.
type Repository interface {
	// Create inserts the metadata row for a freshly minted token.
	Create(ctx context.Context, rec *models.TokenRecord) error

	// IsRevoked reports whether the token with the given jti has been
	// revoked. Unknown token ids are reported as not revoked; the record
	// may have been created before revocation tracking or already swept.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Revoke marks a single token revoked and reports whether a row was
	// actually flipped.
	Revoke(ctx context.Context, tokenID string) (bool, error)

	// RevokeAllForUser marks every non-revoked token of the user revoked
	// and returns the number of rows affected.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// SweepExpired marks expired, non-revoked rows as revoked (soft delete
	// for audit) and returns the number of rows affected.
	SweepExpired(ctx context.Context) (int64, error)

	// ListByUser returns every token record of the user, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.TokenRecord, error)
}
