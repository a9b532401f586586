// Package keys declares the repository contract for the asymmetric key
// registry (JWKS-style). Rows are immutable; rotation inserts new rows.
package keys

import (
	"context"

	"github.com/todovault/todovault/internal/server/models"
)

// Repository defines operations over signing key records. The verifier only
// reads; Create exists for rotation and administrative tooling. Old keys
// must stay queryable until every token signed with them has expired.
type Repository interface {
	// GetByID returns the key record with the given id, or
	// common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.SigningKey, error)

	// GetMostRecent returns the newest key record, or common.ErrorNotFound
	// when the registry is empty.
	GetMostRecent(ctx context.Context) (*models.SigningKey, error)

	// ListAll returns every key record, newest first.
	ListAll(ctx context.Context) ([]models.SigningKey, error)

	// Create inserts a new key record (rotation).
	Create(ctx context.Context, key *models.SigningKey) error
}
