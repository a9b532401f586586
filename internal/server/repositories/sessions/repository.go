package sessions

import (
	"context"
	"time"

	"github.com/todovault/todovault/internal/server/models"
)

// Repository tracks interactive sessions tied to refresh tokens.
type Repository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, session *models.Session) error
	// GetByTokenID returns the session bound to the given refresh token id.
	// Only sessions that have not yet expired are returned; a missing or
	// expired session yields common.ErrorNotFound.
	GetByTokenID(ctx context.Context, tokenID string) (*models.Session, error)
	// ListActive returns the user's sessions whose expiry is still in the
	// future, newest first.
	ListActive(ctx context.Context, userID string) ([]models.Session, error)
	// Revoke pushes the session's expiry into the past. Returns true if a
	// live session was revoked.
	Revoke(ctx context.Context, sessionID string) (bool, error)
	// RevokeAll revokes every live session of the user and reports how many
	// were affected.
	RevokeAll(ctx context.Context, userID string) (int64, error)
	// Refresh extends the session window and records the access. Empty
	// userAgent or ipAddress leave the stored values untouched.
	Refresh(ctx context.Context, tokenID string, expiresAt time.Time, userAgent, ipAddress string) error
	// SweepExpired hard-deletes sessions whose expiry has passed.
	SweepExpired(ctx context.Context) (int64, error)
}
