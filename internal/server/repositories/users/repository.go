package users

import (
	"context"

	"github.com/todovault/todovault/internal/server/models"
)

// Repository provides access to user accounts.
type Repository interface {
	// GetByID returns the user with the given id or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail returns the user with the given email or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create inserts a new user row.
	Create(ctx context.Context, user *models.User) error
}
