package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/dbx"
	"github.com/todovault/todovault/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SigningKey, error) {
	query := `
		SELECT id, public_key, private_key, created_at
		FROM jwks
		WHERE id = $1
	`
	key := &models.SigningKey{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&key.ID, &key.PublicKey, &key.PrivateKey, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) GetMostRecent(ctx context.Context) (*models.SigningKey, error) {
	query := `
		SELECT id, public_key, private_key, created_at
		FROM jwks
		ORDER BY created_at DESC
		LIMIT 1
	`
	key := &models.SigningKey{}
	err := r.db.QueryRowContext(ctx, query).
		Scan(&key.ID, &key.PublicKey, &key.PrivateKey, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]models.SigningKey, error) {
	query := `
		SELECT id, public_key, private_key, created_at
		FROM jwks
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []models.SigningKey
	for rows.Next() {
		var key models.SigningKey
		if err := rows.Scan(&key.ID, &key.PublicKey, &key.PrivateKey, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return keys, nil
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.SigningKey) error {
	query := `
		INSERT INTO jwks (id, public_key, private_key)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, key.ID, key.PublicKey, key.PrivateKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
