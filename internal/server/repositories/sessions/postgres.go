package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/dbx"
	"github.com/todovault/todovault/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (session_id, user_id, token_id, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.SessionID, session.UserID, session.TokenID,
		session.ExpiresAt, session.UserAgent, session.IPAddress)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByTokenID(ctx context.Context, tokenID string) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, token_id, expires_at, created_at, last_accessed_at, user_agent, ip_address
		FROM sessions
		WHERE token_id = $1 AND expires_at > NOW()
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, tokenID).Scan(
		&session.SessionID, &session.UserID, &session.TokenID,
		&session.ExpiresAt, &session.CreatedAt, &session.LastAccessedAt,
		&session.UserAgent, &session.IPAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, userID string) ([]models.Session, error) {
	query := `
		SELECT session_id, user_id, token_id, expires_at, created_at, last_accessed_at, user_agent, ip_address
		FROM sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.SessionID, &s.UserID, &s.TokenID,
			&s.ExpiresAt, &s.CreatedAt, &s.LastAccessedAt,
			&s.UserAgent, &s.IPAddress); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Revoke expires the session immediately instead of deleting it, so the
// row survives for audit until the sweeper removes it.
func (r *PostgresRepository) Revoke(ctx context.Context, sessionID string) (bool, error) {
	query := `
		UPDATE sessions
		SET expires_at = NOW() - INTERVAL '1 second'
		WHERE session_id = $1 AND expires_at > NOW()
	`
	res, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected > 0, nil
}

func (r *PostgresRepository) RevokeAll(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE sessions
		SET expires_at = NOW() - INTERVAL '1 second'
		WHERE user_id = $1 AND expires_at > NOW()
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}

// Refresh slides the expiry of a live session forward. Expired and revoked
// sessions are left untouched and report ErrorNotFound so a dead session
// can never be extended back to life.
func (r *PostgresRepository) Refresh(ctx context.Context, tokenID string, expiresAt time.Time, userAgent, ipAddress string) error {
	query := `
		UPDATE sessions
		SET expires_at = $2,
		    last_accessed_at = NOW(),
		    user_agent = COALESCE(NULLIF($3, ''), user_agent),
		    ip_address = COALESCE(NULLIF($4, ''), ip_address)
		WHERE token_id = $1 AND expires_at > NOW()
	`
	res, err := r.db.ExecContext(ctx, query, tokenID, expiresAt, userAgent, ipAddress)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SweepExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= NOW()
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
