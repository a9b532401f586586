package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/server/config"
	"github.com/todovault/todovault/internal/server/models"
	"github.com/todovault/todovault/internal/server/repositories/repomanager"
)

// SessionService manages interactive sessions. A session is anchored to the
// jti of the refresh token minted at login and carries a sliding expiry
// window plus device metadata.
type SessionService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	sessionValidity time.Duration
}

// NewSessionService constructs a SessionService using repositories and server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SessionService {
	return &SessionService{
		db:              db,
		repomanager:     m,
		sessionValidity: cfg.SessionValidityDuration,
	}
}

// validateIP rejects malformed IP literals. Empty means "not provided" and
// is allowed.
func validateIP(ipAddress string) error {
	if ipAddress == "" {
		return nil
	}
	if _, err := netip.ParseAddr(ipAddress); err != nil {
		return fmt.Errorf("%w: invalid ip address", common.ErrorValidation)
	}
	return nil
}

// CreateSession opens a session for userID anchored to the refresh token's
// jti. userAgent and ipAddress are best-effort device metadata.
func (s *SessionService) CreateSession(ctx context.Context, userID, tokenID, userAgent, ipAddress string) (*models.Session, error) {
	if userID == "" || tokenID == "" {
		return nil, common.ErrorValidation
	}
	if err := validateIP(ipAddress); err != nil {
		return nil, err
	}

	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		TokenID:   tokenID,
		ExpiresAt: time.Now().Add(s.sessionValidity),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, common.ErrorInternal
	}
	return session, nil
}

// ListSessions returns the user's live sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.repomanager.Sessions(s.db).ListActive(ctx, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return sessions, nil
}

// RevokeSession expires a single session immediately. Reports whether a
// live session was revoked.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) (bool, error) {
	revoked, err := s.repomanager.Sessions(s.db).Revoke(ctx, sessionID)
	if err != nil {
		return false, common.ErrorInternal
	}
	return revoked, nil
}

// RevokeAllSessions expires every live session of the user and returns how
// many were affected.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	count, err := s.repomanager.Sessions(s.db).RevokeAll(ctx, userID)
	if err != nil {
		return 0, common.ErrorInternal
	}
	return count, nil
}

// RefreshSession slides the session window forward and records the access.
// The session is looked up by the refresh token's jti; a missing or expired
// session yields common.ErrorNotFound.
func (s *SessionService) RefreshSession(ctx context.Context, tokenID, userAgent, ipAddress string) error {
	if err := validateIP(ipAddress); err != nil {
		return err
	}
	err := s.repomanager.Sessions(s.db).Refresh(ctx, tokenID, time.Now().Add(s.sessionValidity), userAgent, ipAddress)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

// GetSessionByTokenID returns the live session anchored to the given jti.
func (s *SessionService) GetSessionByTokenID(ctx context.Context, tokenID string) (*models.Session, error) {
	session, err := s.repomanager.Sessions(s.db).GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return session, nil
}

// CleanupExpiredSessions hard-deletes sessions past their expiry and
// returns how many were removed.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	count, err := s.repomanager.Sessions(s.db).SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("error sweeping sessions: %v", err)
	}
	return count, nil
}
