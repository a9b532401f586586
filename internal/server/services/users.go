package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/cryptox"
	"github.com/todovault/todovault/internal/server/auth"
	"github.com/todovault/todovault/internal/server/models"
	"github.com/todovault/todovault/internal/server/repositories/repomanager"
)

// UserService provides account-level operations:
//   - Register: create users
//   - Login: verify credentials, mint a token pair and open a session
//   - RefreshToken: mint a fresh access token off a live refresh token
//   - Logout / LogoutAll: tear down tokens and sessions
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenService
	sessions    *SessionService
}

// NewUserService constructs a UserService on top of the token and session
// services.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, sessions *SessionService) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		sessions:    sessions,
	}
}

// Register creates a new active user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, common.ErrorValidation
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", common.ErrorValidation)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return user, nil
}

// Login verifies the credentials and, on success, mints a token pair and
// opens a session anchored to the refresh token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !user.IsActive {
		return nil, common.ErrUserInactive
	}
	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}

	pair, err := s.tokens.IssuePair(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorUpstreamUnavailable) {
			return nil, err
		}
		return nil, common.ErrorInternal
	}

	if _, err := s.sessions.CreateSession(ctx, user.ID, pair.RefreshTokenID, userAgent, ipAddress); err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshToken validates a refresh token and mints a new access token. The
// user's account must still exist and be active; the session window slides
// forward when one is anchored to the token.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken, userAgent, ipAddress string) (string, error) {
	claims, err := s.tokens.VerifyToken(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return "", err
	}
	userID, err := claims.ResolveSubject()
	if err != nil {
		return "", err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}
	if !user.IsActive {
		return "", common.ErrUserInactive
	}

	access, _, err := s.tokens.Issue(ctx, s.db, user.ID, auth.KindAccess)
	if err != nil {
		if errors.Is(err, common.ErrorUpstreamUnavailable) {
			return "", err
		}
		return "", common.ErrorInternal
	}

	// A login predating session tracking has no session row; that is fine.
	if err := s.sessions.RefreshSession(ctx, claims.ID, userAgent, ipAddress); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}
	return access, nil
}

// Logout revokes the refresh token and expires the session anchored to it.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyToken(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return err
	}
	if _, err := s.tokens.RevokeTokenID(ctx, claims.ID); err != nil {
		return err
	}
	if session, err := s.sessions.GetSessionByTokenID(ctx, claims.ID); err == nil {
		if _, err := s.sessions.RevokeSession(ctx, session.SessionID); err != nil {
			return err
		}
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

// LogoutAll revokes every token and session of the user. Returns the number
// of tokens revoked.
func (s *UserService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.tokens.RevokeAllUserTokens(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := s.sessions.RevokeAllSessions(ctx, userID); err != nil {
		return 0, err
	}
	return count, nil
}
