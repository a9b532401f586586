// Package services contains server-side business logic. This file implements
// TokenService: minting JWTs with persisted metadata, verifying them against
// the revocation store, and the bookkeeping around both.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/dbx"
	"github.com/todovault/todovault/internal/server/auth"
	"github.com/todovault/todovault/internal/server/config"
	"github.com/todovault/todovault/internal/server/models"
	"github.com/todovault/todovault/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a longer-lived refresh
// token, both JWTs.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// RefreshTokenID is the jti of the refresh token, used to anchor the
	// session opened at login.
	RefreshTokenID string
}

// TokenService mints and verifies JWTs. Every minted token gets a metadata
// row before the signed string is handed out, so revocation lookups never
// race a token that exists only in flight.
type TokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	verifier    *auth.Verifier
}

// NewTokenService constructs a TokenService using repositories and server config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *TokenService {
	accessSecret := []byte(cfg.SecretKey)
	refreshSecret := []byte(cfg.RefreshSecretKey)
	return &TokenService{
		db:          db,
		repomanager: m,
		issuer:      auth.NewIssuer(accessSecret, refreshSecret, cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration),
		verifier:    auth.NewVerifier(cfg.Algorithm, accessSecret, refreshSecret, m.Keys(db)),
	}
}

// Issue mints a single token of the given kind for userID and records its
// metadata in the same DBTX. The record is written before the token string
// is returned.
func (s *TokenService) Issue(ctx context.Context, db dbx.DBTX, userID string, kind auth.Kind) (string, *auth.Claims, error) {
	signed, claims, err := s.issuer.Issue(userID, kind)
	if err != nil {
		if errors.Is(err, common.ErrInvalidSubject) {
			return "", nil, err
		}
		return "", nil, common.ErrorInternal
	}

	rec := &models.TokenRecord{
		TokenID:   claims.ID,
		UserID:    userID,
		Kind:      string(kind),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.repomanager.TokenRecords(db).Create(ctx, rec); err != nil {
		return "", nil, fmt.Errorf("%w: token record: %v", common.ErrorUpstreamUnavailable, err)
	}
	return signed, claims, nil
}

// IssuePair mints an access and a refresh token for userID. Both metadata
// rows are written in a single transaction so a crash cannot leave one
// token tracked and the other not.
func (s *TokenService) IssuePair(ctx context.Context, userID string) (*TokenPair, error) {
	var pair TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		access, _, err := s.Issue(ctx, tx, userID, auth.KindAccess)
		if err != nil {
			return err
		}
		refresh, refreshClaims, err := s.Issue(ctx, tx, userID, auth.KindRefresh)
		if err != nil {
			return err
		}
		pair = TokenPair{AccessToken: access, RefreshToken: refresh, RefreshTokenID: refreshClaims.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// VerifyToken checks raw's signature and claims for the expected kind and
// then consults the revocation store by jti. A store outage fails closed:
// the token is treated as unverifiable, not as valid.
func (s *TokenService) VerifyToken(ctx context.Context, raw string, kind auth.Kind) (*auth.Claims, error) {
	claims, err := s.verifier.Verify(ctx, raw, kind)
	if err != nil {
		return nil, err
	}

	revoked, err := s.repomanager.TokenRecords(s.db).IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: revocation lookup: %v", common.ErrorUpstreamUnavailable, err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}
	return claims, nil
}

// RevokeToken verifies raw as a token of the given kind and marks its jti
// revoked. Revoking an already revoked or unknown token is not an error.
func (s *TokenService) RevokeToken(ctx context.Context, raw string, kind auth.Kind) error {
	claims, err := s.verifier.Verify(ctx, raw, kind)
	if err != nil {
		return err
	}
	if _, err := s.repomanager.TokenRecords(s.db).Revoke(ctx, claims.ID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// RevokeTokenID marks the token with the given jti revoked without needing
// the raw token. Reports whether a live row was actually flipped.
func (s *TokenService) RevokeTokenID(ctx context.Context, tokenID string) (bool, error) {
	flipped, err := s.repomanager.TokenRecords(s.db).Revoke(ctx, tokenID)
	if err != nil {
		return false, common.ErrorInternal
	}
	return flipped, nil
}

// RevokeAllUserTokens revokes every outstanding token of the user and
// returns how many were affected.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) (int64, error) {
	count, err := s.repomanager.TokenRecords(s.db).RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, common.ErrorInternal
	}
	return count, nil
}

// CleanupExpiredTokens marks expired token rows revoked (kept for audit)
// and returns how many rows were touched.
func (s *TokenService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	count, err := s.repomanager.TokenRecords(s.db).SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("error sweeping tokens: %v", err)
	}
	return count, nil
}

// ListUserTokens returns the user's token records, newest first.
func (s *TokenService) ListUserTokens(ctx context.Context, userID string) ([]models.TokenRecord, error) {
	recs, err := s.repomanager.TokenRecords(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return recs, nil
}

// Verifier exposes the underlying claims verifier for transports that only
// need signature checks without the revocation lookup.
func (s *TokenService) Verifier() *auth.Verifier {
	return s.verifier
}
