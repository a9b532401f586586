package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/todovault/todovault/internal/common"
)

// Issuer mints signed access and refresh tokens. Access and refresh tokens
// are signed with separate shared secrets so a leaked access secret cannot
// be used to forge refresh tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Issue creates a signed token of the given kind for userID and returns the
// compact token together with the claims that went into it. The caller is
// responsible for persisting the matching token record before handing the
// token out.
func (i *Issuer) Issue(userID string, kind Kind) (string, *Claims, error) {
	if userID == "" {
		return "", nil, common.ErrInvalidSubject
	}

	secret, ttl, err := i.kindParams(kind)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Kind: string(kind),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}

	return signed, claims, nil
}

// TTL returns the configured lifetime for the given kind.
func (i *Issuer) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return i.refreshTTL
	}
	return i.accessTTL
}

func (i *Issuer) kindParams(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return i.accessSecret, i.accessTTL, nil
	case KindRefresh:
		return i.refreshSecret, i.refreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token kind %q", kind)
	}
}
