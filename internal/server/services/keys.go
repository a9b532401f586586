package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"errors"

	"github.com/google/uuid"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/server/models"
	"github.com/todovault/todovault/internal/server/repositories/repomanager"
)

// KeyService administers the signing key registry. Keys are only ever
// added; verifiers keep accepting old keys until their rows are removed by
// an operator.
type KeyService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewKeyService(db *sql.DB, m repomanager.RepositoryManager) *KeyService {
	return &KeyService{db: db, repomanager: m}
}

// EnsureKey guarantees the registry holds at least one signing key,
// generating one on first start so the JWKS endpoint never publishes an
// empty set.
func (s *KeyService) EnsureKey(ctx context.Context) (*models.SigningKey, error) {
	key, err := s.repomanager.Keys(s.db).GetMostRecent(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}
	return s.RotateKey(ctx)
}

// RotateKey generates a fresh P-256 keypair, stores it PEM-encoded under a
// new key id, and returns the stored row. Existing keys stay valid for
// verification.
func (s *KeyService) RotateKey(ctx context.Context) (*models.SigningKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, common.ErrorInternal
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, common.ErrorInternal
	}
	privDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, common.ErrorInternal
	}

	key := &models.SigningKey{
		ID:         uuid.NewString(),
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privDER})),
	}
	if err := s.repomanager.Keys(s.db).Create(ctx, key); err != nil {
		return nil, common.ErrorInternal
	}
	return key, nil
}
