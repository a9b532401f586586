package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/server/models"
)

// KeySource exposes the asymmetric key registry to the verifier. Satisfied by
// the keys repository; the verifier only ever reads.
type KeySource interface {
	GetByID(ctx context.Context, id string) (*models.SigningKey, error)
	ListAll(ctx context.Context) ([]models.SigningKey, error)
}

// strategy is the verification branch, resolved exactly once from the token
// header instead of re-derived at every call site.
type strategy int

const (
	// strategySymmetric verifies with the configured shared secret.
	strategySymmetric strategy = iota + 1
	// strategyKeyID tries the registry key named by the header kid first,
	// then falls back to scanning every key.
	strategyKeyID
	// strategyKeyScan scans every registry key; used when the header has
	// no kid.
	strategyKeyScan
)

// header is the unverified JOSE header, decoded before any signature check
// purely to pick a verification strategy.
type header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Verifier checks signatures and claims. It holds no mutable state; the key
// registry is consulted per call through the KeySource.
type Verifier struct {
	algorithm     string
	accessSecret  []byte
	refreshSecret []byte
	keys          KeySource
}

// NewVerifier builds a Verifier. algorithm names the shared-secret signing
// algorithm (tokens declaring any other algorithm take the asymmetric path).
func NewVerifier(algorithm string, accessSecret, refreshSecret []byte, keys KeySource) *Verifier {
	return &Verifier{
		algorithm:     algorithm,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		keys:          keys,
	}
}

// Verify checks raw's structure, signature and claims and returns the parsed
// claims. Revocation is not consulted here; the caller does that with the
// returned jti.
func (v *Verifier) Verify(ctx context.Context, raw string, kind Kind) (*Claims, error) {
	h, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if h.Alg == "" || strings.EqualFold(h.Alg, "none") {
		return nil, common.ErrUnsupportedAlgorithm
	}

	var claims *Claims
	switch v.strategyFor(h) {
	case strategySymmetric:
		claims, err = v.verifySymmetric(raw, kind)
	case strategyKeyID, strategyKeyScan:
		claims, err = v.verifyWithRegistry(ctx, raw, h)
	}
	if err != nil {
		return nil, err
	}

	if err := v.checkClaims(claims, kind); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Verifier) strategyFor(h *header) strategy {
	if strings.EqualFold(h.Alg, v.algorithm) {
		return strategySymmetric
	}
	if h.Kid != "" {
		return strategyKeyID
	}
	return strategyKeyScan
}

// decodeHeader enforces the three-segment structure and decodes the header
// without verifying anything.
func decodeHeader(raw string) (*header, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, common.ErrTokenMalformed
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, common.ErrTokenMalformed
	}
	h := &header{}
	if err := json.Unmarshal(b, h); err != nil {
		return nil, common.ErrTokenMalformed
	}
	return h, nil
}

func (v *Verifier) verifySymmetric(raw string, kind Kind) (*Claims, error) {
	secret := v.accessSecret
	if kind == KindRefresh {
		secret = v.refreshSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.algorithm {
			return nil, common.ErrUnsupportedAlgorithm
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{v.algorithm}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, mapJWTError(err)
	}
	return claims, nil
}

// verifyWithRegistry implements the asymmetric path: try the key named by
// the header kid first, then fall back to brute-forcing every stored key.
// The fallback tolerates kid mismatches between the signer and the registry.
func (v *Verifier) verifyWithRegistry(ctx context.Context, raw string, h *header) (*Claims, error) {
	sig, err := jose.ParseSigned(raw)
	if err != nil {
		return nil, common.ErrTokenMalformed
	}

	triedID := ""
	attempted := false

	if h.Kid != "" {
		rec, err := v.keys.GetByID(ctx, h.Kid)
		switch {
		case err == nil:
			triedID = rec.ID
			claims, ok, tried := tryKeyRecord(sig, rec, h.Kid)
			attempted = attempted || tried
			if ok {
				return claims, nil
			}
		case !errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("%w: %v", common.ErrorUpstreamUnavailable, err)
		}
	}

	all, err := v.keys.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUpstreamUnavailable, err)
	}
	for i := range all {
		if all[i].ID == triedID {
			continue
		}
		claims, ok, tried := tryKeyRecord(sig, &all[i], h.Kid)
		attempted = attempted || tried
		if ok {
			return claims, nil
		}
	}

	if !attempted {
		return nil, common.ErrKeyNotFound
	}
	return nil, common.ErrSignatureInvalid
}

// tryKeyRecord attempts every candidate key inside one registry row. tried
// reports whether at least one usable key was found in the material.
func tryKeyRecord(sig *jose.JSONWebSignature, rec *models.SigningKey, tokenKid string) (claims *Claims, ok bool, tried bool) {
	for _, key := range verificationKeys(rec.PublicKey, tokenKid) {
		tried = true
		payload, err := sig.Verify(key)
		if err != nil {
			continue
		}
		c := &Claims{}
		if err := json.Unmarshal(payload, c); err != nil {
			continue
		}
		return c, true, tried
	}
	return nil, false, tried
}

// checkClaims applies the claim rules shared by both paths: expiry in the
// future, a present jti, a resolvable subject, and a kind matching what the
// caller expects.
func (v *Verifier) checkClaims(claims *Claims, kind Kind) error {
	if claims.ExpiresAt == nil || claims.ID == "" {
		return common.ErrTokenMalformed
	}
	if !claims.ExpiresAt.After(time.Now()) {
		return common.ErrTokenExpired
	}
	if _, err := claims.ResolveSubject(); err != nil {
		return err
	}
	if claims.Kind != string(kind) {
		return common.ErrWrongTokenKind
	}
	return nil
}

// mapJWTError normalizes golang-jwt errors into our taxonomy.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, common.ErrUnsupportedAlgorithm):
		return common.ErrUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return common.ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return common.ErrTokenMalformed
	default:
		return common.ErrSignatureInvalid
	}
}
