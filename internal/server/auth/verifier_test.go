package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/todovault/todovault/internal/common"
	"github.com/todovault/todovault/internal/server/models"
)

// fakeKeySource is an in-memory key registry recording how it was consulted.
type fakeKeySource struct {
	keys         []models.SigningKey
	listAllCalls int
	failWith     error
}

func (f *fakeKeySource) GetByID(_ context.Context, id string) (*models.SigningKey, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for i := range f.keys {
		if f.keys[i].ID == id {
			return &f.keys[i], nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeKeySource) ListAll(_ context.Context) ([]models.SigningKey, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.listAllCalls++
	return f.keys, nil
}

func accessClaims(userID string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
		Kind: string(KindAccess),
	}
}

func genECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating ecdsa key: %v", err)
	}
	return priv
}

func signES256(t *testing.T, priv *ecdsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("signing es256 token: %v", err)
	}
	return signed
}

func signHS256(t *testing.T, secret []byte, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing hs256 token: %v", err)
	}
	return signed
}

func jwkSetJSON(t *testing.T, kid string, pub *ecdsa.PublicKey, extra ...jose.JSONWebKey) string {
	t.Helper()
	set := jose.JSONWebKeySet{
		Keys: append([]jose.JSONWebKey{{Key: pub, KeyID: kid, Algorithm: "ES256", Use: "sig"}}, extra...),
	}
	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshaling jwk set: %v", err)
	}
	return string(b)
}

func singleJWKJSON(t *testing.T, kid string, pub *ecdsa.PublicKey) string {
	t.Helper()
	k := jose.JSONWebKey{Key: pub, KeyID: kid, Algorithm: "ES256", Use: "sig"}
	b, err := k.MarshalJSON()
	if err != nil {
		t.Fatalf("marshaling jwk: %v", err)
	}
	return string(b)
}

func pemPublicKey(t *testing.T, pub *ecdsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshaling public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
)

func newSymmetricVerifier() *Verifier {
	return NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), &fakeKeySource{})
}

// ---- symmetric path ----

func TestVerify_SymmetricRoundTrip(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte(testAccessSecret), []byte(testRefreshSecret), 30*time.Minute, 24*time.Hour)
	signed, _, err := iss.Issue("u1", KindAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := newSymmetricVerifier().Verify(context.Background(), signed, KindAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	sub, err := claims.ResolveSubject()
	if err != nil {
		t.Fatalf("ResolveSubject error: %v", err)
	}
	if sub != "u1" {
		t.Fatalf("subject mismatch: got %q want %q", sub, "u1")
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	claims := accessClaims("u1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	signed := signHS256(t, []byte(testAccessSecret), claims)

	_, err := newSymmetricVerifier().Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestVerify_MalformedSegments(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "onlyonepart", "two.parts", "a.b.c.d", "not.a.jwt"} {
		if _, err := newSymmetricVerifier().Verify(context.Background(), raw, KindAccess); !errors.Is(err, common.ErrTokenMalformed) {
			t.Fatalf("raw %q: want ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestVerify_TamperedSignatureSymmetric(t *testing.T) {
	t.Parallel()

	signed := signHS256(t, []byte(testAccessSecret), accessClaims("u1"))
	tampered := flipSignatureByte(t, signed)

	_, err := newSymmetricVerifier().Verify(context.Background(), tampered, KindAccess)
	if !errors.Is(err, common.ErrSignatureInvalid) {
		t.Fatalf("want ErrSignatureInvalid, got %v", err)
	}
}

func TestVerify_AlgorithmNoneRejected(t *testing.T) {
	t.Parallel()

	headerJSON, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payloadJSON, _ := json.Marshal(accessClaims("u1"))
	raw := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payloadJSON) + "."

	_, err := newSymmetricVerifier().Verify(context.Background(), raw, KindAccess)
	if !errors.Is(err, common.ErrUnsupportedAlgorithm) {
		t.Fatalf("want ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestVerify_WrongSymmetricAlgorithmNotAccepted(t *testing.T) {
	t.Parallel()

	// HS384 is not the configured algorithm, so the token is routed to the
	// asymmetric path, where no registry key can verify it
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, accessClaims("u1")).SignedString([]byte(testAccessSecret))
	if err != nil {
		t.Fatalf("signing hs384 token: %v", err)
	}

	_, err = newSymmetricVerifier().Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
}

func TestVerify_KindCrossCheck(t *testing.T) {
	t.Parallel()

	// same secret for both kinds so only the kind check can fail
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testAccessSecret), &fakeKeySource{})

	claims := accessClaims("u1")
	claims.Kind = string(KindRefresh)
	signed := signHS256(t, []byte(testAccessSecret), claims)

	_, err := v.Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrWrongTokenKind) {
		t.Fatalf("want ErrWrongTokenKind, got %v", err)
	}
}

func TestVerify_SubjectClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sub     string
		legacy  string
		wantSub string
		wantErr error
	}{
		{name: "sub only", sub: "u1", wantSub: "u1"},
		{name: "legacy only", legacy: "u2", wantSub: "u2"},
		{name: "both agree", sub: "u1", legacy: "u1", wantSub: "u1"},
		{name: "both disagree", sub: "u1", legacy: "u2", wantErr: common.ErrSubjectClaimsConflict},
		{name: "neither", wantErr: common.ErrMissingSubjectClaim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := accessClaims(tt.sub)
			claims.Subject = tt.sub
			claims.LegacyUserID = tt.legacy
			signed := signHS256(t, []byte(testAccessSecret), claims)

			got, err := newSymmetricVerifier().Verify(context.Background(), signed, KindAccess)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			sub, _ := got.ResolveSubject()
			if sub != tt.wantSub {
				t.Fatalf("subject mismatch: got %q want %q", sub, tt.wantSub)
			}
		})
	}
}

func TestVerify_MissingTokenID(t *testing.T) {
	t.Parallel()

	claims := accessClaims("u1")
	claims.ID = ""
	signed := signHS256(t, []byte(testAccessSecret), claims)

	_, err := newSymmetricVerifier().Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrTokenMalformed) {
		t.Fatalf("want ErrTokenMalformed, got %v", err)
	}
}

// ---- asymmetric path ----

func TestVerify_KidPriorityMatching(t *testing.T) {
	t.Parallel()

	k1, k2 := genECKey(t), genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "k1", PublicKey: jwkSetJSON(t, "k1", &k1.PublicKey)},
		{ID: "k2", PublicKey: jwkSetJSON(t, "k2", &k2.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, k2, "k2", accessClaims("u1"))

	claims, err := v.Verify(context.Background(), signed, KindAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if sub, _ := claims.ResolveSubject(); sub != "u1" {
		t.Fatalf("unexpected subject: %q", sub)
	}
	if keys.listAllCalls != 0 {
		t.Fatalf("kid match must not fall through to the scan path, ListAll called %d times", keys.listAllCalls)
	}
}

func TestVerify_FallbackScanNoKid(t *testing.T) {
	t.Parallel()

	k1, k2 := genECKey(t), genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "k1", PublicKey: singleJWKJSON(t, "k1", &k1.PublicKey)},
		{ID: "k2", PublicKey: singleJWKJSON(t, "k2", &k2.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, k2, "", accessClaims("u7"))

	claims, err := v.Verify(context.Background(), signed, KindAccess)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if sub, _ := claims.ResolveSubject(); sub != "u7" {
		t.Fatalf("unexpected subject: %q", sub)
	}
	if keys.listAllCalls != 1 {
		t.Fatalf("expected exactly one scan, got %d", keys.listAllCalls)
	}
}

func TestVerify_FallbackScanKidMismatch(t *testing.T) {
	t.Parallel()

	// signer's kid is unknown to the registry; the row id differs too, so
	// only the brute-force walk can find the key
	signer := genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "rotated-away", PublicKey: singleJWKJSON(t, "", &signer.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, signer, "some-stale-kid", accessClaims("u1"))

	if _, err := v.Verify(context.Background(), signed, KindAccess); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestVerify_JWKSetSkipsConflictingKid(t *testing.T) {
	t.Parallel()

	decoy, signer := genECKey(t), genECKey(t)
	// one row holding a set: a decoy under a different kid plus the real key
	set := jwkSetJSON(t, "k-real", &signer.PublicKey,
		jose.JSONWebKey{Key: &decoy.PublicKey, KeyID: "k-decoy", Algorithm: "ES256", Use: "sig"})
	keys := &fakeKeySource{keys: []models.SigningKey{{ID: "k-real", PublicKey: set}}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, signer, "k-real", accessClaims("u1"))

	if _, err := v.Verify(context.Background(), signed, KindAccess); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestVerify_PEMKeyRecord(t *testing.T) {
	t.Parallel()

	signer := genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "pem-1", PublicKey: pemPublicKey(t, &signer.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, signer, "", accessClaims("u1"))

	if _, err := v.Verify(context.Background(), signed, KindAccess); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestVerify_TamperedSignatureAsymmetric(t *testing.T) {
	t.Parallel()

	signer := genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "k1", PublicKey: singleJWKJSON(t, "k1", &signer.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, signer, "k1", accessClaims("u1"))
	tampered := flipSignatureByte(t, signed)

	_, err := v.Verify(context.Background(), tampered, KindAccess)
	if !errors.Is(err, common.ErrSignatureInvalid) {
		t.Fatalf("want ErrSignatureInvalid, got %v", err)
	}
}

func TestVerify_NoKeyVerifies(t *testing.T) {
	t.Parallel()

	signer, registered := genECKey(t), genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "k1", PublicKey: singleJWKJSON(t, "k1", &registered.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, signer, "", accessClaims("u1"))

	_, err := v.Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrSignatureInvalid) {
		t.Fatalf("want ErrSignatureInvalid, got %v", err)
	}
}

func TestVerify_EmptyRegistry(t *testing.T) {
	t.Parallel()

	signer := genECKey(t)
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), &fakeKeySource{})

	signed := signES256(t, signer, "", accessClaims("u1"))

	_, err := v.Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrKeyNotFound) {
		t.Fatalf("want ErrKeyNotFound, got %v", err)
	}
}

func TestVerify_RegistryUnavailable(t *testing.T) {
	t.Parallel()

	signer := genECKey(t)
	keys := &fakeKeySource{failWith: errors.New("connection refused")}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	signed := signES256(t, signer, "k1", accessClaims("u1"))

	_, err := v.Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrorUpstreamUnavailable) {
		t.Fatalf("want ErrorUpstreamUnavailable, got %v", err)
	}
}

func TestVerify_ExpiredAsymmetric(t *testing.T) {
	t.Parallel()

	signer := genECKey(t)
	keys := &fakeKeySource{keys: []models.SigningKey{
		{ID: "k1", PublicKey: singleJWKJSON(t, "k1", &signer.PublicKey)},
	}}
	v := NewVerifier("HS256", []byte(testAccessSecret), []byte(testRefreshSecret), keys)

	claims := accessClaims("u1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	signed := signES256(t, signer, "k1", claims)

	_, err := v.Verify(context.Background(), signed, KindAccess)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

// flipSignatureByte changes one byte inside the signature segment, keeping
// the token structurally valid.
func flipSignatureByte(t *testing.T, signed string) string {
	t.Helper()
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected segment count: %d", len(parts))
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decoding signature: %v", err)
	}
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)
	return strings.Join(parts, ".")
}
