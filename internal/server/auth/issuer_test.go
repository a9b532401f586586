package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/todovault/todovault/internal/common"
)

func newTestIssuer() *Issuer {
	return NewIssuer([]byte("access-secret"), []byte("refresh-secret"), 30*time.Minute, 24*time.Hour)
}

func TestIssue_AccessToken(t *testing.T) {
	t.Parallel()

	signed, claims, err := newTestIssuer().Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if signed == "" {
		t.Fatal("empty token")
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %q", claims.Subject)
	}
	if claims.Kind != string(KindAccess) {
		t.Fatalf("unexpected kind: %q", claims.Kind)
	}
	if claims.ID == "" {
		t.Fatal("missing jti")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Fatal("expiry is not after issuance")
	}
	if d := time.Until(claims.ExpiresAt.Time); d > 30*time.Minute {
		t.Fatalf("access token lives too long: %v", d)
	}
}

func TestIssue_RefreshTokenUsesRefreshTTL(t *testing.T) {
	t.Parallel()

	_, claims, err := newTestIssuer().Issue("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	d := time.Until(claims.ExpiresAt.Time)
	if d < 23*time.Hour || d > 24*time.Hour {
		t.Fatalf("unexpected refresh lifetime: %v", d)
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	t.Parallel()

	_, _, err := newTestIssuer().Issue("", KindAccess)
	if !errors.Is(err, common.ErrInvalidSubject) {
		t.Fatalf("want ErrInvalidSubject, got %v", err)
	}
}

func TestIssue_UnknownKind(t *testing.T) {
	t.Parallel()

	_, _, err := newTestIssuer().Issue("user-1", Kind("session"))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestIssue_DistinctTokenIDs(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer()
	_, first, err := iss.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	_, second, err := iss.Issue("user-1", KindAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("two tokens share a jti")
	}
}

func TestIssue_KindsUseSeparateSecrets(t *testing.T) {
	t.Parallel()

	iss := newTestIssuer()
	v := NewVerifier("HS256", []byte("access-secret"), []byte("refresh-secret"), nil)

	refresh, _, err := iss.Issue("user-1", KindRefresh)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// a refresh token presented on the access path must fail the signature
	// check, not just the kind check
	_, err = v.Verify(context.Background(), refresh, KindAccess)
	if !errors.Is(err, common.ErrSignatureInvalid) {
		t.Fatalf("want ErrSignatureInvalid, got %v", err)
	}
}
