// Package common defines shared constants and sentinel errors used across
// the TodoVault server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// ErrorUpstreamUnavailable indicates a storage failure while issuing or
	// verifying a token. Verification treats it as fatal (fail closed).
	ErrorUpstreamUnavailable = errors.New("upstream unavailable")

	// Token verification taxonomy. Each failure stays distinguishable
	// internally; boundaries collapse all of them into one generic message
	// so callers cannot probe which check failed.
	ErrTokenMalformed        = errors.New("malformed token")
	ErrUnsupportedAlgorithm  = errors.New("unsupported signing algorithm")
	ErrKeyNotFound           = errors.New("no key verifies the token")
	ErrSignatureInvalid      = errors.New("invalid token signature")
	ErrTokenExpired          = errors.New("token expired")
	ErrMissingSubjectClaim   = errors.New("token missing subject claim")
	ErrSubjectClaimsConflict = errors.New("subject claims conflict")
	ErrWrongTokenKind        = errors.New("unexpected token kind")
	ErrTokenRevoked          = errors.New("token revoked")

	// Issuance errors (trusted administrative path).
	ErrInvalidSubject = errors.New("invalid subject")
	ErrUserInactive   = errors.New("user account is not active")
)
