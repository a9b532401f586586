package models

import "time"

// Session models device-level presence: one row per login/device. It is
// independent of individual JWT records — a token can be revoked without
// killing its session and vice versa.
type Session struct {
	SessionID string
	UserID    string
	// TokenID links the session to the credential that opened it.
	TokenID        string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastAccessedAt time.Time
	UserAgent      string
	IPAddress      string
}

// Active reports whether the session has not yet expired at now.
func (s *Session) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}
