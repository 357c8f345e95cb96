package models

import (
	"time"
)

// SSOSession is a tracked, revocable login spanning client applications.
// RevokedAt is set by logout or logout-all and never cleared.
type SSOSession struct {
	SessionID      string
	UserID         string
	Token          string // the signed session JWT
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
	RevokedAt      *time.Time
}

// Revoked reports whether the session has been logged out.
func (s *SSOSession) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *SSOSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
