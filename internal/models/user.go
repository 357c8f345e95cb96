package models

import (
	"time"
)

type User struct {
	ID              string
	Email           string // lowercase-normalized, unique
	Username        string // unique, 3-20 chars
	PasswordHash    string // empty unless loaded via a *WithPassword lookup
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
