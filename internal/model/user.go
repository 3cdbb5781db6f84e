package model

import "time"

// DefaultRating is the rating every newly registered user starts with
const DefaultRating = 1200

// SessionID identifies one authenticated connection
type SessionID string

// User is a registered account
type User struct {
	Username     string // unique, immutable
	PasswordHash string // bcrypt hash
	Rating       int

	// ActiveSessionID is the session most recently bound by a login (empty if none)
	ActiveSessionID SessionID

	CreatedAt time.Time
	UpdatedAt time.Time
}
