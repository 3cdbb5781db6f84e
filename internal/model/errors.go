package model

import "errors"

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Queue errors
	ErrAlreadyQueued = errors.New("player is already queued")

	// Game errors
	ErrGameNotFound    = errors.New("game not found")
	ErrGameComplete    = errors.New("game is already complete")
	ErrIllegalMove     = errors.New("illegal move")
	ErrNotParticipant  = errors.New("player is not a participant in this game")
	ErrAlreadyInGame   = errors.New("player already has a game in progress")
	ErrInvalidPosition = errors.New("invalid position")
)
