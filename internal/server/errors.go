package server

import (
	"errors"
	"fmt"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/services/auth"
)

// Reasons carried in error, register_failed and login_failed replies
const (
	ReasonInvalidFormat      = "Invalid message format"
	ReasonUnknownType        = "Unknown message type"
	ReasonUnauthorized       = "Unauthorized"
	ReasonUsernameExists     = "Username already exists"
	ReasonInvalidCredentials = "Invalid credentials"
	ReasonGameNotFound       = "Game not found"
	ReasonIllegalMove        = "Illegal move"
	ReasonGameOver           = "Game is over"
	ReasonNotParticipant     = "Not a participant in this game"
	ReasonAlreadyQueued      = "Already in queue"
	ReasonAlreadyInGame      = "Already in a game"
	ReasonInternal           = "Internal server error"
)

// reasonFor maps an error to the reason reported to the client.
// Anything unrecognised is reported as an internal error.
func reasonFor(err error) string {
	var missing *protocol.MissingFieldError
	if errors.As(err, &missing) {
		return fmt.Sprintf("Missing field: %s", missing.Field)
	}

	switch {
	case errors.Is(err, protocol.ErrInvalidFormat), errors.Is(err, protocol.ErrFrameTooLarge):
		return ReasonInvalidFormat
	case errors.Is(err, protocol.ErrUnknownType):
		return ReasonUnknownType
	case errors.Is(err, auth.ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, auth.ErrUsernameExists):
		return ReasonUsernameExists
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ReasonInvalidCredentials
	case errors.Is(err, model.ErrGameNotFound):
		return ReasonGameNotFound
	case errors.Is(err, model.ErrIllegalMove), errors.Is(err, model.ErrInvalidPosition):
		return ReasonIllegalMove
	case errors.Is(err, model.ErrGameComplete):
		return ReasonGameOver
	case errors.Is(err, model.ErrNotParticipant):
		return ReasonNotParticipant
	case errors.Is(err, model.ErrAlreadyQueued):
		return ReasonAlreadyQueued
	case errors.Is(err, model.ErrAlreadyInGame):
		return ReasonAlreadyInGame
	default:
		return ReasonInternal
	}
}
