// Package bot chooses moves for automated players.
package bot

import "errors"

// ErrNoMoves is returned when the side to move has no legal move
var ErrNoMoves = errors.New("no legal moves")

// Strategy defines how a bot chooses its move
type Strategy interface {
	// ChooseMove selects a move in UCI notation for the side to move
	ChooseMove(position string) (string, error)
}
