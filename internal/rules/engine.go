// Package rules adapts a chess rules implementation to the shape the game
// coordinator consumes. Positions are FEN strings and moves are UCI strings.
package rules

import "github.com/mcoot/chessgame-go/internal/model"

// Outcome is the terminal-state verdict for a position
type Outcome string

const (
	OutcomeOngoing   Outcome = "ongoing"
	OutcomeWhiteWins Outcome = "white_wins"
	OutcomeBlackWins Outcome = "black_wins"
	OutcomeDraw      Outcome = "draw"
)

// IsOver returns true for any terminal outcome
func (o Outcome) IsOver() bool {
	return o != OutcomeOngoing
}

// Winner maps a terminal outcome to the recorded game winner
func (o Outcome) Winner() model.Winner {
	switch o {
	case OutcomeWhiteWins:
		return model.WinnerWhite
	case OutcomeBlackWins:
		return model.WinnerBlack
	case OutcomeDraw:
		return model.WinnerDraw
	default:
		return model.WinnerNone
	}
}

// Engine reports move legality and game results for positions
type Engine interface {
	// InitialPosition returns the starting position
	InitialPosition() string

	// LegalMoves lists the moves available to the side to move
	LegalMoves(position string) ([]string, error)

	// ApplyMove plays a move and returns the resulting position.
	// Returns model.ErrIllegalMove if the move is not legal.
	ApplyMove(position, move string) (string, error)

	// Outcome reports whether the position is terminal
	Outcome(position string) (Outcome, error)

	// Turn returns the side to move
	Turn(position string) (model.Color, error)
}
