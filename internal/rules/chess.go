package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/corentings/chess/v2"

	"github.com/mcoot/chessgame-go/internal/model"
)

// Chess implements Engine for standard chess
type Chess struct{}

// NewChess creates a chess rules engine
func NewChess() *Chess {
	return &Chess{}
}

// Ensure Chess implements Engine
var _ Engine = (*Chess)(nil)

func (c *Chess) InitialPosition() string {
	return chess.NewGame().FEN()
}

func (c *Chess) LegalMoves(position string) ([]string, error) {
	g, err := load(position)
	if err != nil {
		return nil, err
	}

	valid := g.ValidMoves()
	moves := make([]string, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, m.String())
	}
	return moves, nil
}

func (c *Chess) ApplyMove(position, move string) (string, error) {
	g, err := load(position)
	if err != nil {
		return "", err
	}

	move = strings.ToLower(strings.TrimSpace(move))
	legal := make([]string, 0, 32)
	for _, m := range g.ValidMoves() {
		legal = append(legal, m.String())
	}
	if !slices.Contains(legal, move) {
		return "", model.ErrIllegalMove
	}

	if err := g.PushNotationMove(move, chess.UCINotation{}, nil); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrIllegalMove, err)
	}
	return g.FEN(), nil
}

func (c *Chess) Outcome(position string) (Outcome, error) {
	g, err := load(position)
	if err != nil {
		return "", err
	}

	switch g.Outcome() {
	case chess.WhiteWon:
		return OutcomeWhiteWins, nil
	case chess.BlackWon:
		return OutcomeBlackWins, nil
	case chess.Draw:
		return OutcomeDraw, nil
	default:
		return OutcomeOngoing, nil
	}
}

func (c *Chess) Turn(position string) (model.Color, error) {
	g, err := load(position)
	if err != nil {
		return "", err
	}
	if g.Position().Turn() == chess.White {
		return model.ColorWhite, nil
	}
	return model.ColorBlack, nil
}

// load rebuilds a game from a FEN position
func load(position string) (*chess.Game, error) {
	opt, err := chess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPosition, err)
	}
	return chess.NewGame(opt), nil
}
