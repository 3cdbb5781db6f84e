package bot

import (
	"github.com/mcoot/chessgame-go/internal/dependencies/random"
	"github.com/mcoot/chessgame-go/internal/rules"
)

// RandomStrategy picks uniformly among the legal moves
type RandomStrategy struct {
	rules  rules.Engine
	random random.Random
}

// NewRandomStrategy creates a new RandomStrategy
func NewRandomStrategy(engine rules.Engine, rnd random.Random) *RandomStrategy {
	return &RandomStrategy{rules: engine, random: rnd}
}

// ChooseMove returns a random legal move for the side to move
func (s *RandomStrategy) ChooseMove(position string) (string, error) {
	moves, err := s.rules.LegalMoves(position)
	if err != nil {
		return "", err
	}
	if len(moves) == 0 {
		return "", ErrNoMoves
	}
	return moves[s.random.Intn(len(moves))], nil
}

// Strategies returns every available strategy by name
func Strategies(engine rules.Engine, rnd random.Random) map[string]Strategy {
	return map[string]Strategy{
		"random": NewRandomStrategy(engine, rnd),
	}
}
