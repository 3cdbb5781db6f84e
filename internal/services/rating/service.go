// Package rating implements Elo rating settlement for completed games.
package rating

import (
	"math"

	"github.com/mcoot/chessgame-go/internal/model"
)

// K is the maximum rating change for a single game
const K = 32

// Score values for a single game
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// Expected returns the expected score of a player against an opponent
func Expected(rating, opponent int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponent-rating)/400))
}

// Update returns the player's new rating after scoring score against opponent
func Update(rating, opponent int, score float64) int {
	return int(math.Round(float64(rating) + K*(score-Expected(rating, opponent))))
}

// Settlement holds the post-game ratings of both sides
type Settlement struct {
	White int
	Black int
}

// Settle computes new ratings for both sides of a completed game.
// Both updates use the pre-game ratings.
func Settle(white, black int, winner model.Winner) Settlement {
	whiteScore, blackScore := scores(winner)
	return Settlement{
		White: Update(white, black, whiteScore),
		Black: Update(black, white, blackScore),
	}
}

func scores(winner model.Winner) (white, black float64) {
	switch winner {
	case model.WinnerWhite:
		return ScoreWin, ScoreLoss
	case model.WinnerBlack:
		return ScoreLoss, ScoreWin
	default:
		return ScoreDraw, ScoreDraw
	}
}
