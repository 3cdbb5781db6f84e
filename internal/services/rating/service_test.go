package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcoot/chessgame-go/internal/model"
)

func TestExpectedEqualRatings(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1200, 1200), 1e-9)
}

func TestExpectedIsSymmetric(t *testing.T) {
	assert.InDelta(t, 1.0, Expected(1400, 1200)+Expected(1200, 1400), 1e-9)
	assert.Greater(t, Expected(1400, 1200), 0.5)
}

func TestSettleWhiteWinsEqualRatings(t *testing.T) {
	got := Settle(1200, 1200, model.WinnerWhite)
	assert.Equal(t, Settlement{White: 1216, Black: 1184}, got)
}

func TestSettleBlackWinsEqualRatings(t *testing.T) {
	got := Settle(1200, 1200, model.WinnerBlack)
	assert.Equal(t, Settlement{White: 1184, Black: 1216}, got)
}

func TestSettleDrawEqualRatingsUnchanged(t *testing.T) {
	got := Settle(1500, 1500, model.WinnerDraw)
	assert.Equal(t, Settlement{White: 1500, Black: 1500}, got)
}

func TestSettleUpsetMovesMoreRating(t *testing.T) {
	// Underdog win: expected score for 1200 vs 1600 is ~0.0909
	got := Settle(1200, 1600, model.WinnerWhite)
	assert.Equal(t, 1229, got.White)
	assert.Equal(t, 1571, got.Black)
}

func TestSettleIsZeroSumWithinRounding(t *testing.T) {
	cases := []struct {
		white, black int
		winner       model.Winner
	}{
		{1200, 1200, model.WinnerWhite},
		{1350, 1180, model.WinnerBlack},
		{1800, 1100, model.WinnerDraw},
		{1000, 2000, model.WinnerWhite},
		{1234, 1266, model.WinnerDraw},
	}

	for _, tc := range cases {
		got := Settle(tc.white, tc.black, tc.winner)
		whiteDelta := got.White - tc.white
		blackDelta := got.Black - tc.black

		assert.InDelta(t, 0, whiteDelta+blackDelta, 1, "%d vs %d (%s)", tc.white, tc.black, tc.winner)
		switch tc.winner {
		case model.WinnerWhite:
			assert.Positive(t, whiteDelta)
			assert.Negative(t, blackDelta)
		case model.WinnerBlack:
			assert.Negative(t, whiteDelta)
			assert.Positive(t, blackDelta)
		}
	}
}

func TestSettleUsesPreGameRatings(t *testing.T) {
	// Swapping sides must mirror the result exactly
	a := Settle(1300, 1250, model.WinnerWhite)
	b := Settle(1250, 1300, model.WinnerBlack)
	assert.Equal(t, a.White, b.Black)
	assert.Equal(t, a.Black, b.White)
}
