package rules

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessgame-go/internal/model"
)

type ChessSuite struct {
	suite.Suite
	engine *Chess
}

func TestChessSuite(t *testing.T) {
	suite.Run(t, new(ChessSuite))
}

func (s *ChessSuite) SetupTest() {
	s.engine = NewChess()
}

// play applies a sequence of moves from the initial position
func (s *ChessSuite) play(moves ...string) string {
	pos := s.engine.InitialPosition()
	for _, m := range moves {
		next, err := s.engine.ApplyMove(pos, m)
		s.Require().NoError(err, "move %s", m)
		pos = next
	}
	return pos
}

func (s *ChessSuite) TestInitialPosition() {
	pos := s.engine.InitialPosition()
	s.Equal("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", pos)

	turn, err := s.engine.Turn(pos)
	s.Require().NoError(err)
	s.Equal(model.ColorWhite, turn)
}

func (s *ChessSuite) TestLegalMovesFromStart() {
	moves, err := s.engine.LegalMoves(s.engine.InitialPosition())
	s.Require().NoError(err)
	s.Len(moves, 20)
	s.Contains(moves, "e2e4")
	s.Contains(moves, "g1f3")
	s.NotContains(moves, "e7e5")
}

func (s *ChessSuite) TestApplyMoveSwitchesTurn() {
	pos := s.play("e2e4")

	turn, err := s.engine.Turn(pos)
	s.Require().NoError(err)
	s.Equal(model.ColorBlack, turn)

	outcome, err := s.engine.Outcome(pos)
	s.Require().NoError(err)
	s.Equal(OutcomeOngoing, outcome)
}

func (s *ChessSuite) TestApplyMoveRejectsIllegalMove() {
	_, err := s.engine.ApplyMove(s.engine.InitialPosition(), "e2e5")
	s.ErrorIs(err, model.ErrIllegalMove)
}

func (s *ChessSuite) TestApplyMoveRejectsOpponentsMove() {
	_, err := s.engine.ApplyMove(s.engine.InitialPosition(), "e7e5")
	s.ErrorIs(err, model.ErrIllegalMove)
}

func (s *ChessSuite) TestApplyMoveRejectsGarbage() {
	_, err := s.engine.ApplyMove(s.engine.InitialPosition(), "not a move")
	s.ErrorIs(err, model.ErrIllegalMove)
}

func (s *ChessSuite) TestInvalidPosition() {
	_, err := s.engine.LegalMoves("not a fen")
	s.ErrorIs(err, model.ErrInvalidPosition)

	_, err = s.engine.Turn("not a fen")
	s.ErrorIs(err, model.ErrInvalidPosition)
}

func (s *ChessSuite) TestFoolsMateIsBlackWin() {
	pos := s.play("f2f3", "e7e5", "g2g4", "d8h4")

	outcome, err := s.engine.Outcome(pos)
	s.Require().NoError(err)
	s.Equal(OutcomeBlackWins, outcome)
	s.True(outcome.IsOver())
	s.Equal(model.WinnerBlack, outcome.Winner())
}

func (s *ChessSuite) TestStalemateIsDraw() {
	outcome, err := s.engine.Outcome("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	s.Require().NoError(err)
	s.Equal(OutcomeDraw, outcome)
	s.Equal(model.WinnerDraw, outcome.Winner())
}

func (s *ChessSuite) TestOutcomeWinnerMapping() {
	s.Equal(model.WinnerWhite, OutcomeWhiteWins.Winner())
	s.Equal(model.WinnerNone, OutcomeOngoing.Winner())
	s.False(OutcomeOngoing.IsOver())
}
