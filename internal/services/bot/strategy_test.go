package bot_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessgame-go/internal/dependencies/mocks"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/rules"
	"github.com/mcoot/chessgame-go/internal/services/bot"
)

// White to move and checkmated by fool's mate
const whiteMated = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"

type StrategySuite struct {
	suite.Suite
	engine     *rules.Chess
	mockRandom *mocks.MockRandom
	strategy   *bot.RandomStrategy
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategySuite))
}

func (s *StrategySuite) SetupTest() {
	s.engine = rules.NewChess()
	s.mockRandom = mocks.NewMockRandom()
	s.strategy = bot.NewRandomStrategy(s.engine, s.mockRandom)
}

func (s *StrategySuite) TestChooseMove_PicksIndexedLegalMove() {
	start := s.engine.InitialPosition()
	legal, err := s.engine.LegalMoves(start)
	s.Require().NoError(err)
	s.Require().Len(legal, 20)

	s.mockRandom.QueueIntn(0, 7, 19)
	for _, i := range []int{0, 7, 19} {
		move, err := s.strategy.ChooseMove(start)
		s.Require().NoError(err)
		s.Equal(legal[i], move)
	}
}

func (s *StrategySuite) TestChooseMove_MoveIsAccepted() {
	position := s.engine.InitialPosition()
	for range 10 {
		move, err := s.strategy.ChooseMove(position)
		s.Require().NoError(err)
		position, err = s.engine.ApplyMove(position, move)
		s.Require().NoError(err)
	}
	turn, err := s.engine.Turn(position)
	s.Require().NoError(err)
	s.Equal(model.ColorWhite, turn)
}

func (s *StrategySuite) TestChooseMove_NoMovesWhenMated() {
	_, err := s.strategy.ChooseMove(whiteMated)
	s.ErrorIs(err, bot.ErrNoMoves)
}

func (s *StrategySuite) TestChooseMove_InvalidPosition() {
	_, err := s.strategy.ChooseMove("not a position")
	s.ErrorIs(err, model.ErrInvalidPosition)
}

func (s *StrategySuite) TestStrategies() {
	strategies := bot.Strategies(s.engine, s.mockRandom)
	s.Contains(strategies, "random")
}
