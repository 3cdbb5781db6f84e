package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
	"github.com/mcoot/chessgame-go/internal/storage/storagetest"
)

func TestStorageConformance(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage { return New() },
	})
}

func TestFindGameReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateGame(ctx, &model.Game{Position: "start", Status: model.GameStatusOngoing})
	require.NoError(t, err)

	game, err := s.FindGame(ctx, id)
	require.NoError(t, err)
	game.Position = "mutated"

	stored, err := s.FindGame(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "start", stored.Position)
}
