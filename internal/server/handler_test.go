package server

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/testutil"
)

func TestHandlerStateFollowsGameEvents(t *testing.T) {
	conn, _ := newPipeConn(t, 16)
	h := NewHandler(context.Background(), conn, Services{}, testutil.NopLogger())
	h.state = StateQueued

	assert.NoError(t, h.Send(protocol.GameStart{Color: "white", GameID: 7, Board: "start"}))
	assert.Equal(t, StateInGame, h.State())

	// Events for another game leave the state alone
	assert.NoError(t, h.Send(protocol.GameEnd{GameID: 8, Winner: "draw", Elo: 1200}))
	assert.Equal(t, StateInGame, h.State())

	assert.NoError(t, h.Send(protocol.GameEnd{GameID: 7, Winner: "white", Elo: 1216}))
	assert.Equal(t, StateAuthenticated, h.State())

	assert.NoError(t, h.Send(protocol.GameStart{Color: "black", GameID: 9, Board: "start"}))
	assert.Equal(t, StateInGame, h.State())

	assert.NoError(t, h.Send(protocol.OpponentDisconnected{GameID: 9}))
	assert.Equal(t, StateAuthenticated, h.State())
}

func TestHandlerIgnoresGameStartWhenLoggedOut(t *testing.T) {
	conn, _ := newPipeConn(t, 16)
	h := NewHandler(context.Background(), conn, Services{}, testutil.NopLogger())

	assert.NoError(t, h.Send(protocol.GameStart{Color: "white", GameID: 1, Board: "start"}))
	assert.Equal(t, StateUnauthenticated, h.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "queued", StateQueued.String())
	assert.Equal(t, "in_game", StateInGame.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestHandlerRecoversFromPanic(t *testing.T) {
	conn, client := newPipeConn(t, 16)
	go conn.writePump()
	logger, logs := testutil.CaptureLogger(slog.LevelInfo)

	// No auth service is wired, so handling register panics
	h := NewHandler(context.Background(), conn, Services{}, logger)
	payload, err := protocol.Encode(protocol.Register{Username: "alice", Password: "pw"})
	require.NoError(t, err)

	assert.NotPanics(t, func() { h.HandleFrame(payload) })
	assert.Equal(t, protocol.Error{Reason: ReasonInternal}, readMessage(t, client))

	entry := logs.Find(t, "panic recovered")
	require.NotNil(t, entry)
	assert.Equal(t, "protocol", entry["surface"])
	assert.Equal(t, "test", entry["conn_id"])
}
