package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorOpposite(t *testing.T) {
	assert.Equal(t, ColorBlack, ColorWhite.Opposite())
	assert.Equal(t, ColorWhite, ColorBlack.Opposite())
}

func TestGameColorOf(t *testing.T) {
	g := &Game{
		White: Participant{Username: "alice", SessionID: "s1"},
		Black: Participant{Username: "bob", SessionID: "s2"},
	}

	c, ok := g.ColorOf("alice", "s1")
	assert.True(t, ok)
	assert.Equal(t, ColorWhite, c)

	c, ok = g.ColorOf("bob", "s2")
	assert.True(t, ok)
	assert.Equal(t, ColorBlack, c)

	// Right user, stale session
	_, ok = g.ColorOf("alice", "s-old")
	assert.False(t, ok)

	_, ok = g.ColorOf("carol", "s3")
	assert.False(t, ok)
}

func TestGameParticipant(t *testing.T) {
	g := &Game{
		White: Participant{Username: "alice", SessionID: "s1"},
		Black: Participant{Username: "bob", SessionID: "s2"},
	}
	assert.Equal(t, "alice", g.Participant(ColorWhite).Username)
	assert.Equal(t, "bob", g.Participant(ColorBlack).Username)
	assert.True(t, g.HasSession("s2"))
	assert.False(t, g.HasSession("s3"))
}
