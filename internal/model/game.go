package model

import "time"

// GameID uniquely identifies a game. IDs are assigned by storage and strictly increase.
type GameID int64

// Color is the side a participant plays
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Opposite returns the other side
func (c Color) Opposite() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// GameStatus represents the life cycle of a game
type GameStatus string

const (
	GameStatusOngoing   GameStatus = "ongoing"
	GameStatusCompleted GameStatus = "completed"
)

// Winner records how a completed game ended
type Winner string

const (
	WinnerNone  Winner = ""
	WinnerWhite Winner = "white"
	WinnerBlack Winner = "black"
	WinnerDraw  Winner = "draw"
)

// Participant is one side of a game
type Participant struct {
	Username  string
	SessionID SessionID
}

// Game is the authoritative record of a single game
type Game struct {
	ID    GameID
	White Participant
	Black Participant

	// Position is the authoritative board state in FEN
	Position string

	Status GameStatus
	Winner Winner // set exactly once, when Status becomes completed

	CreatedAt time.Time
}

// Participant returns the participant playing the given color
func (g *Game) Participant(c Color) Participant {
	if c == ColorWhite {
		return g.White
	}
	return g.Black
}

// ColorOf returns the color played by the given session, if it plays in this game
func (g *Game) ColorOf(username string, sessionID SessionID) (Color, bool) {
	switch {
	case g.White.Username == username && g.White.SessionID == sessionID:
		return ColorWhite, true
	case g.Black.Username == username && g.Black.SessionID == sessionID:
		return ColorBlack, true
	}
	return "", false
}

// HasSession reports whether the session plays in this game
func (g *Game) HasSession(sessionID SessionID) bool {
	return g.White.SessionID == sessionID || g.Black.SessionID == sessionID
}

// IsOngoing returns true until the game has been completed
func (g *Game) IsOngoing() bool {
	return g.Status == GameStatusOngoing
}
