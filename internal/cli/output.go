package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/corentings/chess/v2"
	"github.com/spf13/cobra"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

// outputFor writes to the command's configured streams
func outputFor(cmd *cobra.Command) *Output {
	return NewOutputTo(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// NewOutputTo creates an Output formatter writing to the given streams
func NewOutputTo(format string, w, errW io.Writer) *Output {
	return &Output{format: format, w: w, errW: errW}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.errW, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errW, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case LoginResult:
		o.printLoginResult(v)
	case Player:
		o.printPlayer(v)
	case Game:
		o.printGame(v)
	case GameList:
		o.printGameList(v)
	case Stats:
		o.printStats(v)
	case HealthResult:
		o.printHealthResult(v)
	case GameStarted:
		o.printGameStarted(v)
	case MovePlayed:
		o.printMovePlayed(v)
	case GameResult:
		o.printGameResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// LoginResult is what the server returns on login
type LoginResult struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Elo      int    `json:"elo"`
}

// Player response type (matches admin API)
type Player struct {
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"created_at"`
}

// Game response type (matches admin API)
type Game struct {
	ID        int64     `json:"id"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Board     string    `json:"board"`
	Status    string    `json:"status"`
	Winner    *string   `json:"winner"`
	CreatedAt time.Time `json:"created_at"`
}

// GameList response type
type GameList struct {
	Games []Game `json:"games"`
}

// Stats response type
type Stats struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
	Queued      int `json:"queued"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// GameStarted is printed when matchmaking pairs the player
type GameStarted struct {
	GameID int64  `json:"game_id"`
	Color  string `json:"color"`
	Board  string `json:"board"`
}

// MovePlayed is printed for every accepted move
type MovePlayed struct {
	GameID int64  `json:"game_id"`
	By     string `json:"by"`
	Move   string `json:"move"`
	Board  string `json:"board"`
}

// GameResult is how a played game ended
type GameResult struct {
	GameID               int64  `json:"game_id"`
	Winner               string `json:"winner,omitempty"`
	Elo                  int    `json:"elo,omitempty"`
	OpponentDisconnected bool   `json:"opponent_disconnected,omitempty"`
}

func (o *Output) printLoginResult(r LoginResult) {
	_, _ = fmt.Fprintf(o.w, "Logged in as %s (rating %d)\n", r.Username, r.Elo)
	_, _ = fmt.Fprintf(o.w, "Token: %s\n", r.Token)
}

func (o *Output) printPlayer(p Player) {
	status := "offline"
	if p.Online {
		status = "online"
	}
	_, _ = fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Username, status)
	_, _ = fmt.Fprintf(o.w, "Rating: %d\n", p.Rating)
	_, _ = fmt.Fprintf(o.w, "Joined: %s\n", p.CreatedAt.Format(time.RFC3339))
}

func (o *Output) printGame(g Game) {
	_, _ = fmt.Fprintf(o.w, "Game: %d\n", g.ID)
	_, _ = fmt.Fprintf(o.w, "White: %s\n", g.White)
	_, _ = fmt.Fprintf(o.w, "Black: %s\n", g.Black)
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", g.Status)
	if g.Winner != nil {
		_, _ = fmt.Fprintf(o.w, "Result: %s\n", resultText(*g.Winner))
	}
	_, _ = fmt.Fprintln(o.w)
	_, _ = fmt.Fprintln(o.w, drawBoard(g.Board))
}

func (o *Output) printGameList(l GameList) {
	if len(l.Games) == 0 {
		_, _ = fmt.Fprintln(o.w, "No games")
		return
	}
	for _, g := range l.Games {
		result := g.Status
		if g.Winner != nil {
			result = resultText(*g.Winner)
		}
		_, _ = fmt.Fprintf(o.w, "  #%d  %s vs %s  %s\n", g.ID, g.White, g.Black, result)
	}
}

func (o *Output) printStats(s Stats) {
	_, _ = fmt.Fprintf(o.w, "Connections: %d\n", s.Connections)
	_, _ = fmt.Fprintf(o.w, "Sessions: %d\n", s.Sessions)
	_, _ = fmt.Fprintf(o.w, "Queued: %d\n", s.Queued)
}

func (o *Output) printHealthResult(h HealthResult) {
	_, _ = fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

func (o *Output) printGameStarted(g GameStarted) {
	_, _ = fmt.Fprintf(o.w, "Game %d started, you play %s\n", g.GameID, g.Color)
	_, _ = fmt.Fprintln(o.w, drawBoard(g.Board))
}

func (o *Output) printMovePlayed(m MovePlayed) {
	_, _ = fmt.Fprintf(o.w, "%s played %s\n", m.By, m.Move)
	_, _ = fmt.Fprintln(o.w, drawBoard(m.Board))
}

func (o *Output) printGameResult(r GameResult) {
	if r.OpponentDisconnected {
		_, _ = fmt.Fprintf(o.w, "Game %d abandoned: your opponent disconnected\n", r.GameID)
		return
	}
	_, _ = fmt.Fprintf(o.w, "Game %d over: %s\n", r.GameID, resultText(r.Winner))
	_, _ = fmt.Fprintf(o.w, "Your rating: %d\n", r.Elo)
}

func resultText(winner string) string {
	switch winner {
	case "white", "black":
		return winner + " wins"
	case "draw":
		return "draw"
	default:
		return winner
	}
}

// drawBoard renders a FEN position as a text diagram, falling back to the
// raw FEN when it cannot be parsed
func drawBoard(fen string) string {
	opt, err := chess.FEN(fen)
	if err != nil {
		return fen
	}
	return chess.NewGame(opt).Position().Board().Draw()
}
