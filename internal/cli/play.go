package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/chessgame-go/internal/dependencies/random"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/rules"
	"github.com/mcoot/chessgame-go/internal/services/bot"
)

func newPlayCmd() *cobra.Command {
	var user, pass, botName string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Log in, find an opponent and play one game",
		Long: `Log in, join the matchmaking queue and play a game in the terminal.

Enter moves in UCI notation (e2e4, g1f3, e7e8q) when it is your turn.
The command exits when the game ends, the opponent disconnects or the
server shuts down. Press Ctrl+C to leave.

With --bot the moves are chosen automatically by the named strategy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var strategy bot.Strategy
			var in io.Reader = cmd.InOrStdin()
			if botName != "" {
				strategies := bot.Strategies(rules.NewChess(), random.New())
				var ok bool
				if strategy, ok = strategies[botName]; !ok {
					return fmt.Errorf("unknown bot strategy %q", botName)
				}
				in = nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := outputFor(cmd)
			session, err := dialAndLogin(ctx, out, user, pass)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			_, err = Play(ctx, session, in, strategy, out)
			if errors.Is(err, context.Canceled) {
				out.PrintMessage("Left the game")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().StringVar(&botName, "bot", "", "Let a bot strategy play the moves (random)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

// table is the client's copy of a game in progress
type table struct {
	id       int64
	color    model.Color
	position string
	engine   rules.Engine
}

func (t *table) toMove() model.Color {
	turn, err := t.engine.Turn(t.position)
	if err != nil {
		return ""
	}
	return turn
}

func (t *table) apply(move string) error {
	next, err := t.engine.ApplyMove(t.position, move)
	if err != nil {
		return err
	}
	t.position = next
	return nil
}

// Play queues a logged in session for a game and plays it, reading moves
// line by line from in. Moves entered before it is the player's turn are
// kept and sent in order once it is. When strategy is set it supplies a
// move whenever none was typed, and in may be nil. It returns when the game
// is over.
func Play(ctx context.Context, session *Session, in io.Reader, strategy bot.Strategy, out *Output) (*GameResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan protocol.Message)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := session.Receive(ctx)
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	var lines chan string
	if in != nil {
		lines = make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				select {
				case lines <- strings.TrimSpace(scanner.Text()):
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	if err := session.FindGame(); err != nil {
		return nil, err
	}
	out.PrintMessage("Waiting for an opponent...")

	p := &player{session: session, out: out, engine: rules.NewChess(), strategy: strategy}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err := <-recvErr:
			return nil, err

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if line == "" {
				continue
			}
			p.pending = append(p.pending, line)
			if err := p.next(); err != nil {
				return nil, err
			}

		case msg := <-msgs:
			result, err := p.handle(msg)
			if result != nil || err != nil {
				return result, err
			}
		}
	}
}

// player holds the client side of one game: the local copy of the board
// and the moves typed ahead
type player struct {
	session  *Session
	out      *Output
	engine   rules.Engine
	strategy bot.Strategy

	current  *table
	pending  []string
	awaiting bool
}

// handle applies one server message. A non-nil result ends the game.
func (p *player) handle(msg protocol.Message) (*GameResult, error) {
	switch m := msg.(type) {
	case protocol.GameStart:
		p.current = &table{
			id:       m.GameID,
			color:    model.Color(m.Color),
			position: m.Board,
			engine:   p.engine,
		}
		p.out.Print(GameStarted{GameID: m.GameID, Color: m.Color, Board: m.Board})

	case protocol.Update:
		if p.current == nil || m.GameID != p.current.id {
			return nil, nil
		}
		mover := p.current.toMove()
		if err := p.current.apply(m.Move); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", m.Move, err)
		}
		if mover == p.current.color {
			p.awaiting = false
		}
		p.out.Print(MovePlayed{GameID: m.GameID, By: string(mover), Move: m.Move, Board: p.current.position})

	case protocol.GameEnd:
		result := GameResult{GameID: m.GameID, Winner: m.Winner, Elo: m.Elo}
		p.out.Print(result)
		return &result, nil

	case protocol.OpponentDisconnected:
		result := GameResult{GameID: m.GameID, OpponentDisconnected: true}
		p.out.Print(result)
		return &result, nil

	case protocol.ServerShutdown:
		return nil, ErrServerShutdown

	case protocol.Error:
		err := &ServerError{Reason: m.Reason}
		if p.current == nil {
			return nil, err
		}
		p.awaiting = false
		p.out.PrintError(err)

	default:
		return nil, nil
	}
	return nil, p.next()
}

// next sends the oldest typed move if it is the player's turn. Without one
// it asks the bot, or prompts.
func (p *player) next() error {
	if p.current == nil || p.awaiting || p.current.toMove() != p.current.color {
		return nil
	}

	var move string
	switch {
	case len(p.pending) > 0:
		move = p.pending[0]
		p.pending = p.pending[1:]
	case p.strategy != nil:
		chosen, err := p.strategy.ChooseMove(p.current.position)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		move = chosen
	default:
		p.out.PrintMessage("Your move:")
		return nil
	}

	if err := p.session.Move(p.current.id, move); err != nil {
		return err
	}
	p.awaiting = true
	return nil
}
