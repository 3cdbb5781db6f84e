package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			session, err := Dial(ctx, cfg.ServerAddr)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			if err := session.Register(ctx, user, pass); err != nil {
				return fmt.Errorf("register failed: %w", err)
			}

			out := outputFor(cmd)
			out.PrintMessage(fmt.Sprintf("Registered %s", user))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and show the player's rating",
		Long: `Log in and print the player's rating. Sessions belong to the connection
that created them, so the session ends when this command exits. Use play to
log in and play a game on one connection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFor(cmd)
			session, err := dialAndLogin(cmd.Context(), out, user, pass)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			out.Print(LoginResult{
				Username: session.Username(),
				Token:    session.Token(),
				Elo:      session.Elo(),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

// dialAndLogin connects to the game server and logs in. The timeout only
// covers connecting and logging in; the session itself lives until closed.
func dialAndLogin(ctx context.Context, out *Output, user, pass string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	session, err := Dial(ctx, cfg.ServerAddr)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		out.PrintMessage(fmt.Sprintf("Connected to %s", cfg.ServerAddr))
	}

	if err := session.Login(ctx, user, pass); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return session, nil
}

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Player lookup commands",
	}

	cmd.AddCommand(newPlayerGetCmd())
	cmd.AddCommand(newPlayerGamesCmd())

	return cmd
}

func newPlayerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <username>",
		Short: "Show a player's rating and whether they are online",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Get(cmd.Context(), "/api/v1/players/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			out := outputFor(cmd)
			out.Print(result)
			return nil
		},
	}
}

func newPlayerGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games <username>",
		Short: "List the games a player took part in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result GameList

			if err := client.Get(cmd.Context(), "/api/v1/players/"+url.PathEscape(args[0])+"/games", &result); err != nil {
				return err
			}

			out := outputFor(cmd)
			out.Print(result)
			return nil
		},
	}
}
