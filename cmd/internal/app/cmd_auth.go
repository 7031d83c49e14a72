package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"debtease/cmd/internal/api"
)

func (c *cli) newLoginCmd() *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and save the session",
		Args:  cobra.ExactArgs(1),
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, args []string) error {
			password, err := c.readPassword(passwordStdin)
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}

			claims, err := c.app.Client().Login(ctx, args[0], password)
			if api.Classify(err) == api.KindAuth {
				return errors.New("unauthorized: wrong username or password")
			}
			if err != nil {
				return err
			}
			c.printf("Signed in as %s (%s), session expires %s\n",
				claims.Subject, strings.ToLower(string(claims.Role)), humanize.Time(claims.ExpiresAt))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func (c *cli) readPassword(fromStdin bool) (string, error) {
	if f, ok := c.in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(c.errOut, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(c.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := readLine(c.in)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			user := c.app.Session().Username()
			if err := c.app.Client().Logout(ctx); err != nil {
				c.app.Logger().Warn("session.logout.server", "err", err)
			}
			if user == "" {
				c.printf("No session to end.\n")
				return nil
			}
			c.printf("Signed out %s.\n", user)
			return nil
		}),
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: c.action(func(_ context.Context, _ *cobra.Command, _ []string) error {
			claims, ok := c.app.Session().Claims()
			if !ok {
				return ErrNotSignedIn
			}
			state := "valid"
			if c.app.Session().IsExpired() {
				state = "expired, refreshed on next call"
			}
			c.printf("user:    %s\nrole:    %s\nexpires: %s (%s, %s)\n",
				claims.Subject, claims.Role,
				claims.ExpiresAt.Local().Format(time.DateTime), humanize.Time(claims.ExpiresAt), state)
			return nil
		}),
	}
}

func (c *cli) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: c.action(func(_ context.Context, _ *cobra.Command, _ []string) error {
			c.printf("%s", c.app.Config())
			return nil
		}),
	}
}
