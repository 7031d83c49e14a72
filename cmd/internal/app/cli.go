package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
)

// ErrNotSignedIn is returned by commands that need a session when none exists.
var ErrNotSignedIn = errors.New("not signed in: run `debtease login`")

// cli carries per-invocation state shared by all commands.
type cli struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	envFile string

	app *App
}

// Run is the entrypoint used by cmd/debtease. It returns an error instead of
// exiting so deferred cleanup runs.
func Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return NewRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree reading from in and printing to out.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "debtease",
		Short:         "DebtEase command-line client",
		Long:          "debtease signs in to a DebtEase server, manages debt cases and profiles, and follows case enrichment in real time.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading DEBTEASE_* variables")
	pf.String("api-url", "", "API base URL (DEBTEASE_API_BASE_URL)")
	pf.String("ws-url", "", "realtime WebSocket URL (DEBTEASE_WS_URL)")
	pf.String("log-level", "", "log level: debug, info, warn, error (DEBTEASE_LOG_LEVEL)")
	pf.String("log-format", "", "log format: pretty, text, json (DEBTEASE_LOG_FORMAT)")
	pf.String("session-file", "", "session file (DEBTEASE_SESSION_FILE)")
	pf.String("redis-url", "", "store the session in Redis instead of a file (DEBTEASE_SESSION_REDIS_URL)")
	pf.String("profile", "", "session profile name used as the Redis key suffix (DEBTEASE_SESSION_PROFILE)")
	pf.Duration("http-timeout", 0, "HTTP request timeout (DEBTEASE_HTTP_TIMEOUT)")
	pf.Duration("ws-timeout", 0, "realtime connect timeout (DEBTEASE_WS_CONNECT_TIMEOUT)")

	root.AddCommand(
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newConfigCmd(),
		c.newCasesCmd(),
		c.newProfileCmd(),
		c.newWatchCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if c.app != nil {
		return nil
	}
	cfg, err := LoadConfig(c.envFile, cmd.Flags())
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat, c.errOut)
	a, err := New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) teardown(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close(ctx)
	c.app = nil
	return err
}

type actionFunc func(ctx context.Context, cmd *cobra.Command, args []string) error

// action adapts fn into a RunE that explains API errors and always closes
// the App.
func (c *cli) action(fn actionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		err := c.explain(ctx, fn(ctx, cmd, args))
		if cerr := c.teardown(ctx); err == nil {
			err = cerr
		}
		return err
	}
}

// requireSession fails fast when no credential is held.
func (c *cli) requireSession() (session.Role, string, error) {
	st := c.app.Session()
	if !st.HasToken() {
		return "", "", ErrNotSignedIn
	}
	return st.Role(), st.Username(), nil
}

func (c *cli) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// explain turns a normalized error into the message shown to the user. An
// unauthorized response also drops the local session.
func (c *cli) explain(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	apiErr, ok := api.AsAPIError(err)
	if !ok {
		return err
	}

	switch api.Classify(err) {
	case api.KindAuth:
		if apiErr.StatusCode == 401 {
			c.app.Client().DropSession(ctx)
			return errors.New("unauthorized: your session has ended, run `debtease login`")
		}
		return fmt.Errorf("forbidden: %s accounts cannot do this", strings.ToLower(string(c.app.Session().Role())))
	case api.KindValidation:
		if fields, ok := apiErr.FieldErrors(); ok {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			var b strings.Builder
			b.WriteString("validation failed:")
			for _, k := range keys {
				fmt.Fprintf(&b, "\n  %s: %s", k, fields[k])
			}
			return errors.New(b.String())
		}
	case api.KindTransport:
		return fmt.Errorf("network error: cannot reach %s", c.app.Client().BaseURL())
	}

	if apiErr.Description != "" {
		return fmt.Errorf("%s (%d): %s", apiErr.Message, apiErr.StatusCode, apiErr.Description)
	}
	return fmt.Errorf("%s (%d)", apiErr.Message, apiErr.StatusCode)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
