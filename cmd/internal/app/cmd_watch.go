package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/debtcase"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

func (c *cli) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow enriched debt cases as the server pushes them",
		Args:  cobra.NoArgs,
		RunE: c.action(func(ctx context.Context, _ *cobra.Command, _ []string) error {
			role, user, err := c.requireSession()
			if err != nil {
				return err
			}

			if addr := c.app.Config().MetricsAddr; addr != "" {
				// ServeMetrics logs its own failures.
				go func() { _ = c.app.ServeMetrics(ctx, addr) }()
			}

			var initial []debtcase.DebtCase
			if role == session.RoleCreditor {
				if initial, err = c.app.Cases().ListMine(ctx); err != nil {
					return err
				}
			}
			feed := debtcase.NewFeed(initial)

			notify := func(dc debtcase.DebtCase, added bool) {
				if added {
					c.printf("+ case %d  %s  %s  %s\n", dc.ID, formatAmount(dc.AmountOwed), dc.Type.Label(), dc.Debtor.FullName())
					return
				}
				c.printf("! enriched %s case for %s already exists\n", dc.Type.Label(), dc.Debtor.FullName())
			}

			// Refresh first so the upgrade request carries a live token.
			if err := c.app.Client().Refresh(ctx); err != nil {
				return err
			}
			if _, err := c.app.Cases().Watch(ctx, c.app.Realtime(), user, feed, notify); err != nil {
				c.app.Logger().Warn("watch.connect.fail", "err", err)
			}
			c.app.Logger().Info("watch.start", "topics", c.app.Realtime().Topics(), "known", feed.Len())
			c.printf("Watching enriched cases for %s (%d known). Ctrl-C to stop.\n", user, feed.Len())

			var reload *debtcase.Feed
			if role == session.RoleCreditor {
				reload = feed
			}
			return c.keepConnected(ctx, reload)
		}),
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (DEBTEASE_METRICS_ADDR)")
	return cmd
}

// realtimeLink is the part of realtime.Manager that reconnection drives.
type realtimeLink interface {
	Lost() <-chan struct{}
	Connect(ctx context.Context) error
}

// reconnector restores a lost realtime connection with capped exponential
// backoff. An authentication failure ends the loop.
type reconnector struct {
	link     realtimeLink
	refresh  func(ctx context.Context) error
	restored func(ctx context.Context)
	log      *slog.Logger
	minDelay time.Duration
	maxDelay time.Duration
}

// keepConnected runs the reconnect loop for the app's realtime manager until
// ctx is done. feed, when set, is reloaded from the listing after every
// reconnect.
func (c *cli) keepConnected(ctx context.Context, feed *debtcase.Feed) error {
	r := reconnector{
		link:     c.app.Realtime(),
		refresh:  c.app.Client().Refresh,
		log:      c.app.Logger(),
		minDelay: minReconnectDelay,
		maxDelay: maxReconnectDelay,
	}
	if feed != nil {
		r.restored = func(ctx context.Context) {
			cases, err := c.app.Cases().ListMine(ctx)
			if err != nil {
				c.app.Logger().Warn("watch.reload.fail", "err", err)
				return
			}
			feed.Replace(cases)
			c.printf("Reconnected. %d cases, * marks recent pushes.\n", feed.Len())
			c.printCases(feed.Cases(), feed.Highlighted)
		}
	}
	return r.run(ctx)
}

func (r reconnector) run(ctx context.Context) error {
	delay := r.minDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.link.Lost():
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		err := r.refresh(ctx)
		if err == nil {
			err = r.link.Connect(ctx)
		}
		switch {
		case err == nil:
			delay = r.minDelay
			if r.restored != nil {
				r.restored(ctx)
			}
		case errors.Is(err, context.Canceled):
			return nil
		case api.Classify(err) == api.KindAuth:
			r.log.Error("watch.reconnect.unauthorized", "err", err)
			return err
		default:
			r.log.Warn("watch.reconnect.fail", "retry_in", delay, "err", err)
			delay = min(delay*2, r.maxDelay)
		}
	}
}
