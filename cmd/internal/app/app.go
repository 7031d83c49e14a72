// Package app wires the DebtEase client: config, logging, session
// persistence, the API client, the realtime channel and the CLI on top.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"debtease/cmd/internal/api"
	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/debtcase"
	"debtease/cmd/internal/metrics"
	"debtease/cmd/internal/profile"
	"debtease/cmd/internal/realtime"
)

// App owns every long-lived dependency of one CLI invocation.
type App struct {
	cfg Config
	log *slog.Logger

	metrics   *metrics.Metrics
	session   *session.Store
	persister session.Persister
	client    *api.Client
	realtime  *realtime.Manager

	cases    *debtcase.Service
	profiles *profile.Service

	closeOnce sync.Once
	closeErr  error
}

// New builds an App and restores any persisted session.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mx := metrics.New()

	persister, err := session.NewPersister(cfg.Session())
	if err != nil {
		return nil, fmt.Errorf("session persister: %w", err)
	}

	store := session.NewStore()
	hc := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: &api.LoggingTransport{Log: log},
	}
	client, err := api.NewClient(api.Options{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: hc,
		Session:    store,
		Persister:  persister,
		Logger:     log,
		Metrics:    mx,
	})
	if err != nil {
		closePersister(persister)
		return nil, err
	}

	if err := client.RestoreSession(ctx); err != nil {
		log.Warn("session.restore.fail", "err", err)
	}

	dialer := &realtime.StompDialer{
		URL:            cfg.WSURL,
		Token:          store.Token,
		ConnectTimeout: cfg.WSConnectTimeout,
		Log:            log,
	}
	rt := realtime.NewManager(cfg.WSURL, dialer, realtime.WithLogger(log), realtime.WithMetrics(mx))

	log.Debug("app.ready", "api", cfg.APIBaseURL, "ws", cfg.WSURL, "signed_in", store.HasToken())

	return &App{
		cfg:       cfg,
		log:       log,
		metrics:   mx,
		session:   store,
		persister: persister,
		client:    client,
		realtime:  rt,
		cases:     debtcase.NewService(client, log),
		profiles:  profile.NewService(client, log),
	}, nil
}

func (a *App) Config() Config              { return a.cfg }
func (a *App) Logger() *slog.Logger        { return a.log }
func (a *App) Metrics() *metrics.Metrics   { return a.metrics }
func (a *App) Session() *session.Store     { return a.session }
func (a *App) Client() *api.Client         { return a.client }
func (a *App) Realtime() *realtime.Manager { return a.realtime }
func (a *App) Cases() *debtcase.Service    { return a.cases }
func (a *App) Profiles() *profile.Service  { return a.profiles }

// Close disconnects the realtime channel and releases the persister. It is
// idempotent.
func (a *App) Close(_ context.Context) error {
	a.closeOnce.Do(func() {
		if err := a.realtime.Disconnect(); err != nil {
			a.log.Warn("realtime.close.fail", "err", err)
		}
		a.closeErr = closePersister(a.persister)
	})
	return a.closeErr
}

func closePersister(p session.Persister) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ServeMetrics serves Prometheus metrics on addr until ctx is done.
func (a *App) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.log.Info("metrics.start", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.log.Error("metrics.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("metrics.shutdown.fail", "err", err)
		return err
	}
	a.log.Info("metrics.stopped")
	return nil
}
