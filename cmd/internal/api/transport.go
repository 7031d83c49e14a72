package api

import (
	"log/slog"
	"net/http"
	"time"

	"debtease/cmd/internal/ids"
)

// LoggingTransport logs every round trip and stamps a request ID when the
// caller did not set one.
type LoggingTransport struct {
	Next http.RoundTripper
	Log  *slog.Logger
}

func (t *LoggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	next := t.Next
	if next == nil {
		next = http.DefaultTransport
	}
	log := t.Log
	if log == nil {
		log = slog.Default()
	}

	if r.Header.Get(ids.RequestIDHeader) == "" {
		if id, err := ids.NewRequestID(time.Now()); err == nil {
			r = r.Clone(r.Context())
			r.Header.Set(ids.RequestIDHeader, id)
		}
	}

	start := time.Now()
	resp, err := next.RoundTrip(r)
	if err != nil {
		log.Warn("http.request.fail",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get(ids.RequestIDHeader),
			"duration_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
		return nil, err
	}

	log.Debug("http.request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"request_id", r.Header.Get(ids.RequestIDHeader),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
