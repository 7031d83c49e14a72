package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"debtease/cmd/internal/auth/session"
	"debtease/cmd/internal/ids"
	"debtease/cmd/internal/metrics"
)

const (
	LoginEndpoint   = "users/login"
	RefreshEndpoint = "users/refresh/token"
	LogoutEndpoint  = "users/logout"

	// File downloads are public and never trigger a refresh.
	filesPrefix = "files/"
)

// Options configures a Client. Session is required.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Session    *session.Store
	Persister  session.Persister
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Client issues authenticated calls against the DebtEase API.
type Client struct {
	base    string
	hc      *http.Client
	session *session.Store
	persist session.Persister
	log     *slog.Logger
	metrics *metrics.Metrics

	refreshes singleflight.Group
}

func NewClient(opts Options) (*Client, error) {
	if opts.Session == nil {
		return nil, errors.New("api: session store is required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: base url is required")
	}

	c := &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		hc:      opts.HTTPClient,
		session: opts.Session,
		persist: opts.Persister,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 30 * time.Second}
	}
	if c.persist == nil {
		c.persist = session.NopPersister{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c, nil
}

func (c *Client) Session() *session.Store { return c.session }
func (c *Client) BaseURL() string          { return c.base }

// Request describes one API call.
type Request struct {
	Method   string
	Endpoint string
	Vars     Vars

	// Body is JSON-encoded unless it is a *Multipart. Nil sends no body.
	Body any

	// Binary asks for the raw body (PDF, CSV) instead of JSON.
	Binary bool
}

// Response is a successful, normalized exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Send runs the full call protocol: refresh if needed, build the URL, attach
// the bearer credential, call, normalize. Every non-nil error is an *APIError.
//
// Successful deletes and 204 responses return the NoContent sentinel as the
// error; hooks turn it into a success state.
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	if c.needsRefresh(req.Endpoint) {
		if err := c.Refresh(ctx); err != nil {
			return Response{}, err
		}
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := BuildURL(c.base, req.Endpoint, req.Vars)
	if err != nil {
		return Response{}, invalidRequest(err)
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return Response{}, invalidRequest(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, invalidRequest(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.session.Token())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Binary {
		httpReq.Header.Set("Accept", "*/*")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if id, err := ids.NewRequestID(time.Now()); err == nil {
		httpReq.Header.Set(ids.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		apiErr := NormalizeError(method, err)
		c.metrics.ObserveRequest(method, apiErr.StatusCode, time.Since(start))
		return Response{}, apiErr
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := NormalizeError(method, &ResponseError{StatusCode: resp.StatusCode, Body: raw, Err: err})
		c.metrics.ObserveRequest(method, apiErr.StatusCode, time.Since(start))
		return Response{}, apiErr
	}

	payload, apiErr := Normalize(method, resp.StatusCode, raw)
	if apiErr != nil {
		c.metrics.ObserveRequest(method, apiErr.StatusCode, time.Since(start))
		if apiErr.StatusCode != http.StatusNoContent {
			c.log.Debug("api.call.fail",
				"method", method,
				"endpoint", req.Endpoint,
				"status", apiErr.StatusCode,
				"message", apiErr.Message,
			)
		}
		return Response{StatusCode: resp.StatusCode, Header: resp.Header}, apiErr
	}

	c.metrics.ObserveRequest(method, resp.StatusCode, time.Since(start))
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// Do sends req and decodes the JSON payload into out (which may be nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

func decodeInto(resp Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if b, ok := out.(*[]byte); ok {
		*b = resp.Body
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Message:     "Invalid Response",
			Description: err.Error(),
			cause:       err,
		}
	}
	return nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		return b.encode()
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func (c *Client) needsRefresh(endpoint string) bool {
	if skipsRefresh(endpoint) {
		return false
	}
	return c.session.HasToken() && c.session.IsExpired()
}

func skipsRefresh(endpoint string) bool {
	e := strings.TrimLeft(endpoint, "/")
	return e == LoginEndpoint || e == RefreshEndpoint || strings.HasPrefix(e, filesPrefix)
}
