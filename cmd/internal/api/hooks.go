package api

import (
	"context"
	"net/http"
	"sync"
)

// State is what a hook exposes to its caller after each transition.
type State[T any] struct {
	Data    T
	Loading bool
	Err     *APIError

	// NoContent marks a success without payload (204, or any successful
	// delete). Err is nil when it is set.
	NoContent bool
}

// HookOption configures a hook.
type HookOption func(*hookConfig)

type hookConfig struct {
	binary bool
}

// ResponseBinary makes a hook return the raw body. The hook's data type
// must be []byte.
func ResponseBinary() HookOption {
	return func(c *hookConfig) { c.binary = true }
}

type hook[T any] struct {
	c        *Client
	method   string
	endpoint string
	cfg      hookConfig

	mu       sync.Mutex
	vars     Vars
	state    State[T]
	onChange []func(State[T])
}

func (h *hook[T]) init(c *Client, method, endpoint string, vars Vars, opts []HookOption) {
	h.c = c
	h.method = method
	h.endpoint = endpoint
	h.vars = vars
	for _, opt := range opts {
		opt(&h.cfg)
	}
}

// State returns the latest state.
func (h *hook[T]) State() State[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnChange registers fn to run after every state transition.
func (h *hook[T]) OnChange(fn func(State[T])) {
	h.mu.Lock()
	h.onChange = append(h.onChange, fn)
	h.mu.Unlock()
}

func (h *hook[T]) set(update func(*State[T])) State[T] {
	h.mu.Lock()
	update(&h.state)
	st := h.state
	listeners := append([]func(State[T]){}, h.onChange...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
	return st
}

// run never panics past the hook: every failure ends up in State.Err.
func (h *hook[T]) run(ctx context.Context, body any) (T, error) {
	h.set(func(s *State[T]) {
		s.Loading = true
		s.Err = nil
		s.NoContent = false
	})

	h.mu.Lock()
	vars := h.vars
	h.mu.Unlock()

	var data T
	err := h.call(ctx, vars, body, &data)

	st := h.set(func(s *State[T]) {
		s.Loading = false
		switch {
		case err == nil:
			s.Data = data
		case IsNoContent(err):
			s.NoContent = true
		default:
			s.Err = NormalizeError(h.method, err)
		}
	})

	if st.Err != nil {
		return data, st.Err
	}
	return data, nil
}

func (h *hook[T]) call(ctx context.Context, vars Vars, body any, out *T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.c.log.Error("api.hook.panic", "endpoint", h.endpoint, "panic", r)
			err = &APIError{StatusCode: http.StatusInternalServerError, Message: "Client Error"}
		}
	}()

	if h.cfg.binary {
		if _, ok := any(out).(*[]byte); !ok {
			return invalidRequest(ErrBinaryTarget)
		}
	}

	resp, err := h.c.Send(ctx, Request{
		Method:   h.method,
		Endpoint: h.endpoint,
		Vars:     vars,
		Body:     body,
		Binary:   h.cfg.binary,
	})
	if err != nil {
		return err
	}
	return decodeInto(resp, out)
}

// Reader issues GET requests.
type Reader[T any] struct {
	hook[T]

	synced  bool
	lastKey string
	lastRef bool
}

func NewReader[T any](c *Client, endpoint string, vars Vars, opts ...HookOption) *Reader[T] {
	r := &Reader[T]{}
	r.init(c, http.MethodGet, endpoint, vars, opts)
	return r
}

// GetData fetches on demand.
func (r *Reader[T]) GetData(ctx context.Context) (T, error) {
	return r.run(ctx, nil)
}

// Sync fetches only when vars differ from the previous Sync, when refetch
// differs from the previous flag, or on the first call. It reports whether a
// fetch ran.
func (r *Reader[T]) Sync(ctx context.Context, vars Vars, refetch bool) (State[T], bool) {
	key := varsKey(r.endpoint, vars)

	r.mu.Lock()
	if r.synced && key == r.lastKey && refetch == r.lastRef {
		st := r.state
		r.mu.Unlock()
		return st, false
	}
	r.synced = true
	r.lastKey = key
	r.lastRef = refetch
	r.vars = vars
	r.mu.Unlock()

	_, _ = r.run(ctx, nil)
	return r.State(), true
}

// Creator issues POST requests.
type Creator[T any] struct {
	hook[T]
}

func NewCreator[T any](c *Client, endpoint string, vars Vars, opts ...HookOption) *Creator[T] {
	h := &Creator[T]{}
	h.init(c, http.MethodPost, endpoint, vars, opts)
	return h
}

// PostData sends body as JSON, or as multipart when body is a *Multipart.
func (h *Creator[T]) PostData(ctx context.Context, body any) (T, error) {
	return h.run(ctx, body)
}

// Editor issues PUT requests.
type Editor[T any] struct {
	hook[T]
}

func NewEditor[T any](c *Client, endpoint string, vars Vars, opts ...HookOption) *Editor[T] {
	h := &Editor[T]{}
	h.init(c, http.MethodPut, endpoint, vars, opts)
	return h
}

func (h *Editor[T]) EditData(ctx context.Context, body any) (T, error) {
	return h.run(ctx, body)
}

// Deleter issues DELETE requests. A successful delete sets State.NoContent.
type Deleter struct {
	hook[struct{}]
}

func NewDeleter(c *Client, endpoint string, vars Vars) *Deleter {
	h := &Deleter{}
	h.init(c, http.MethodDelete, endpoint, vars, nil)
	return h
}

func (h *Deleter) DeleteData(ctx context.Context) error {
	_, err := h.run(ctx, nil)
	return err
}
