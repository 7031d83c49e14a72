package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"debtease/cmd/internal/metrics"
	v1 "debtease/shared/contracts/realtime/v1"
)

// State is the connection state of a Manager.
type State uint8

const (
	StateDisconnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// Dialer opens the underlying duplex channel.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one live transport connection.
type Conn interface {
	// Subscribe attaches deliver to topic for the life of the connection.
	Subscribe(topic string, deliver func(body []byte)) error
	// Done is closed when the connection is lost or closed.
	Done() <-chan struct{}
	// Err reports why Done was closed, if known.
	Err() error
	Close() error
}

// Callback receives one decoded frame.
type Callback func(v1.Message)

// Subscription identifies one registered callback.
type Subscription struct {
	ID    string
	Topic string
}

var ErrNilCallback = errors.New("realtime: nil callback")

type entry struct {
	sub Subscription
	cb  Callback
}

// Manager owns at most one connection and the subscription registry that is
// replayed onto every new connection.
type Manager struct {
	url     string
	dialer  Dialer
	log     *slog.Logger
	metrics *metrics.Metrics

	// connectMu serializes dial attempts so only one connection can exist.
	connectMu sync.Mutex

	mu       sync.Mutex
	state    State
	conn     Conn
	registry []entry
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// NewManager returns a disconnected manager for url.
func NewManager(url string, dialer Dialer, opts ...Option) *Manager {
	m := &Manager{
		url:    url,
		dialer: dialer,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) URL() string { return m.url }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Topics returns the registered topics, one entry per distinct topic.
func (m *Manager) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(m.registry))
	out := make([]string, 0, len(m.registry))
	for _, e := range m.registry {
		if _, ok := seen[e.sub.Topic]; ok {
			continue
		}
		seen[e.sub.Topic] = struct{}{}
		out = append(out, e.sub.Topic)
	}
	return out
}

// Subscriptions returns the number of registered callbacks.
func (m *Manager) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry)
}

// Lost returns a channel closed when the current connection goes away. When
// disconnected the returned channel is already closed.
func (m *Manager) Lost() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.conn.Done()
}

// Connect opens the connection if none is open and replays every registered
// subscription onto it. A failed dial leaves the manager disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.State() == StateConnected {
		return nil
	}

	conn, err := m.dialer.Dial(ctx)
	if err != nil {
		m.log.Warn("realtime.connect.fail", "url", m.url, "err", err)
		return fmt.Errorf("realtime: connect: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	replay := append([]entry(nil), m.registry...)
	m.mu.Unlock()

	m.metrics.RealtimeConnected(true)
	m.log.Info("realtime.connect", "url", m.url, "replayed", len(replay))

	for _, e := range replay {
		m.attach(conn, e)
	}

	go m.watch(conn)
	return nil
}

// Subscribe records cb for topic and attaches it: immediately when connected,
// otherwise through the replay of the Connect it triggers. The subscription
// stays registered even when that Connect fails.
func (m *Manager) Subscribe(ctx context.Context, topic string, cb Callback) (Subscription, error) {
	if err := v1.ValidateTopic(topic); err != nil {
		return Subscription{}, fmt.Errorf("realtime: %w", err)
	}
	if cb == nil {
		return Subscription{}, ErrNilCallback
	}

	e := entry{sub: Subscription{ID: uuid.NewString(), Topic: topic}, cb: cb}

	m.mu.Lock()
	m.registry = append(m.registry, e)
	n := len(m.registry)
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	m.metrics.Subscriptions(n)
	m.log.Debug("realtime.subscribe", "topic", topic, "subscription_id", e.sub.ID, "connected", connected)

	if connected {
		return e.sub, m.attach(conn, e)
	}
	return e.sub, m.Connect(ctx)
}

// UnsubscribeAll clears the replay registry. Callbacks already attached to
// the live connection keep receiving frames until it closes.
func (m *Manager) UnsubscribeAll() {
	m.mu.Lock()
	m.registry = nil
	m.mu.Unlock()
	m.metrics.Subscriptions(0)
}

// Disconnect clears the registry and closes the connection. A dial already
// in flight finishes first and its connection is closed here.
func (m *Manager) Disconnect() error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.UnsubscribeAll()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.metrics.RealtimeConnected(false)
	if conn == nil {
		return nil
	}
	m.log.Info("realtime.disconnect", "url", m.url)
	return conn.Close()
}

func (m *Manager) attach(conn Conn, e entry) error {
	err := conn.Subscribe(e.sub.Topic, func(body []byte) { m.deliver(e, body) })
	if err != nil {
		m.log.Warn("realtime.subscribe.fail", "topic", e.sub.Topic, "err", err)
		return fmt.Errorf("realtime: subscribe %s: %w", e.sub.Topic, err)
	}
	return nil
}

func (m *Manager) deliver(e entry, body []byte) {
	msg := v1.Message{Topic: e.sub.Topic, Payload: body}
	if err := msg.Validate(); err != nil {
		m.metrics.FrameDropped()
		m.log.Debug("realtime.frame.drop", "topic", e.sub.Topic, "bytes", len(body), "err", err)
		return
	}
	// The transport may reuse body once deliver returns.
	msg.Payload = slices.Clone(msg.Payload)

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("realtime.callback.panic", "topic", e.sub.Topic, "panic", r)
		}
	}()
	m.metrics.FrameDelivered()
	e.cb(msg)
}

func (m *Manager) watch(conn Conn) {
	<-conn.Done()

	m.mu.Lock()
	current := m.conn == conn
	if current {
		m.conn = nil
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	if current {
		m.metrics.RealtimeConnected(false)
		m.log.Warn("realtime.transport.lost", "url", m.url, "err", conn.Err())
	}
}
