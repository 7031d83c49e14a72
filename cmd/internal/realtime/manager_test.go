package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	v1 "debtease/shared/contracts/realtime/v1"
)

type fakeConn struct {
	mu     sync.Mutex
	subs   map[string][]func([]byte)
	done   chan struct{}
	once   sync.Once
	err    error
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: map[string][]func([]byte){}, done: make(chan struct{})}
}

func (c *fakeConn) Subscribe(topic string, deliver func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = append(c.subs[topic], deliver)
	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.drop(nil)
	return nil
}

func (c *fakeConn) drop(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *fakeConn) publish(topic string, body string) {
	c.mu.Lock()
	subs := append([]func([]byte){}, c.subs[topic]...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn([]byte(body))
	}
}

func (c *fakeConn) attached(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[topic])
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  error
	dials int
	conns []*fakeConn
}

func (d *fakeDialer) Dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.fail != nil {
		return nil, d.fail
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(d Dialer) *Manager {
	return NewManager("ws://test/ws/websocket", d, WithLogger(testLogger()))
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state=%v want %v", m.State(), want)
}

func TestManager_SubscribeBeforeConnectTriggersConnect(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	topic := v1.EnrichedDebtCasesTopic("bob")

	got := make(chan v1.Message, 1)
	if _, err := m.Subscribe(context.Background(), topic, func(msg v1.Message) { got <- msg }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if m.State() != StateConnected {
		t.Fatalf("state=%v", m.State())
	}
	if d.dialCount() != 1 {
		t.Fatalf("dials=%d", d.dialCount())
	}

	d.last().publish(topic, `{"id":11}`)

	select {
	case msg := <-got:
		if msg.Topic != topic || string(msg.Payload) != `{"id":11}` {
			t.Fatalf("msg=%+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("callback registered before connect received nothing")
	}
}

func TestManager_SingleConnectionForManyTopics(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	ctx := context.Background()

	for _, topic := range []string{"/topic/a", "/topic/b", "/topic/a"} {
		if _, err := m.Subscribe(ctx, topic, func(v1.Message) {}); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	if d.dialCount() != 1 {
		t.Fatalf("dials=%d", d.dialCount())
	}
	if n := d.last().attached("/topic/a"); n != 2 {
		t.Fatalf("topic a attached %d times", n)
	}
	if got := m.Topics(); len(got) != 2 {
		t.Fatalf("topics=%v", got)
	}
	if m.Subscriptions() != 3 {
		t.Fatalf("subscriptions=%d", m.Subscriptions())
	}
}

func TestManager_MultipleCallbacksSameTopic(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	cb := func(v1.Message) {
		mu.Lock()
		calls++
		mu.Unlock()
	}
	for i := 0; i < 2; i++ {
		if _, err := m.Subscribe(ctx, "/topic/x", cb); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}

	d.last().publish("/topic/x", `{"ok":true}`)

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestManager_MalformedFramesDropped(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)

	got := make(chan v1.Message, 4)
	if _, err := m.Subscribe(context.Background(), "/topic/x", func(msg v1.Message) { got <- msg }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	c := d.last()
	c.publish("/topic/x", "not json")
	c.publish("/topic/x", "")
	c.publish("/topic/x", `[1,2]`)

	select {
	case msg := <-got:
		if string(msg.Payload) != `[1,2]` {
			t.Fatalf("malformed frame delivered: %q", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("valid frame not delivered")
	}
	if len(got) != 0 {
		t.Fatalf("extra deliveries: %d", len(got))
	}
}

func TestManager_ConnectFailureStaysDisconnectedAndKeepsRegistry(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	d.setFail(errors.New("connection refused"))
	m := newTestManager(d)
	ctx := context.Background()

	got := make(chan v1.Message, 1)
	_, err := m.Subscribe(ctx, "/topic/x", func(msg v1.Message) { got <- msg })
	if err == nil {
		t.Fatalf("expected connect error")
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state=%v", m.State())
	}
	if m.Subscriptions() != 1 {
		t.Fatalf("subscription not recorded")
	}

	// No retry loop: nothing dials until the caller asks again.
	time.Sleep(20 * time.Millisecond)
	if d.dialCount() != 1 {
		t.Fatalf("dials=%d", d.dialCount())
	}

	d.setFail(nil)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if d.last().attached("/topic/x") != 1 {
		t.Fatalf("registry not replayed")
	}
	d.last().publish("/topic/x", `{"n":1}`)
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatalf("replayed callback not invoked")
	}
}

func TestManager_TransportLossAndReplay(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	ctx := context.Background()

	if _, err := m.Subscribe(ctx, "/topic/a", func(v1.Message) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	first := d.last()
	lost := m.Lost()

	first.drop(errors.New("reset by peer"))
	waitState(t, m, StateDisconnected)

	select {
	case <-lost:
	default:
		t.Fatalf("Lost channel not closed")
	}
	if d.dialCount() != 1 {
		t.Fatalf("reconnected on its own")
	}

	// Next subscribe reconnects and replays the earlier topic too.
	if _, err := m.Subscribe(ctx, "/topic/b", func(v1.Message) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	second := d.last()
	if second == first {
		t.Fatalf("no new connection")
	}
	if second.attached("/topic/a") != 1 || second.attached("/topic/b") != 1 {
		t.Fatalf("replay incomplete: a=%d b=%d", second.attached("/topic/a"), second.attached("/topic/b"))
	}
}

func TestManager_UnsubscribeAllKeepsConnection(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	ctx := context.Background()

	if _, err := m.Subscribe(ctx, "/topic/a", func(v1.Message) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	m.UnsubscribeAll()

	if m.State() != StateConnected {
		t.Fatalf("UnsubscribeAll closed the connection")
	}
	if m.Subscriptions() != 0 || len(m.Topics()) != 0 {
		t.Fatalf("registry not cleared")
	}

	first := d.last()
	first.drop(nil)
	waitState(t, m, StateDisconnected)

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if d.last().attached("/topic/a") != 0 {
		t.Fatalf("cleared subscription was replayed")
	}
}

func TestManager_Disconnect(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	ctx := context.Background()

	if _, err := m.Subscribe(ctx, "/topic/a", func(v1.Message) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	c := d.last()

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if m.State() != StateDisconnected || m.Subscriptions() != 0 {
		t.Fatalf("state=%v subs=%d", m.State(), m.Subscriptions())
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		t.Fatalf("connection not closed")
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}

type gatedDialer struct {
	fakeDialer
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context) (Conn, error) {
	close(d.entered)
	<-d.release
	return d.fakeDialer.Dial(ctx)
}

func TestManager_DisconnectDuringDial(t *testing.T) {
	t.Parallel()

	d := &gatedDialer{entered: make(chan struct{}), release: make(chan struct{})}
	m := newTestManager(d)

	connected := make(chan error, 1)
	go func() { connected <- m.Connect(context.Background()) }()
	<-d.entered

	disconnected := make(chan error, 1)
	go func() { disconnected <- m.Disconnect() }()

	select {
	case err := <-disconnected:
		t.Fatalf("Disconnect returned before the dial finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(d.release)

	if err := <-connected; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := <-disconnected; err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state=%v after Disconnect", m.State())
	}
	c := d.last()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		t.Fatalf("dialed connection left open")
	}
}

func TestManager_ConnectIsNoopWhenConnected(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)
	ctx := context.Background()

	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if d.dialCount() != 1 {
		t.Fatalf("dials=%d", d.dialCount())
	}
}

func TestManager_ConcurrentSubscribeOneDial(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	m := newTestManager(d)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Subscribe(context.Background(), "/topic/c", func(v1.Message) {})
		}()
	}
	wg.Wait()

	if d.dialCount() != 1 {
		t.Fatalf("dials=%d", d.dialCount())
	}
	if n := d.last().attached("/topic/c"); n != 16 {
		t.Fatalf("attached=%d want 16", n)
	}
}

func TestManager_RejectsBadInput(t *testing.T) {
	t.Parallel()

	m := newTestManager(&fakeDialer{})
	if _, err := m.Subscribe(context.Background(), "", func(v1.Message) {}); err == nil {
		t.Fatalf("empty topic accepted")
	}
	if _, err := m.Subscribe(context.Background(), "/topic/x", nil); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("nil callback: %v", err)
	}
}
