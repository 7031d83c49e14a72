package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"
)

// StompSubprotocols are offered during the WebSocket handshake.
var StompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// StompDialer connects to a STOMP broker exposed over a WebSocket endpoint.
type StompDialer struct {
	URL string

	// Token returns the bearer credential sent on the upgrade request and in
	// the CONNECT frame. Nil or empty sends none.
	Token func() string

	ConnectTimeout time.Duration
	Log            *slog.Logger
}

func (d *StompDialer) Dial(ctx context.Context) (Conn, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}

	token := ""
	if d.Token != nil {
		token = d.Token()
	}
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, d.URL, &websocket.DialOptions{
		Subprotocols: StompSubprotocols,
		HTTPHeader:   hdr,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	ws.SetReadLimit(maxFrameBytes)

	// The net.Conn outlives the dial context; Close cancels it.
	connCtx, connCancel := context.WithCancel(context.Background())
	nc := newWatchedConn(websocket.NetConn(connCtx, ws, websocket.MessageText))

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(0, 0),
	}
	if token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}

	_ = nc.SetDeadline(time.Now().Add(timeout))
	sc, err := stomp.Connect(nc, opts...)
	if err != nil {
		connCancel()
		_ = ws.Close(websocket.StatusProtocolError, "stomp connect failed")
		return nil, fmt.Errorf("stomp connect: %w", err)
	}
	_ = nc.SetDeadline(time.Time{})

	log.Debug("realtime.stomp.connected", "url", d.URL, "version", string(sc.Version()), "server", sc.Server())

	return &stompConn{
		stomp:  sc,
		ws:     ws,
		nc:     nc,
		cancel: connCancel,
		log:    log,
	}, nil
}

type stompConn struct {
	stomp  *stomp.Conn
	ws     *websocket.Conn
	nc     *watchedConn
	cancel context.CancelFunc
	log    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (c *stompConn) Subscribe(topic string, deliver func([]byte)) error {
	sub, err := c.stomp.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return err
	}

	go func() {
		for msg := range sub.C {
			if msg.Err != nil {
				c.log.Debug("realtime.stomp.sub.end", "topic", topic, "err", msg.Err)
				c.nc.fail(msg.Err)
				return
			}
			deliver(msg.Body)
		}
	}()
	return nil
}

func (c *stompConn) Done() <-chan struct{} { return c.nc.done }

func (c *stompConn) Err() error { return c.nc.Err() }

// Close sends DISCONNECT, waits briefly for the receipt and drops the socket.
// It is idempotent.
func (c *stompConn) Close() error {
	c.closeOnce.Do(func() {
		res := make(chan error, 1)
		go func() { res <- c.stomp.Disconnect() }()

		select {
		case err := <-res:
			if !closedCleanly(err) {
				c.closeErr = err
			}
		case <-time.After(disconnectTimeout):
			_ = c.stomp.MustDisconnect()
		}

		c.cancel()
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.nc.fail(net.ErrClosed)
	})
	return c.closeErr
}

// watchedConn closes done on the first read or write failure, which is how
// a lost transport surfaces to the Manager.
type watchedConn struct {
	net.Conn

	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func newWatchedConn(c net.Conn) *watchedConn {
	return &watchedConn{Conn: c, done: make(chan struct{})}
}

func (w *watchedConn) Read(p []byte) (int, error) {
	n, err := w.Conn.Read(p)
	if err != nil {
		w.fail(err)
	}
	return n, err
}

func (w *watchedConn) Write(p []byte) (int, error) {
	n, err := w.Conn.Write(p)
	if err != nil {
		w.fail(err)
	}
	return n, err
}

func (w *watchedConn) fail(err error) {
	w.once.Do(func() {
		w.mu.Lock()
		w.err = classifyTransportErr(err)
		w.mu.Unlock()
		close(w.done)
	})
}

func (w *watchedConn) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// ErrPeerClosed is reported when the server ended the connection cleanly.
var ErrPeerClosed = errors.New("realtime: peer closed connection")

// closedCleanly reports whether err from a DISCONNECT only says the socket
// was already gone once the broker had acknowledged it.
func closedCleanly(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, stomp.ErrAlreadyClosed),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF):
		return true
	}
	return websocket.CloseStatus(err) != -1
}

func classifyTransportErr(err error) error {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, io.EOF) {
		return ErrPeerClosed
	}
	return err
}
