package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"

	v1 "debtease/shared/contracts/realtime/v1"
)

type stompFrame struct {
	command string
	headers map[string]string
	body    string
}

func parseFrames(raw string) []stompFrame {
	var out []stompFrame
	for _, chunk := range strings.Split(raw, "\x00") {
		chunk = strings.TrimLeft(chunk, "\r\n")
		if chunk == "" {
			continue
		}
		head, body, _ := strings.Cut(chunk, "\n\n")
		lines := strings.Split(head, "\n")
		f := stompFrame{command: strings.TrimSpace(lines[0]), headers: map[string]string{}, body: body}
		for _, l := range lines[1:] {
			if k, v, ok := strings.Cut(strings.TrimRight(l, "\r"), ":"); ok {
				if _, dup := f.headers[k]; !dup {
					f.headers[k] = v
				}
			}
		}
		out = append(out, f)
	}
	return out
}

// stompBroker is a minimal STOMP 1.2 responder that publishes a fixed set of
// bodies on every SUBSCRIBE.
type stompBroker struct {
	t      *testing.T
	bodies []string

	mu        sync.Mutex
	auth      string
	subscribe []string
	conns     []*websocket.Conn
}

func (b *stompBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: StompSubprotocols})
	if err != nil {
		return
	}
	b.mu.Lock()
	b.auth = r.Header.Get("Authorization")
	b.conns = append(b.conns, ws)
	b.mu.Unlock()

	ctx := r.Context()
	write := func(s string) error {
		wctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return ws.Write(wctx, websocket.MessageText, []byte(s))
	}

	var pending string
	seq := 0
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		pending += string(data)
		idx := strings.LastIndex(pending, "\x00")
		if idx < 0 {
			continue
		}
		complete := pending[:idx+1]
		pending = pending[idx+1:]

		for _, f := range parseFrames(complete) {
			switch f.command {
			case "CONNECT", "STOMP":
				if err := write("CONNECTED\nversion:1.2\nheart-beat:0,0\nserver:fake/1.0\n\n\x00"); err != nil {
					return
				}
			case "SUBSCRIBE":
				b.mu.Lock()
				b.subscribe = append(b.subscribe, f.headers["destination"])
				b.mu.Unlock()
				for _, body := range b.bodies {
					seq++
					msg := fmt.Sprintf("MESSAGE\ndestination:%s\nmessage-id:%d\nsubscription:%s\ncontent-type:application/json\n\n%s\x00",
						f.headers["destination"], seq, f.headers["id"], body)
					if err := write(msg); err != nil {
						return
					}
				}
			case "DISCONNECT":
				if rid := f.headers["receipt"]; rid != "" {
					_ = write("RECEIPT\nreceipt-id:" + rid + "\n\n\x00")
				}
				_ = ws.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

func (b *stompBroker) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		_ = c.Close(websocket.StatusGoingAway, "restart")
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/websocket"
}

func TestStompDialer_DeliversThroughManager(t *testing.T) {
	t.Parallel()

	broker := &stompBroker{t: t, bodies: []string{"garbage", `{"id":42,"debtCaseStatus":"UNPAID"}`}}
	srv := httptest.NewServer(broker)
	defer srv.Close()

	d := &StompDialer{
		URL:            wsURL(srv),
		Token:          func() string { return "tok-1" },
		ConnectTimeout: 2 * time.Second,
		Log:            testLogger(),
	}
	m := NewManager(d.URL, d, WithLogger(testLogger()))

	topic := v1.EnrichedDebtCasesTopic("bob")
	got := make(chan v1.Message, 4)
	if _, err := m.Subscribe(context.Background(), topic, func(msg v1.Message) { got <- msg }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case msg := <-got:
		var payload struct {
			ID int `json:"id"`
		}
		if err := msg.Decode(&payload); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if payload.ID != 42 || msg.Topic != topic {
			t.Fatalf("msg=%+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no message delivered")
	}

	broker.mu.Lock()
	auth := broker.auth
	subs := append([]string(nil), broker.subscribe...)
	broker.mu.Unlock()
	if auth != "Bearer tok-1" {
		t.Fatalf("upgrade authorization=%q", auth)
	}
	if len(subs) != 1 || subs[0] != topic {
		t.Fatalf("subscribed=%v", subs)
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state=%v", m.State())
	}
	if len(got) != 0 {
		t.Fatalf("malformed frame delivered")
	}
}

func TestStompDialer_ServerDropMarksDisconnected(t *testing.T) {
	t.Parallel()

	broker := &stompBroker{t: t}
	srv := httptest.NewServer(broker)
	defer srv.Close()

	d := &StompDialer{URL: wsURL(srv), ConnectTimeout: 2 * time.Second, Log: testLogger()}
	m := NewManager(d.URL, d, WithLogger(testLogger()))

	if _, err := m.Subscribe(context.Background(), "/topic/x", func(v1.Message) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("state=%v", m.State())
	}

	broker.dropAll()
	waitState(t, m, StateDisconnected)
}

func TestStompDialer_DialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	d := &StompDialer{URL: url, ConnectTimeout: time.Second, Log: testLogger()}
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestClosedCleanly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: true},
		{name: "already closed", err: stomp.ErrAlreadyClosed, want: true},
		{name: "socket gone", err: fmt.Errorf("failed to close WebSocket: %w", net.ErrClosed), want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "close frame", err: websocket.CloseError{Code: websocket.StatusGoingAway}, want: true},
		{name: "other", err: errors.New("receipt mismatch"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := closedCleanly(tt.err); got != tt.want {
				t.Fatalf("closedCleanly(%v)=%v want %v", tt.err, got, tt.want)
			}
		})
	}
}
