// Package main provides a CI-friendly STOMP-over-WebSocket smoke test for
// the DebtEase realtime endpoint.
//
// It validates:
//   - handshake + STOMP subprotocol selection
//   - CONNECT/CONNECTED with an optional bearer token
//   - SUBSCRIBE to a creditor's enriched debt case destination
//   - optionally, that -count pushed frames arrive and carry a case id
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3"

	v1 "debtease/shared/contracts/realtime/v1"
)

const maxReadBytes = 1 << 20 // 1MiB

var subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws/websocket", "WebSocket URL")
		token   = flag.String("token", os.Getenv("DEBTEASE_TOKEN"), "bearer access token (default $DEBTEASE_TOKEN)")
		user    = flag.String("user", "", "creditor username whose enriched cases to follow")
		count   = flag.Int("count", 0, "wait for this many pushed cases before exiting")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if strings.TrimSpace(*user) == "" {
		fatalf("-user is required")
	}
	topic := v1.EnrichedDebtCasesTopic(*user)
	if err := v1.ValidateTopic(topic); err != nil {
		fatalf("invalid -user: %v", err)
	}

	root := context.Background()
	conn, ws := mustConnect(root, *wsURL, *token, *timeout)
	defer func() {
		_ = conn.Disconnect()
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
	}()

	if *verbose {
		fmt.Printf("connected: version=%s server=%q\n", conn.Version(), conn.Server())
	}

	sub, err := conn.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		fatalf("subscribe %s: %v", topic, err)
	}
	if *verbose {
		owner, dest, _ := v1.SplitUserTopic(topic)
		fmt.Printf("subscribed: %s (user=%s destination=%s)\n", topic, owner, dest)
	}

	for i := 0; i < *count; i++ {
		id := mustReadCase(sub, *timeout)
		if *verbose {
			fmt.Printf("pushed case id=%d\n", id)
		}
	}

	fmt.Printf("OK: url=%s topic=%s received=%d\n", *wsURL, topic, *count)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func mustConnect(parent context.Context, wsURL, token string, stepTimeout time.Duration) (*stomp.Conn, *websocket.Conn) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	assertSubprotocol(resp)
	ws.SetReadLimit(maxReadBytes)

	nc := websocket.NetConn(context.Background(), ws, websocket.MessageText)
	_ = nc.SetDeadline(time.Now().Add(stepTimeout))

	u, _ := url.Parse(wsURL)
	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(0, 0),
	}
	if token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}
	conn, err := stomp.Connect(nc, opts...)
	if err != nil {
		_ = ws.Close(websocket.StatusProtocolError, "stomp connect failed")
		fatalf("stomp connect: %v", err)
	}
	_ = nc.SetDeadline(time.Time{})
	return conn, ws
}

func assertSubprotocol(resp *http.Response) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if !slices.Contains(subprotocols, got) {
		fatalf("subprotocol mismatch: got=%q want one of %v", got, subprotocols)
	}
}

func mustReadCase(sub *stomp.Subscription, stepTimeout time.Duration) int {
	select {
	case msg, ok := <-sub.C:
		if !ok {
			fatalf("subscription closed")
		}
		if msg.Err != nil {
			fatalf("read: %v", msg.Err)
		}
		frame := v1.Message{Topic: msg.Destination, Payload: msg.Body}
		if err := frame.Validate(); err != nil {
			fatalf("bad frame: %v", err)
		}
		var p struct {
			ID int `json:"id"`
		}
		if err := frame.Decode(&p); err != nil {
			fatalf("bad json: %v", err)
		}
		if p.ID <= 0 {
			fatalf("pushed case missing id: %s", msg.Body)
		}
		return p.ID
	case <-time.After(stepTimeout):
		fatalf("no pushed case within %s", stepTimeout)
	}
	return 0
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
