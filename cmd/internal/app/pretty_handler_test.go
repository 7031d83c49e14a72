package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_ColoredLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true))
	log.With("request_id", "01J").WithGroup("realtime").Warn("realtime.transport.lost",
		"url", "ws://localhost:8080/ws/websocket",
		"err", "peer closed connection",
	)

	line := buf.String()
	if !strings.Contains(line, ansiYellow+"[WARN]"+ansiReset) {
		t.Fatalf("level not colored: %q", line)
	}
	plain := stripANSI(line)
	for _, want := range []string{
		"msg=realtime.transport.lost",
		"request_id=01J",
		"realtime.url=ws://localhost:8080/ws/websocket",
		`realtime.err="peer closed connection"`,
	} {
		if !strings.Contains(plain, want) {
			t.Fatalf("line %q missing %q", plain, want)
		}
	}
}

func TestPrettyValue_Durations(t *testing.T) {
	t.Parallel()

	h := &prettyHandler{}
	cases := []struct {
		key  string
		val  slog.Value
		want string
	}{
		{"duration_ms", slog.Int64Value(42), "42ms"},
		{"status", slog.StringValue("404"), "404"},
		{"elapsed", slog.DurationValue(1500 * time.Millisecond), "1.5s"},
		{"note", slog.StringValue("two words"), `"two words"`},
		{"empty", slog.StringValue(""), `""`},
	}
	for _, tc := range cases {
		if got := h.prettyValue(tc.key, tc.val); got != tc.want {
			t.Fatalf("prettyValue(%s)=%q want %q", tc.key, got, tc.want)
		}
	}
}
