package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 1 << 20 // 1 MiB

	// Bounds the STOMP CONNECT/CONNECTED handshake.
	defaultConnectTimeout = 10 * time.Second

	// Bounds the DISCONNECT/RECEIPT exchange before the socket is dropped.
	disconnectTimeout = 2 * time.Second
)
