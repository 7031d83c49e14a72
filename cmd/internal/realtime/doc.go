// Package realtime manages the client's single publish/subscribe connection
// to the DebtEase realtime endpoint.
//
// A Manager keeps a registry of topic subscriptions, connects lazily on the
// first Subscribe, replays the registry after every successful connect and
// hands each JSON frame to the callbacks registered for its topic. It never
// reconnects on its own: a lost connection stays down until the next
// Connect or Subscribe call.
//
// The wire transport is a Dialer. StompDialer speaks STOMP 1.2 over a
// WebSocket.
package realtime
