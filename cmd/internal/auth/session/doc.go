// Package session holds the authenticated identity of the DebtEase client.
//
// A Store keeps the current access token, its decoded claims (subject, role,
// expiry) and the refresh token. Tokens are decoded without signature
// verification: the client never holds the signing key and only reads the
// claims to decide when to refresh and which endpoints to call.
//
// Persisters let a Store survive process restarts (file or Redis backed).
package session
