// Package password checks and generates account passwords before they are
// sent to the server.
//
// Both sides use the same character classes the server issues passwords
// from: lowercase letters, uppercase letters and digits.
package password
