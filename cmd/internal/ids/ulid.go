// Package ids generates request correlation IDs.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDHeader carries the correlation ID on every API call.
const RequestIDHeader = "X-Request-ID"

// NewRequestID returns a ULID string (26 chars) stamped with now.
// A zero now uses the current time.
func NewRequestID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
