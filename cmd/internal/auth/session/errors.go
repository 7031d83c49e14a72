package session

import "errors"

var (
	// ErrInvalidToken is returned when an access token cannot be decoded or lacks an expiry.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoSavedSession is returned by a Persister that has nothing stored.
	ErrNoSavedSession = errors.New("no saved session")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
