package replication

import "errors"

var (
	// ErrMalformedMessage marks an inbound message with a bad topic shape,
	// missing sender tags or an unusable payload.
	ErrMalformedMessage = errors.New("replication: malformed message")

	// ErrTransport marks a broker client that refused to start or publish.
	ErrTransport = errors.New("replication: transport error")
)
