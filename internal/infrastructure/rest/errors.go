package rest

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork means no usable response arrived at all.
	ErrNetwork = errors.New("rest: collaborator unreachable")
	// ErrNotFound is the 404-class outcome, from either the transport or the envelope.
	ErrNotFound = errors.New("rest: resource not found")
)

// UpstreamError is a non-success envelope status with whatever message the
// collaborator attached.
type UpstreamError struct {
	Peer     string
	Endpoint string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rest: %s %s returned status %d: %s", e.Peer, e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("rest: %s %s returned status %d", e.Peer, e.Endpoint, e.Status)
}
