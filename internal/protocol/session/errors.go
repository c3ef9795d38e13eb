package session

import (
	"errors"
	"fmt"
)

var (
	ErrTransport            = errors.New("session: transport error")
	ErrUnexpectedDisconnect = errors.New("session: unexpected disconnect")
	ErrAckTimeout           = errors.New("session: block write not acknowledged")
	ErrNotConnected         = errors.New("session: not connected")
	ErrUnknownPeer          = errors.New("session: unknown peer")
	ErrInvalidState         = errors.New("session: invalid state")
	ErrAborted              = errors.New("session: send aborted by disconnect")
)

// TransportError reports a failed radio operation. The operation fails; the
// session carries on.
type TransportError struct {
	Peer PeerRef
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Peer == "" {
		return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session: %s peer=%s: %v", e.Op, e.Peer, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

func transportErr(peer PeerRef, op string, err error) *TransportError {
	return &TransportError{Peer: peer, Op: op, Err: err}
}
