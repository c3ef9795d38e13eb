package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionFatal marks a session that cannot continue. The Host or Guest
	// must be closed and discarded.
	ErrSessionFatal = errors.New("quiz: session fatal")

	ErrNoPlayersLeft = fmt.Errorf("%w: no players left", ErrSessionFatal)
	ErrHostLost      = fmt.Errorf("%w: host lost before result", ErrSessionFatal)

	ErrInvalidState       = errors.New("quiz: invalid state")
	ErrInvalidCount       = errors.New("quiz: question count must be at least 1")
	ErrNoGuests           = errors.New("quiz: no guests connected")
	ErrPlayerIDsExhausted = errors.New("quiz: player ids exhausted")
)
