package protocol

import (
	"errors"
	"fmt"

	"github.com/danmuck/quizlink/internal/protocol/schema"
)

var (
	ErrEmpty          = errors.New("protocol: empty payload")
	ErrUnknownKind    = errors.New("protocol: unknown message kind")
	ErrMalformed      = errors.New("protocol: malformed message")
	ErrIDWidth        = errors.New("protocol: player id width mismatch")
	ErrInvalidChoice  = errors.New("protocol: invalid choice code")
	ErrOutOfRange     = errors.New("protocol: value out of byte range")
	ErrInvalidText    = errors.New("protocol: question text is not valid UTF-8")
	ErrNilMessage     = errors.New("protocol: nil message")
	ErrUnsupportedMsg = errors.New("protocol: unsupported message type")
)

// DecodeError reports a dropped inbound payload. Err is one of the sentinel
// errors above, optionally wrapping a schema.ValidationError.
type DecodeError struct {
	Kind schema.Kind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode kind=%s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
