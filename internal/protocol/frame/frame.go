package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderLen is the size of the big-endian total-length prefix.
const HeaderLen = 4

// MinBlockSize keeps the length prefix inside the first block.
const MinBlockSize = HeaderLen

var (
	ErrShortHeader      = errors.New("frame: first block shorter than length header")
	ErrOverrun          = errors.New("frame: block carries bytes beyond declared length")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrInvalidBlockSize = errors.New("frame: block size below minimum")
	ErrEmptyBlock       = errors.New("frame: empty block")
)

// Limits constrains reassembly memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 64 * 1024}
}

// Split prefixes payload with its length and slices the result into blocks of
// at most blockSize bytes. The final block may be shorter.
func Split(payload []byte, blockSize int) ([][]byte, error) {
	if blockSize < MinBlockSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}

	stream := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(stream[:HeaderLen], uint32(len(payload)))
	copy(stream[HeaderLen:], payload)

	blocks := make([][]byte, 0, (len(stream)+blockSize-1)/blockSize)
	for off := 0; off < len(stream); off += blockSize {
		end := min(off+blockSize, len(stream))
		blocks = append(blocks, stream[off:end:end])
	}
	return blocks, nil
}

// State is the in-flight reassembly buffer for one peer. The zero value is
// ready to accept the first block of a message.
type State struct {
	started  bool
	expected uint32
	buf      []byte
}

// InFlight reports whether a message has started but not yet completed.
func (s State) InFlight() bool {
	return s.started
}

// Expected returns the declared payload length of the in-flight message.
func (s State) Expected() uint32 {
	return s.expected
}

// Accumulated returns how many payload bytes have been collected so far.
func (s State) Accumulated() int {
	return len(s.buf)
}

// Reassemble feeds one block into st. It returns the next state, and when the
// declared length has been reached, the completed payload with done=true.
// Any error returns the zero state so the next block starts a new message.
func Reassemble(st State, block []byte, limits Limits) (State, []byte, bool, error) {
	if !st.started {
		if len(block) == 0 {
			return State{}, nil, false, ErrEmptyBlock
		}
		if len(block) < HeaderLen {
			return State{}, nil, false, ErrShortHeader
		}
		expected := binary.BigEndian.Uint32(block[:HeaderLen])
		if limits.MaxPayloadBytes > 0 && expected > limits.MaxPayloadBytes {
			return State{}, nil, false, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, expected, limits.MaxPayloadBytes)
		}
		st = State{started: true, expected: expected, buf: make([]byte, 0, expected)}
		block = block[HeaderLen:]
	}

	remaining := int(st.expected) - len(st.buf)
	if len(block) > remaining {
		return State{}, nil, false, fmt.Errorf("%w: %d extra bytes", ErrOverrun, len(block)-remaining)
	}
	st.buf = append(st.buf, block...)
	if len(st.buf) == int(st.expected) {
		return State{}, st.buf, true, nil
	}
	return st, nil, false, nil
}

// Reassembler holds the reassembly state for a single peer.
type Reassembler struct {
	limits Limits
	state  State
}

func NewReassembler(limits Limits) *Reassembler {
	return &Reassembler{limits: limits}
}

// Push feeds one block and returns the completed payload once available.
func (r *Reassembler) Push(block []byte) ([]byte, bool, error) {
	next, payload, done, err := Reassemble(r.state, block, r.limits)
	r.state = next
	return payload, done, err
}

// Reset drops any partially received message.
func (r *Reassembler) Reset() {
	r.state = State{}
}

func (r *Reassembler) InFlight() bool {
	return r.state.InFlight()
}
