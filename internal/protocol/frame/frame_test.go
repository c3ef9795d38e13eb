package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/quizlink/internal/testutil/testlog"
)

func payloadOf(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

func reassembleAll(t *testing.T, blocks [][]byte) []byte {
	t.Helper()
	r := NewReassembler(DefaultLimits())
	for i, b := range blocks {
		payload, done, err := r.Push(b)
		if err != nil {
			t.Fatalf("push block %d: %v", i, err)
		}
		if done {
			if i != len(blocks)-1 {
				t.Fatalf("completed early at block %d of %d", i, len(blocks))
			}
			return payload
		}
	}
	t.Fatalf("message never completed")
	return nil
}

func TestSplitReassembleRoundTrip(t *testing.T) {
	testlog.Start(t)
	const block = 20
	for _, n := range []int{0, 1, block, block + 1, 3*block - 1, 1000} {
		in := payloadOf(n)
		blocks, err := Split(in, block)
		if err != nil {
			t.Fatalf("split len=%d: %v", n, err)
		}
		for i, b := range blocks {
			if len(b) > block {
				t.Fatalf("len=%d block %d has %d bytes", n, i, len(b))
			}
		}
		out := reassembleAll(t, blocks)
		if !bytes.Equal(out, in) {
			t.Fatalf("round trip mismatch len=%d", n)
		}
	}
}

func TestSplitBlockCountAndHeader(t *testing.T) {
	testlog.Start(t)
	blocks, err := Split(payloadOf(16), 20)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(blocks) != 1 || len(blocks[0]) != 20 {
		t.Fatalf("expected a single full block, got %d blocks", len(blocks))
	}
	if !bytes.Equal(blocks[0][:4], []byte{0, 0, 0, 16}) {
		t.Fatalf("unexpected length header: %v", blocks[0][:4])
	}

	blocks, err = Split(nil, 4)
	if err != nil {
		t.Fatalf("split empty: %v", err)
	}
	if len(blocks) != 1 || !bytes.Equal(blocks[0], []byte{0, 0, 0, 0}) {
		t.Fatalf("unexpected empty framing: %v", blocks)
	}
}

func TestSplitRejectsTinyBlockSize(t *testing.T) {
	testlog.Start(t)
	if _, err := Split([]byte("x"), 3); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("expected ErrInvalidBlockSize, got %v", err)
	}
}

func TestReassembleShortHeaderResets(t *testing.T) {
	testlog.Start(t)
	st, _, done, err := Reassemble(State{}, []byte{0, 0}, DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	if done || st.InFlight() {
		t.Fatalf("expected zero state after short header")
	}
}

func TestReassembleOverrunIsRejected(t *testing.T) {
	testlog.Start(t)
	r := NewReassembler(DefaultLimits())
	if _, _, err := r.Push([]byte{0, 0, 0, 5, 'a', 'b'}); err != nil {
		t.Fatalf("first block: %v", err)
	}
	if !r.InFlight() {
		t.Fatalf("expected message in flight")
	}
	if _, _, err := r.Push([]byte{'c', 'd', 'e', 'f'}); !errors.Is(err, ErrOverrun) {
		t.Fatalf("expected ErrOverrun, got %v", err)
	}
	if r.InFlight() {
		t.Fatalf("expected reset after overrun")
	}

	// next block is treated as a fresh header
	payload, done, err := r.Push([]byte{0, 0, 0, 1, 'z'})
	if err != nil || !done || string(payload) != "z" {
		t.Fatalf("expected fresh message, got payload=%q done=%v err=%v", payload, done, err)
	}
}

func TestReassembleOverrunInFirstBlock(t *testing.T) {
	testlog.Start(t)
	_, _, _, err := Reassemble(State{}, []byte{0, 0, 0, 1, 'a', 'b'}, DefaultLimits())
	if !errors.Is(err, ErrOverrun) {
		t.Fatalf("expected ErrOverrun, got %v", err)
	}
}

func TestReassembleRespectsPayloadLimit(t *testing.T) {
	testlog.Start(t)
	_, _, _, err := Reassemble(State{}, []byte{0, 1, 0, 0}, Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestReassemblersAreIndependent(t *testing.T) {
	testlog.Start(t)
	a := NewReassembler(DefaultLimits())
	b := NewReassembler(DefaultLimits())
	blocksA, _ := Split([]byte("hello from a"), 5)
	blocksB, _ := Split([]byte("b"), 5)

	if _, _, err := a.Push(blocksA[0]); err != nil {
		t.Fatalf("a first block: %v", err)
	}
	if _, _, err := b.Push([]byte{9}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected b short header, got %v", err)
	}
	if !a.InFlight() {
		t.Fatalf("a lost its buffer after b failed")
	}
	out, done, err := b.Push(blocksB[0])
	if err != nil || !done || string(out) != "b" {
		t.Fatalf("b message: out=%q done=%v err=%v", out, done, err)
	}
	var got []byte
	for _, blk := range blocksA[1:] {
		got, done, err = a.Push(blk)
		if err != nil {
			t.Fatalf("a block: %v", err)
		}
	}
	if !done || string(got) != "hello from a" {
		t.Fatalf("a message: %q done=%v", got, done)
	}
}
