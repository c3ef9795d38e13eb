package session

import (
	"time"

	"github.com/danmuck/quizlink/internal/protocol/frame"
)

// outbound is one framed message waiting to be written block by block.
type outbound struct {
	blocks [][]byte
	next   int
}

// outbox serializes sends to one peer. Only the head message is written, one
// block at a time, and the next block waits for the previous block's ack.
type outbox struct {
	queue    []*outbound
	inflight bool
	seq      uint64
	timer    *time.Timer
}

func (o *outbox) push(blocks [][]byte) {
	o.queue = append(o.queue, &outbound{blocks: blocks})
}

func (o *outbox) head() *outbound {
	if len(o.queue) == 0 {
		return nil
	}
	return o.queue[0]
}

func (o *outbox) pop() {
	if len(o.queue) == 0 {
		return
	}
	o.queue[0] = nil
	o.queue = o.queue[1:]
}

func (o *outbox) settle() {
	o.inflight = false
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// drop discards everything queued and returns how many messages were lost.
func (o *outbox) drop() int {
	o.settle()
	n := len(o.queue)
	o.queue = nil
	return n
}

func (o *outbox) pending() int {
	return len(o.queue)
}

// peerLink is everything one role keeps for one connection.
type peerLink struct {
	ref    PeerRef
	state  PeerState
	joined bool
	rx     *frame.Reassembler
	out    outbox
	gone   bool
	// cut is set when the link was dropped because a send broke off
	// mid-message; the disconnect is reported as unexpected.
	cut bool
}

func newPeerLink(ref PeerRef, state PeerState, limits frame.Limits) *peerLink {
	return &peerLink{
		ref:   ref,
		state: state,
		rx:    frame.NewReassembler(limits),
	}
}
