package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/protocol/frame"
	"github.com/danmuck/quizlink/internal/serial"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// core is the send/receive machinery shared by Server and Client. Every
// method except pumpRadio runs on worker.
type core struct {
	role   string
	cfg    Config
	link   Link
	worker *serial.Worker
	events *serial.Dispatcher[Event]
	logger zerolog.Logger
	quit   chan struct{}
	pumped chan struct{}
	once   sync.Once
	// cut tears down a peer whose outbound stream stopped mid-message.
	cut func(p *peerLink)
}

func newCore(role string, link Link, cfg Config) *core {
	return &core{
		role:   role,
		cfg:    cfg,
		link:   link,
		worker: serial.NewWorker(),
		events: serial.NewDispatcher[Event](cfg.EventBuffer),
		logger: log.With().Str("role", role).Logger(),
		quit:   make(chan struct{}),
		pumped: make(chan struct{}),
	}
}

// pumpRadio forwards radio notifications onto the worker until quit.
func (c *core) pumpRadio(handle func(RadioEvent)) {
	defer close(c.pumped)
	events := c.link.Events()
	for {
		select {
		case <-c.quit:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.worker.Post(func() { handle(ev) }); err != nil {
				return
			}
		}
	}
}

func (c *core) emit(ev Event) {
	c.events.Emit(ev)
}

func (c *core) emitErr(err error) {
	c.emit(Event{Kind: EventError, Err: err})
}

func (c *core) split(payload []byte) ([][]byte, error) {
	if uint64(len(payload)) > uint64(c.cfg.MaxPayloadBytes) {
		return nil, fmt.Errorf("%w: %d bytes", frame.ErrPayloadTooLarge, len(payload))
	}
	return frame.Split(payload, c.cfg.BlockSize)
}

func (c *core) enqueue(p *peerLink, blocks [][]byte) {
	p.out.push(blocks)
	c.pump(p)
}

// pump starts the next block for p unless one is already awaiting its ack.
func (c *core) pump(p *peerLink) {
	for !p.gone && !p.out.inflight {
		m := p.out.head()
		if m == nil {
			return
		}
		if err := c.link.WriteBlock(p.ref, m.blocks[m.next]); err != nil {
			c.failHead(p, transportErr(p.ref, "write_block", err), m.next > 0)
			continue
		}
		observability.RecordLinkBlock(c.role, observability.DirectionOut)
		p.out.inflight = true
		p.out.seq++
		seq := p.out.seq
		p.out.timer = time.AfterFunc(c.cfg.AckTimeout, func() {
			_ = c.worker.Post(func() { c.ackTimeout(p, seq) })
		})
		return
	}
}

func (c *core) written(p *peerLink, err error) {
	if !p.out.inflight {
		c.logger.Debug().
			Str("component", "session.core.written").
			Str("peer", string(p.ref)).
			Msg("ack with nothing in flight")
		return
	}
	p.out.settle()
	m := p.out.head()
	if err != nil {
		c.failHead(p, transportErr(p.ref, "write_block", err), m.next > 0)
		c.pump(p)
		return
	}
	m.next++
	if m.next == len(m.blocks) {
		p.out.pop()
		observability.RecordLinkMessage(c.role, observability.DirectionOut)
	}
	c.pump(p)
}

func (c *core) ackTimeout(p *peerLink, seq uint64) {
	if p.gone || !p.out.inflight || p.out.seq != seq {
		return
	}
	p.out.settle()
	// the unacknowledged block may already be on the air
	c.failHead(p, transportErr(p.ref, "write_block", ErrAckTimeout), true)
	c.pump(p)
}

// failHead drops the message being written. If none of its blocks reached
// the peer, later messages still go out. Otherwise the peer is mid-reassembly
// and would splice the next message onto this one, so the link is cut.
func (c *core) failHead(p *peerLink, err error, onAir bool) {
	p.out.pop()
	observability.RecordLinkError(c.role, "transport")
	c.logger.Warn().
		Str("component", "session.core.failHead").
		Str("peer", string(p.ref)).
		Bool("partial", onAir).
		Err(err).
		Msg("message send failed")
	c.emitErr(err)
	if onAir && c.cut != nil {
		c.cut(p)
	}
}

// receive feeds one block and returns a payload once a message completes.
// Framing errors only reset this peer's buffer.
func (c *core) receive(p *peerLink, block []byte) ([]byte, bool) {
	observability.RecordLinkBlock(c.role, observability.DirectionIn)
	payload, done, err := p.rx.Push(block)
	if err != nil {
		observability.RecordLinkError(c.role, "framing")
		c.logger.Warn().
			Str("component", "session.core.receive").
			Str("peer", string(p.ref)).
			Err(err).
			Msg("framing error; message discarded")
		return nil, false
	}
	if !done {
		return nil, false
	}
	observability.RecordLinkMessage(c.role, observability.DirectionIn)
	return payload, true
}

// abort cancels in-flight send and reassembly for p.
func (c *core) abort(p *peerLink) {
	if dropped := p.out.drop(); dropped > 0 {
		c.logger.Debug().
			Str("component", "session.core.abort").
			Str("peer", string(p.ref)).
			Int("dropped", dropped).
			Msg("pending sends discarded")
	}
	p.rx.Reset()
}

func (c *core) shutdown(teardown func()) error {
	var err error
	c.once.Do(func() {
		close(c.quit)
		_ = c.worker.Post(teardown)
		c.worker.Close()
		err = c.link.Close()
		<-c.pumped
		c.events.Drain(serial.DrainTimeout)
	})
	if err != nil {
		return fmt.Errorf("session: close radio: %w", err)
	}
	return nil
}
