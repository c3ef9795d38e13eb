// Package loopback is an in-process radio medium. One host and any number of
// guests share a Medium; blocks are delivered in write order and acknowledged
// asynchronously, like a real notify/write radio.
package loopback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/danmuck/quizlink/internal/serial"
)

// HostRef is how guests see the host.
const HostRef session.PeerRef = "loopback-host"

var (
	ErrUnreachable   = errors.New("loopback: peer unreachable")
	ErrNotConnected  = errors.New("loopback: not connected")
	ErrBlockTooLarge = errors.New("loopback: block exceeds radio write size")
	ErrClosed        = errors.New("loopback: endpoint closed")
)

type Option func(*Medium)

// WithMaxBlock caps the size of a single write.
func WithMaxBlock(n int) Option {
	return func(m *Medium) { m.maxBlock = n }
}

// Medium connects one host with its guests.
type Medium struct {
	mu          sync.Mutex
	maxBlock    int
	host        *Host
	guests      map[session.PeerRef]*Guest
	advertising bool
	failWrites  map[session.PeerRef]error
	holdAcks    map[session.PeerRef]bool
}

func NewMedium(opts ...Option) *Medium {
	m := &Medium{
		maxBlock:   20,
		guests:     make(map[session.PeerRef]*Guest),
		failWrites: make(map[session.PeerRef]error),
		holdAcks:   make(map[session.PeerRef]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Host returns the medium's host endpoint, creating it on first use.
func (m *Medium) Host() *Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.host == nil {
		m.host = &Host{endpoint: newEndpoint(m, HostRef)}
	}
	return m.host
}

// NewGuest adds a guest endpoint that the host will see as name.
func (m *Medium) NewGuest(name string) *Guest {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &Guest{endpoint: newEndpoint(m, session.PeerRef(name))}
	m.guests[g.ref] = g
	return g
}

// DropConnection severs the guest's link as if the radio lost it; both sides
// see a disconnect neither requested.
func (m *Medium) DropConnection(guest session.PeerRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guests[guest]; ok {
		m.unlinkLocked(g)
	}
}

// FailWrites makes every WriteBlock from the endpoint named from return err.
// A nil err clears the fault.
func (m *Medium) FailWrites(from session.PeerRef, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failWrites, from)
		return
	}
	m.failWrites[from] = err
}

// HoldAcks delivers blocks written by from but never acknowledges them.
func (m *Medium) HoldAcks(from session.PeerRef, hold bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdAcks[from] = hold
}

func (m *Medium) unlinkLocked(g *Guest) {
	if !g.linked {
		return
	}
	g.linked = false
	g.emit(session.RadioEvent{Kind: session.RadioDisconnected, Peer: HostRef})
	if m.host != nil {
		m.host.emit(session.RadioEvent{Kind: session.RadioDisconnected, Peer: g.ref})
	}
}

func (m *Medium) writeLocked(from *endpoint, to *endpoint, block []byte) error {
	if from.closed {
		return ErrClosed
	}
	if err := m.failWrites[from.ref]; err != nil {
		return err
	}
	if len(block) > m.maxBlock {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, len(block), m.maxBlock)
	}
	to.emit(session.RadioEvent{Kind: session.RadioBlockReceived, Peer: from.ref, Block: append([]byte(nil), block...)})
	if !m.holdAcks[from.ref] {
		from.emit(session.RadioEvent{Kind: session.RadioBlockWritten, Peer: to.ref})
	}
	return nil
}

type endpoint struct {
	medium  *Medium
	ref     session.PeerRef
	mailbox *serial.Dispatcher[session.RadioEvent]
	closed  bool
}

func newEndpoint(m *Medium, ref session.PeerRef) *endpoint {
	return &endpoint{medium: m, ref: ref, mailbox: serial.NewDispatcher[session.RadioEvent](0)}
}

func (e *endpoint) emit(ev session.RadioEvent) {
	if !e.closed {
		e.mailbox.Emit(ev)
	}
}

func (e *endpoint) Events() <-chan session.RadioEvent {
	return e.mailbox.Events()
}

// Ref is the name other endpoints use for this one.
func (e *endpoint) Ref() session.PeerRef {
	return e.ref
}

// Host is the advertising side of the medium.
type Host struct {
	*endpoint
}

func (h *Host) StartAdvertising() error {
	m := h.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	m.advertising = true
	h.emit(session.RadioEvent{Kind: session.RadioAdvertising})
	for _, g := range m.guests {
		if g.discovering {
			g.emit(session.RadioEvent{Kind: session.RadioDiscovered, Peer: HostRef})
		}
	}
	return nil
}

func (h *Host) StopAdvertising() error {
	h.medium.mu.Lock()
	defer h.medium.mu.Unlock()
	h.medium.advertising = false
	return nil
}

func (h *Host) WriteBlock(peer session.PeerRef, block []byte) error {
	m := h.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[peer]
	if !ok || !g.linked {
		return ErrNotConnected
	}
	return m.writeLocked(h.endpoint, g.endpoint, block)
}

func (h *Host) Disconnect(peer session.PeerRef) error {
	m := h.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.guests[peer]
	if !ok || !g.linked {
		return ErrNotConnected
	}
	m.unlinkLocked(g)
	return nil
}

func (h *Host) Close() error {
	m := h.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.closed {
		return nil
	}
	m.advertising = false
	for _, g := range m.guests {
		m.unlinkLocked(g)
	}
	h.closed = true
	h.mailbox.Abort()
	return nil
}

// Guest is a discovering side of the medium.
type Guest struct {
	*endpoint
	discovering bool
	linked      bool
}

func (g *Guest) StartDiscovery() error {
	m := g.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.discovering = true
	if m.advertising {
		g.emit(session.RadioEvent{Kind: session.RadioDiscovered, Peer: HostRef})
	}
	return nil
}

func (g *Guest) StopDiscovery() error {
	g.medium.mu.Lock()
	defer g.medium.mu.Unlock()
	g.discovering = false
	return nil
}

func (g *Guest) Connect(peer session.PeerRef) error {
	m := g.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if peer != HostRef || m.host == nil || !m.advertising {
		return fmt.Errorf("%w: %s", ErrUnreachable, peer)
	}
	if g.linked {
		return nil
	}
	g.linked = true
	m.host.emit(session.RadioEvent{Kind: session.RadioConnected, Peer: g.ref})
	g.emit(session.RadioEvent{Kind: session.RadioConnected, Peer: HostRef})
	return nil
}

func (g *Guest) WriteBlock(peer session.PeerRef, block []byte) error {
	m := g.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if peer != HostRef || !g.linked || m.host == nil {
		return ErrNotConnected
	}
	return m.writeLocked(g.endpoint, m.host.endpoint, block)
}

func (g *Guest) Disconnect(peer session.PeerRef) error {
	m := g.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if peer != HostRef || !g.linked {
		return ErrNotConnected
	}
	m.unlinkLocked(g)
	return nil
}

func (g *Guest) Close() error {
	m := g.medium
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.closed {
		return nil
	}
	m.unlinkLocked(g)
	g.discovering = false
	g.closed = true
	g.mailbox.Abort()
	return nil
}

var (
	_ session.HostRadio  = (*Host)(nil)
	_ session.GuestRadio = (*Guest)(nil)
)
