package wsradio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/danmuck/quizlink/internal/serial"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Host accepts guest websockets while advertising. Mount it on the path the
// guests are configured with.
type Host struct {
	cfg      Config
	upgrader websocket.Upgrader
	mailbox  *serial.Dispatcher[session.RadioEvent]

	mu          sync.Mutex
	advertising bool
	closed      bool
	conns       map[session.PeerRef]*wsConn
}

var _ session.HostRadio = (*Host)(nil)

func NewHost(cfg Config) *Host {
	cfg = cfg.withDefaults()
	return &Host{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mailbox: serial.NewDispatcher[session.RadioEvent](0),
		conns:   make(map[session.PeerRef]*wsConn),
	}
}

// advert is the body a plain GET on the link path answers with.
type advert struct {
	Advertising bool `json:"advertising"`
	Peers       int  `json:"peers"`
}

func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	open := h.advertising && !h.closed
	peers := len(h.conns)
	h.mu.Unlock()

	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "application/json")
		if !open {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(advert{Advertising: open, Peers: peers})
		return
	}
	if !open {
		http.Error(w, "not advertising", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("component", "wsradio.host").Err(err).Msg("upgrade failed")
		return
	}

	ref := session.PeerRef(uuid.NewString())
	c := newConn(ref, ws, h.cfg, h.emit, h.forget)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[ref] = c
	h.mu.Unlock()

	log.Debug().Str("component", "wsradio.host").Str("peer", string(ref)).Str("remote", r.RemoteAddr).Msg("guest connected")
	h.emit(session.RadioEvent{Kind: session.RadioConnected, Peer: ref})
	c.start()
}

func (h *Host) Events() <-chan session.RadioEvent {
	return h.mailbox.Events()
}

func (h *Host) StartAdvertising() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.advertising = true
	h.mu.Unlock()
	h.emit(session.RadioEvent{Kind: session.RadioAdvertising})
	return nil
}

func (h *Host) StopAdvertising() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.advertising = false
	return nil
}

func (h *Host) WriteBlock(peer session.PeerRef, block []byte) error {
	if len(block) > h.cfg.MaxBlock {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, len(block), h.cfg.MaxBlock)
	}
	c, err := h.conn(peer)
	if err != nil {
		return err
	}
	return c.enqueue(block)
}

func (h *Host) Disconnect(peer session.PeerRef) error {
	c, err := h.conn(peer)
	if err != nil {
		return err
	}
	go c.hangUp()
	return nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.advertising = false
	conns := make([]*wsConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.hangUp()
	}
	h.mailbox.Abort()
	return nil
}

func (h *Host) conn(peer session.PeerRef) (*wsConn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	c, ok := h.conns[peer]
	if !ok {
		return nil, ErrNotConnected
	}
	return c, nil
}

func (h *Host) forget(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.ref] == c {
		delete(h.conns, c.ref)
	}
}

func (h *Host) emit(ev session.RadioEvent) {
	h.mailbox.Emit(ev)
}
