package wsradio

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/danmuck/quizlink/internal/serial"
	"github.com/rs/zerolog/log"
)

// Guest finds hosts by probing the configured link URLs and dials the one the
// session picks. Peer refs are the link URLs themselves.
type Guest struct {
	cfg     Config
	mailbox *serial.Dispatcher[session.RadioEvent]

	mu       sync.Mutex
	closed   bool
	stopScan context.CancelFunc
	conn     *wsConn
	dialing  bool
}

var _ session.GuestRadio = (*Guest)(nil)

func NewGuest(cfg Config) *Guest {
	return &Guest{
		cfg:     cfg.withDefaults(),
		mailbox: serial.NewDispatcher[session.RadioEvent](0),
	}
}

func (g *Guest) Events() <-chan session.RadioEvent {
	return g.mailbox.Events()
}

// StartDiscovery probes every configured host until StopDiscovery. Each host
// that answers as advertising is reported once per scan.
func (g *Guest) StartDiscovery() error {
	if len(g.cfg.Hosts) == 0 {
		return ErrNoHosts
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.stopScan != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.stopScan = cancel
	go g.scan(ctx)
	return nil
}

func (g *Guest) StopDiscovery() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopScan != nil {
		g.stopScan()
		g.stopScan = nil
	}
	return nil
}

func (g *Guest) scan(ctx context.Context) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	seen := make(map[string]bool, len(g.cfg.Hosts))
	for attempt := 1; ; attempt++ {
		for _, host := range g.cfg.Hosts {
			if seen[host] {
				continue
			}
			if g.probe(ctx, host) {
				seen[host] = true
				g.emit(session.RadioEvent{Kind: session.RadioDiscovered, Peer: session.PeerRef(host)})
			}
		}
		if len(seen) == len(g.cfg.Hosts) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(nextProbeDelay(g.cfg.Probe, attempt, rng)):
		}
	}
}

func (g *Guest) probe(ctx context.Context, host string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host, nil)
	if err != nil {
		return false
	}
	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		log.Trace().Str("component", "wsradio.guest").Str("host", host).Err(err).Msg("probe failed")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Connect dials the host in the background; the outcome arrives as
// RadioConnected, with Err set on failure.
func (g *Guest) Connect(peer session.PeerRef) error {
	target, err := linkURL(string(peer))
	if err != nil {
		return err
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	if g.conn != nil || g.dialing {
		g.mu.Unlock()
		return fmt.Errorf("wsradio: already connected")
	}
	g.dialing = true
	g.mu.Unlock()

	go g.dial(peer, target)
	return nil
}

func (g *Guest) dial(peer session.PeerRef, target string) {
	ws, resp, err := g.cfg.Dialer.Dial(target, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	g.mu.Lock()
	g.dialing = false
	if err == nil && g.closed {
		g.mu.Unlock()
		_ = ws.Close()
		return
	}
	if err != nil {
		g.mu.Unlock()
		g.emit(session.RadioEvent{Kind: session.RadioConnected, Peer: peer, Err: err})
		return
	}
	c := newConn(peer, ws, g.cfg, g.emit, g.forget)
	g.conn = c
	g.mu.Unlock()

	g.emit(session.RadioEvent{Kind: session.RadioConnected, Peer: peer})
	c.start()
}

func (g *Guest) WriteBlock(peer session.PeerRef, block []byte) error {
	if len(block) > g.cfg.MaxBlock {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, len(block), g.cfg.MaxBlock)
	}
	c, err := g.current(peer)
	if err != nil {
		return err
	}
	return c.enqueue(block)
}

func (g *Guest) Disconnect(peer session.PeerRef) error {
	c, err := g.current(peer)
	if err != nil {
		return err
	}
	go c.hangUp()
	return nil
}

func (g *Guest) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	if g.stopScan != nil {
		g.stopScan()
		g.stopScan = nil
	}
	c := g.conn
	g.mu.Unlock()

	if c != nil {
		c.hangUp()
	}
	g.mailbox.Abort()
	return nil
}

func (g *Guest) current(peer session.PeerRef) (*wsConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if g.conn == nil || g.conn.ref != peer {
		return nil, ErrNotConnected
	}
	return g.conn, nil
}

func (g *Guest) forget(c *wsConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == c {
		g.conn = nil
	}
}

func (g *Guest) emit(ev session.RadioEvent) {
	g.mailbox.Emit(ev)
}

// linkURL maps an http(s) link address onto its websocket scheme.
func linkURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("wsradio: parse host %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("wsradio: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
