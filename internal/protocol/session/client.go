package session

import (
	"context"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/serial"
)

// Client is the guest role: it discovers hosts, connects to one, sends the
// join sign and then exchanges whole messages with that host.
type Client struct {
	*core
	radio  GuestRadio
	state  ClientState
	target PeerRef
	host   *peerLink
}

func NewClient(radio GuestRadio, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		core:  newCore(observability.RoleGuest, radio, cfg),
		radio: radio,
	}
	c.cut = c.cutHost
	go c.pumpRadio(c.handleRadio)
	return c
}

func (c *Client) Events() <-chan Event {
	return c.events.Events()
}

func (c *Client) StartDiscovery() error {
	return c.worker.Post(func() {
		if c.state != ClientStopped {
			c.logger.Warn().
				Str("component", "session.Client.StartDiscovery").
				Stringer("state", c.state).
				Msg("discovery not started")
			return
		}
		c.startDiscovery()
	})
}

// Connect stops discovery and connects to peer.
func (c *Client) Connect(peer PeerRef) error {
	return c.worker.Post(func() {
		if c.state != ClientDiscovering && c.state != ClientStopped {
			c.emitErr(transportErr(peer, "connect", ErrInvalidState))
			return
		}
		if c.state == ClientDiscovering {
			if err := c.radio.StopDiscovery(); err != nil {
				c.logger.Debug().Str("component", "session.Client.Connect").Err(err).Msg("stop discovery")
			}
		}
		c.state = ClientConnecting
		c.target = peer
		c.logger.Info().Str("component", "session.Client.Connect").Str("peer", string(peer)).Msg("connecting")
		if err := c.radio.Connect(peer); err != nil {
			c.connectFailed(peer, err)
		}
	})
}

// Send queues payload for the connected host.
func (c *Client) Send(payload []byte) error {
	blocks, err := c.split(payload)
	if err != nil {
		return err
	}
	return c.worker.Post(func() {
		if c.state != ClientConnected || c.host == nil {
			c.emitErr(transportErr(c.target, "send", ErrNotConnected))
			return
		}
		c.enqueue(c.host, blocks)
	})
}

// Disconnect ends the connection, or discovery if not yet connected.
func (c *Client) Disconnect() error {
	return c.worker.Post(func() {
		switch c.state {
		case ClientDiscovering:
			if err := c.radio.StopDiscovery(); err != nil {
				c.emitErr(transportErr("", "stop_discovery", err))
			}
			c.state = ClientStopped
			c.emit(Event{Kind: EventStopped})
		case ClientConnecting:
			_ = c.radio.Disconnect(c.target)
			c.target = ""
			c.state = ClientStopped
			c.emit(Event{Kind: EventStopped})
		case ClientConnected:
			c.hangUp()
		}
	})
}

func (c *Client) hangUp() {
	c.state = ClientDisconnecting
	c.abort(c.host)
	if err := c.radio.Disconnect(c.target); err != nil {
		c.emitErr(transportErr(c.target, "disconnect", err))
		c.onDisconnected(c.target)
	}
}

// cutHost drops the host link after a send broke off mid-message.
func (c *Client) cutHost(p *peerLink) {
	if c.host != p || c.state != ClientConnected {
		return
	}
	p.cut = true
	c.logger.Warn().
		Str("component", "session.Client.cutHost").
		Str("peer", string(p.ref)).
		Msg("stream broken; dropping host")
	c.hangUp()
}

func (c *Client) State(ctx context.Context) (ClientState, error) {
	return serial.Query(ctx, c.worker, c.cfg.QueryTimeout, func() ClientState { return c.state })
}

func (c *Client) Close() error {
	return c.shutdown(func() {
		if c.host != nil {
			c.host.gone = true
			c.abort(c.host)
			c.host = nil
		}
		c.state = ClientStopped
	})
}

func (c *Client) startDiscovery() {
	c.state = ClientDiscovering
	if err := c.radio.StartDiscovery(); err != nil {
		c.state = ClientStopped
		c.emitErr(transportErr("", "start_discovery", err))
	}
}

func (c *Client) handleRadio(ev RadioEvent) {
	switch ev.Kind {
	case RadioDiscovered:
		if c.state == ClientDiscovering {
			c.emit(Event{Kind: EventDiscovered, Peer: ev.Peer})
		}
	case RadioConnected:
		c.onConnected(ev)
	case RadioDisconnected:
		c.onDisconnected(ev.Peer)
	case RadioBlockReceived:
		if c.host == nil || c.host.ref != ev.Peer {
			return
		}
		if payload, ok := c.receive(c.host, ev.Block); ok {
			c.emit(Event{Kind: EventMessage, Peer: ev.Peer, Payload: payload})
		}
	case RadioBlockWritten:
		if c.host != nil && c.host.ref == ev.Peer {
			c.written(c.host, ev.Err)
		}
	default:
		c.logger.Debug().
			Str("component", "session.Client.handleRadio").
			Stringer("kind", ev.Kind).
			Msg("ignored radio event")
	}
}

func (c *Client) onConnected(ev RadioEvent) {
	if c.state != ClientConnecting || ev.Peer != c.target {
		if ev.Err == nil {
			_ = c.radio.Disconnect(ev.Peer)
		}
		return
	}
	if ev.Err != nil {
		c.connectFailed(ev.Peer, ev.Err)
		return
	}
	blocks, err := c.split(JoinSign)
	if err != nil {
		_ = c.radio.Disconnect(ev.Peer)
		c.connectFailed(ev.Peer, err)
		return
	}
	c.state = ClientConnected
	c.host = newPeerLink(ev.Peer, PeerConnected, c.cfg.limits())
	c.host.joined = true
	c.enqueue(c.host, blocks)
	c.logger.Info().Str("component", "session.Client.onConnected").Str("peer", string(ev.Peer)).Msg("connected")
	c.emit(Event{Kind: EventPeerConnected, Peer: ev.Peer})
}

// connectFailed reports the failure and goes back to discovering.
func (c *Client) connectFailed(peer PeerRef, err error) {
	observability.RecordLinkError(c.role, "transport")
	c.emitErr(transportErr(peer, "connect", err))
	c.target = ""
	c.startDiscovery()
}

func (c *Client) onDisconnected(peer PeerRef) {
	if c.host == nil || c.host.ref != peer {
		if c.state == ClientConnecting && peer == c.target {
			c.connectFailed(peer, ErrUnexpectedDisconnect)
		}
		return
	}
	var err error
	if c.state != ClientDisconnecting || c.host.cut {
		err = ErrUnexpectedDisconnect
	}
	c.host.gone = true
	c.abort(c.host)
	c.host = nil
	c.state = ClientStopped
	c.logger.Info().
		Str("component", "session.Client.onDisconnected").
		Str("peer", string(peer)).
		AnErr("reason", err).
		Msg("disconnected")
	c.emit(Event{Kind: EventPeerDisconnected, Peer: peer, Err: err})
}
