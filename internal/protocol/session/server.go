package session

import (
	"bytes"
	"context"
	"slices"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/serial"
)

// Server is the host role: it advertises, admits up to MaxPeers guests and
// exchanges whole messages with each of them independently.
type Server struct {
	*core
	radio HostRadio
	state ServerState
	peers []*peerLink
}

func NewServer(radio HostRadio, cfg Config) *Server {
	cfg = cfg.WithDefaults()
	s := &Server{
		core:  newCore(observability.RoleHost, radio, cfg),
		radio: radio,
	}
	s.cut = s.cutPeer
	go s.pumpRadio(s.handleRadio)
	return s
}

// Events delivers session events in the order they happened.
func (s *Server) Events() <-chan Event {
	return s.events.Events()
}

func (s *Server) StartListening() error {
	return s.worker.Post(func() {
		if s.state != ServerStopped {
			s.logger.Warn().
				Str("component", "session.Server.StartListening").
				Stringer("state", s.state).
				Msg("already started")
			return
		}
		s.state = ServerStarting
		if err := s.radio.StartAdvertising(); err != nil {
			s.state = ServerStopped
			s.emitErr(transportErr("", "start_advertising", err))
		}
	})
}

// Send queues payload for peer. Messages to one peer are written in call order.
func (s *Server) Send(peer PeerRef, payload []byte) error {
	blocks, err := s.split(payload)
	if err != nil {
		return err
	}
	return s.worker.Post(func() {
		p := s.find(peer)
		if p == nil || p.state != PeerConnected {
			s.emitErr(transportErr(peer, "send", ErrNotConnected))
			return
		}
		s.enqueue(p, blocks)
	})
}

// Broadcast queues payload for each of peers, or for every connected peer
// when peers is nil.
func (s *Server) Broadcast(peers []PeerRef, payload []byte) error {
	blocks, err := s.split(payload)
	if err != nil {
		return err
	}
	return s.worker.Post(func() {
		for _, p := range s.peers {
			if p.state != PeerConnected {
				continue
			}
			if peers != nil && !slices.Contains(peers, p.ref) {
				continue
			}
			s.enqueue(p, blocks)
		}
	})
}

// Disconnect tears down one peer. The resulting EventPeerDisconnected has a
// nil Err.
func (s *Server) Disconnect(peer PeerRef) error {
	return s.worker.Post(func() { s.requestDisconnect(peer) })
}

// ConnectedPeers lists peers that completed the join handshake, oldest first.
func (s *Server) ConnectedPeers(ctx context.Context) ([]PeerRef, error) {
	return serial.Query(ctx, s.worker, s.cfg.QueryTimeout, func() []PeerRef {
		out := make([]PeerRef, 0, len(s.peers))
		for _, p := range s.peers {
			if p.state == PeerConnected {
				out = append(out, p.ref)
			}
		}
		return out
	})
}

func (s *Server) State(ctx context.Context) (ServerState, error) {
	return serial.Query(ctx, s.worker, s.cfg.QueryTimeout, func() ServerState { return s.state })
}

// Stop stops advertising and disconnects every peer. EventStopped follows
// once all peers are gone.
func (s *Server) Stop() error {
	return s.worker.Post(func() {
		if s.state == ServerStopped || s.state == ServerStopping {
			return
		}
		s.state = ServerStopping
		if err := s.radio.StopAdvertising(); err != nil {
			s.logger.Warn().Str("component", "session.Server.Stop").Err(err).Msg("stop advertising")
		}
		for _, p := range slices.Clone(s.peers) {
			s.requestDisconnect(p.ref)
		}
		s.maybeStopped()
	})
}

// Close releases the radio. Events is closed after the last queued event, or
// after serial.DrainTimeout if nobody reads the tail.
func (s *Server) Close() error {
	return s.shutdown(func() {
		for _, p := range s.peers {
			p.gone = true
			s.abort(p)
		}
		s.peers = nil
		s.state = ServerStopped
	})
}

func (s *Server) handleRadio(ev RadioEvent) {
	switch ev.Kind {
	case RadioAdvertising:
		s.onAdvertising(ev)
	case RadioConnected:
		s.admit(ev.Peer)
	case RadioDisconnected:
		s.onDisconnected(ev.Peer)
	case RadioBlockReceived:
		s.onBlock(ev.Peer, ev.Block)
	case RadioBlockWritten:
		if p := s.find(ev.Peer); p != nil {
			s.written(p, ev.Err)
		}
	default:
		s.logger.Debug().
			Str("component", "session.Server.handleRadio").
			Stringer("kind", ev.Kind).
			Msg("ignored radio event")
	}
}

func (s *Server) onAdvertising(ev RadioEvent) {
	if s.state != ServerStarting {
		return
	}
	if ev.Err != nil {
		s.state = ServerStopped
		s.emitErr(transportErr("", "start_advertising", ev.Err))
		return
	}
	s.state = ServerWaitingForConnections
	s.logger.Info().Str("component", "session.Server.onAdvertising").Msg("waiting for connections")
	s.emit(Event{Kind: EventListening})
}

// admit applies admission control at radio-connect time. A refused peer is
// disconnected before it ever becomes visible.
func (s *Server) admit(peer PeerRef) {
	if s.state != ServerWaitingForConnections {
		s.refuse(peer, "not accepting connections")
		return
	}
	if s.find(peer) != nil {
		return
	}
	if len(s.peers) >= s.cfg.MaxPeers {
		s.refuse(peer, "roster full")
		return
	}
	s.peers = append(s.peers, newPeerLink(peer, PeerJoining, s.cfg.limits()))
	s.logger.Debug().
		Str("component", "session.Server.admit").
		Str("peer", string(peer)).
		Int("peers", len(s.peers)).
		Msg("awaiting join sign")
}

func (s *Server) refuse(peer PeerRef, reason string) {
	observability.RecordLinkError(s.role, "refused")
	s.logger.Warn().
		Str("component", "session.Server.refuse").
		Str("peer", string(peer)).
		Str("reason", reason).
		Msg("connection refused")
	if err := s.radio.Disconnect(peer); err != nil {
		s.emitErr(transportErr(peer, "disconnect", err))
	}
}

func (s *Server) onBlock(peer PeerRef, block []byte) {
	p := s.find(peer)
	if p == nil {
		return
	}
	payload, ok := s.receive(p, block)
	if !ok {
		return
	}
	switch p.state {
	case PeerJoining:
		if !bytes.Equal(payload, JoinSign) {
			s.logger.Warn().
				Str("component", "session.Server.onBlock").
				Str("peer", string(peer)).
				Msg("payload before join sign dropped")
			return
		}
		p.state = PeerConnected
		p.joined = true
		s.logger.Info().Str("component", "session.Server.onBlock").Str("peer", string(peer)).Msg("peer joined")
		s.emit(Event{Kind: EventPeerConnected, Peer: peer})
	case PeerConnected:
		s.emit(Event{Kind: EventMessage, Peer: peer, Payload: payload})
	case PeerDisconnecting:
	}
}

func (s *Server) onDisconnected(peer PeerRef) {
	idx := s.indexOf(peer)
	if idx < 0 {
		return
	}
	p := s.peers[idx]
	s.peers = slices.Delete(s.peers, idx, idx+1)
	p.gone = true
	s.abort(p)

	if p.joined {
		var err error
		if p.state != PeerDisconnecting || p.cut {
			err = ErrUnexpectedDisconnect
		}
		s.logger.Info().
			Str("component", "session.Server.onDisconnected").
			Str("peer", string(peer)).
			AnErr("reason", err).
			Msg("peer disconnected")
		s.emit(Event{Kind: EventPeerDisconnected, Peer: peer, Err: err})
	}
	s.maybeStopped()
}

func (s *Server) requestDisconnect(peer PeerRef) {
	p := s.find(peer)
	if p == nil || p.state == PeerDisconnecting {
		return
	}
	p.state = PeerDisconnecting
	s.abort(p)
	if err := s.radio.Disconnect(peer); err != nil {
		s.emitErr(transportErr(peer, "disconnect", err))
		s.onDisconnected(peer)
	}
}

// cutPeer drops a peer whose outbound stream broke off mid-message.
func (s *Server) cutPeer(p *peerLink) {
	if p.gone {
		return
	}
	p.cut = true
	s.logger.Warn().
		Str("component", "session.Server.cutPeer").
		Str("peer", string(p.ref)).
		Msg("stream broken; dropping peer")
	s.requestDisconnect(p.ref)
}

func (s *Server) maybeStopped() {
	if s.state != ServerStopping || len(s.peers) > 0 {
		return
	}
	s.state = ServerStopped
	s.logger.Info().Str("component", "session.Server.maybeStopped").Msg("stopped")
	s.emit(Event{Kind: EventStopped})
}

func (s *Server) find(peer PeerRef) *peerLink {
	if idx := s.indexOf(peer); idx >= 0 {
		return s.peers[idx]
	}
	return nil
}

func (s *Server) indexOf(peer PeerRef) int {
	return slices.IndexFunc(s.peers, func(p *peerLink) bool { return p.ref == peer })
}
