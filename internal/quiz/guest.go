package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/danmuck/quizlink/internal/serial"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type GuestState uint8

const (
	GuestIdle GuestState = iota
	GuestDiscovering
	GuestConnecting
	GuestJoined
	GuestFinished
	GuestStopped
)

func (s GuestState) String() string {
	switch s {
	case GuestIdle:
		return "idle"
	case GuestDiscovering:
		return "discovering"
	case GuestConnecting:
		return "connecting"
	case GuestJoined:
		return "joined"
	case GuestFinished:
		return "finished"
	case GuestStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Guest mirrors a host's broadcasts and submits the local player's answers.
type Guest struct {
	cfg    GuestConfig
	client *session.Client
	codec  protocol.Codec
	worker *serial.Worker
	events *serial.Dispatcher[Event]
	logger zerolog.Logger

	quit   chan struct{}
	pumped chan struct{}
	once   sync.Once

	// worker-owned
	state      GuestState
	stopping   bool
	me         Player
	roster     []Player
	round      int
	roundOpen  bool
	answered   bool
	myChoice   protocol.Choice
	resultSeen bool
}

func NewGuest(radio session.GuestRadio, cfg GuestConfig) *Guest {
	cfg = cfg.withDefaults()
	g := &Guest{
		cfg:    cfg,
		client: session.NewClient(radio, cfg.Session),
		codec:  protocol.NewCodec(cfg.IDWidth),
		worker: serial.NewWorker(),
		events: serial.NewDispatcher[Event](cfg.EventBuffer),
		logger: log.With().Str("session", uuid.NewString()).Str("role", observability.RoleGuest).Logger(),
		quit:   make(chan struct{}),
		pumped: make(chan struct{}),
	}
	go g.pump()
	return g
}

func (g *Guest) Events() <-chan Event {
	return g.events.Events()
}

// DiscoverHost looks for a host and joins the first one found.
func (g *Guest) DiscoverHost() error {
	return g.worker.Post(func() {
		if g.state != GuestIdle {
			return
		}
		if err := g.client.StartDiscovery(); err != nil {
			g.logger.Error().Str("component", "quiz.Guest.DiscoverHost").Err(err).Msg("start discovery")
			return
		}
		g.state = GuestDiscovering
	})
}

// Answer submits choice for the open question. Only the first answer of a
// round is sent.
func (g *Guest) Answer(choice protocol.Choice) error {
	if !choice.Valid() {
		return fmt.Errorf("%w: %d", protocol.ErrInvalidChoice, uint8(choice))
	}
	return g.worker.Post(func() { g.answer(choice) })
}

func (g *Guest) Roster(ctx context.Context) ([]Player, error) {
	return serial.Query(ctx, g.worker, g.cfg.Session.QueryTimeout, func() []Player {
		return append([]Player(nil), g.roster...)
	})
}

// Me returns the local player once the host has assigned an id.
func (g *Guest) Me(ctx context.Context) (Player, error) {
	return serial.Query(ctx, g.worker, g.cfg.Session.QueryTimeout, func() Player { return g.me })
}

func (g *Guest) State(ctx context.Context) (GuestState, error) {
	return serial.Query(ctx, g.worker, g.cfg.Session.QueryTimeout, func() GuestState { return g.state })
}

// Stop leaves the host. EventStopped follows with a nil Err.
func (g *Guest) Stop() error {
	return g.worker.Post(func() {
		if g.state == GuestStopped || g.stopping {
			return
		}
		g.stopping = true
		if g.state == GuestIdle {
			g.stopped(nil)
			return
		}
		if err := g.client.Disconnect(); err != nil {
			g.logger.Warn().Str("component", "quiz.Guest.Stop").Err(err).Msg("disconnect")
		}
	})
}

func (g *Guest) Close() error {
	var err error
	g.once.Do(func() {
		close(g.quit)
		g.worker.Close()
		err = g.client.Close()
		<-g.pumped
		g.events.Drain(serial.DrainTimeout)
	})
	return err
}

func (g *Guest) pump() {
	defer close(g.pumped)
	events := g.client.Events()
	for {
		select {
		case <-g.quit:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := g.worker.Post(func() { g.handleSession(ev) }); err != nil {
				return
			}
		}
	}
}

func (g *Guest) handleSession(ev session.Event) {
	switch ev.Kind {
	case session.EventDiscovered:
		if g.state != GuestDiscovering {
			return
		}
		g.state = GuestConnecting
		g.logger.Info().Str("component", "quiz.Guest.handleSession").Str("host", string(ev.Peer)).Msg("host found")
		if err := g.client.Connect(ev.Peer); err != nil {
			g.logger.Error().Str("component", "quiz.Guest.handleSession").Err(err).Msg("connect")
		}
	case session.EventPeerConnected:
		g.logger.Info().Str("component", "quiz.Guest.handleSession").Str("host", string(ev.Peer)).Msg("link up")
	case session.EventMessage:
		g.onMessage(ev.Payload)
	case session.EventPeerDisconnected:
		g.onHostGone(ev.Err)
	case session.EventStopped:
		g.stopped(nil)
	case session.EventError:
		var te *session.TransportError
		if errors.As(ev.Err, &te) && te.Op == "connect" && g.state == GuestConnecting {
			// the link goes back to discovering on its own
			g.state = GuestDiscovering
		}
		g.logger.Warn().Str("component", "quiz.Guest.handleSession").Err(ev.Err).Msg("link error")
	}
}

func (g *Guest) onMessage(payload []byte) {
	msg, err := g.codec.Decode(payload)
	if err != nil {
		observability.RecordLinkError(observability.RoleGuest, "decode")
		g.logger.Warn().Str("component", "quiz.Guest.onMessage").Err(err).Msg("dropped message")
		return
	}
	g.logger.Trace().Str("component", "quiz.Guest.onMessage").Stringer("kind", msg.Kind()).Msg("received")

	switch m := msg.(type) {
	case protocol.PlayerIDMsg:
		g.state = GuestJoined
		g.me = Player{ID: m.ID, Connected: true, IsLocal: true}
		g.logger.Info().Str("component", "quiz.Guest.onMessage").Str("player", string(m.ID)).Msg("joined")
		g.emit(Event{Kind: EventJoined, Player: g.me})
	case protocol.PlayerChanged:
		g.roster = g.rosterOf(m.Players, nil)
		g.emit(Event{Kind: EventRosterChanged, Players: g.snapshot()})
	case protocol.QuestionMsg:
		g.round++
		g.roundOpen = true
		g.answered = false
		g.myChoice = protocol.ChoiceTimeout
		g.emit(Event{Kind: EventQuestion, Question: m.Text, Round: g.round})
	case protocol.PlayerAnswered:
		g.emit(Event{Kind: EventPlayerAnswered, Number: m.Number})
	case protocol.CorrectAnswer:
		g.roundOpen = false
		g.emit(Event{Kind: EventRoundResolved, Correct: g.answered && g.myChoice == m.Choice, Choice: m.Choice})
	case protocol.PlayersState:
		ids := make([]protocol.PlayerID, len(m.Standings))
		for i, s := range m.Standings {
			ids[i] = s.ID
		}
		g.roster = g.rosterOf(ids, m.Standings)
		if me := g.find(g.me.ID); me != nil {
			g.me.Score = me.Score
		}
		g.emit(Event{Kind: EventRosterChanged, Players: g.snapshot()})
	case protocol.PlayerDisconnected:
		if m.Number >= 0 && m.Number < len(g.roster) {
			g.roster[m.Number].Connected = false
		}
		g.emit(Event{Kind: EventPlayerDisconnected, Number: m.Number})
	case protocol.Result:
		g.resultSeen = true
		g.roundOpen = false
		g.state = GuestFinished
		players := make([]Player, len(m.Standings))
		for i, s := range m.Standings {
			players[i] = Player{ID: s.ID, Score: s.Score, Connected: true, IsLocal: s.ID == g.me.ID}
		}
		g.logger.Info().Str("component", "quiz.Guest.onMessage").Int("players", len(players)).Msg("result received")
		g.emit(Event{Kind: EventResult, Players: players})
	default:
		g.logger.Warn().Str("component", "quiz.Guest.onMessage").Stringer("kind", msg.Kind()).Msg("unexpected message from host")
	}
}

// rosterOf rebuilds the roster in host order, keeping known connection state.
func (g *Guest) rosterOf(ids []protocol.PlayerID, standings []protocol.Standing) []Player {
	out := make([]Player, len(ids))
	for i, id := range ids {
		p := Player{ID: id, Connected: true, IsLocal: id == g.me.ID}
		if prev := g.find(id); prev != nil {
			p.Connected = prev.Connected
		}
		if standings != nil {
			p.Score = standings[i].Score
		}
		out[i] = p
	}
	return out
}

func (g *Guest) find(id protocol.PlayerID) *Player {
	for i := range g.roster {
		if g.roster[i].ID == id {
			return &g.roster[i]
		}
	}
	return nil
}

func (g *Guest) snapshot() []Player {
	return append([]Player(nil), g.roster...)
}

func (g *Guest) answer(choice protocol.Choice) {
	if !g.roundOpen || g.answered {
		g.logger.Debug().Str("component", "quiz.Guest.answer").Stringer("choice", choice).Msg("answer ignored")
		return
	}
	payload, err := g.codec.Encode(protocol.AnswerMsg{Choice: choice})
	if err != nil {
		g.logger.Error().Str("component", "quiz.Guest.answer").Err(err).Msg("encode failed")
		return
	}
	if err := g.client.Send(payload); err != nil {
		g.logger.Warn().Str("component", "quiz.Guest.answer").Err(err).Msg("send failed")
		return
	}
	g.answered = true
	g.myChoice = choice
}

// onHostGone ends the session. Losing the host before the result is fatal.
func (g *Guest) onHostGone(reason error) {
	var err error
	if !g.resultSeen && !g.stopping && reason != nil {
		err = ErrHostLost
	}
	g.stopped(err)
}

func (g *Guest) stopped(err error) {
	if g.state == GuestStopped {
		return
	}
	g.state = GuestStopped
	g.roundOpen = false
	g.logger.Info().Str("component", "quiz.Guest.stopped").AnErr("reason", err).Msg("stopped")
	g.emit(Event{Kind: EventStopped, Err: err})
}

func (g *Guest) emit(ev Event) {
	g.events.Emit(ev)
}
