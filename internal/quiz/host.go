package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/quizlink/internal/observability"
	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/danmuck/quizlink/internal/questions"
	"github.com/danmuck/quizlink/internal/serial"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danmuck/quizlink/internal/quiz"

type HostState uint8

const (
	HostIdle HostState = iota
	HostWaitingMember
	HostQuiz
	HostFinished
	HostStopped
)

func (s HostState) String() string {
	switch s {
	case HostIdle:
		return "idle"
	case HostWaitingMember:
		return "waiting_member"
	case HostQuiz:
		return "quiz"
	case HostFinished:
		return "finished"
	case HostStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a host for status endpoints.
type Status struct {
	Session   string   `json:"session"`
	State     string   `json:"state"`
	Round     int      `json:"round"`
	Remaining int      `json:"remaining"`
	Players   []Player `json:"players"`
}

// Host is the authoritative quiz orchestrator.
type Host struct {
	cfg      HostConfig
	server   *session.Server
	codec    protocol.Codec
	source   questions.Source
	worker   *serial.Worker
	events   *serial.Dispatcher[Event]
	logger   zerolog.Logger
	tracer   trace.Tracer
	instance string
	me       protocol.PlayerID

	quit   chan struct{}
	pumped chan struct{}
	once   sync.Once

	// worker-owned
	state     HostState
	stopping  bool
	roster    roster
	minted    int
	question  questions.Question
	roundOpen bool
	round     int
	remaining int
	myChoice  protocol.Choice
	delay     *time.Timer
	delaySeq  uint64
	span      trace.Span
}

// NewHost creates a host whose own player is always roster position 0.
func NewHost(radio session.HostRadio, source questions.Source, cfg HostConfig) (*Host, error) {
	cfg = cfg.withDefaults()
	instance := uuid.NewString()
	h := &Host{
		cfg:      cfg,
		codec:    protocol.NewCodec(cfg.IDWidth),
		source:   source,
		worker:   serial.NewWorker(),
		events:   serial.NewDispatcher[Event](cfg.EventBuffer),
		logger:   log.With().Str("session", instance).Str("role", observability.RoleHost).Logger(),
		tracer:   otel.Tracer(tracerName),
		instance: instance,
		quit:     make(chan struct{}),
		pumped:   make(chan struct{}),
	}
	me, err := h.mintID()
	if err != nil {
		h.worker.Close()
		h.events.Abort()
		return nil, err
	}
	h.me = me
	h.roster.add(LocalRef(), me)
	h.server = session.NewServer(radio, cfg.Session)
	go h.pump()
	return h, nil
}

func (h *Host) Events() <-chan Event {
	return h.events.Events()
}

// Me is the host's own player id.
func (h *Host) Me() protocol.PlayerID {
	return h.me
}

// StartWaiting begins advertising. EventWaitingStarted follows once guests
// can connect.
func (h *Host) StartWaiting() error {
	return h.server.StartListening()
}

// MaxQuestions bounds a quiz so every score fits the one-byte wire field.
const MaxQuestions = 0xff

// StartQuiz moves from waiting to quiz with n questions.
func (h *Host) StartQuiz(ctx context.Context, n int) error {
	if n < 1 || n > MaxQuestions {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidCount, n, MaxQuestions)
	}
	res, err := serial.Query(ctx, h.worker, h.cfg.Session.QueryTimeout, func() error {
		return h.startQuiz(n)
	})
	if err != nil {
		return err
	}
	return res
}

// Answer submits the host player's choice for the current round.
func (h *Host) Answer(choice protocol.Choice) error {
	if !choice.Valid() {
		return fmt.Errorf("%w: %d", protocol.ErrInvalidChoice, uint8(choice))
	}
	return h.worker.Post(func() { h.handleAnswer(LocalRef(), choice) })
}

func (h *Host) Roster(ctx context.Context) ([]Player, error) {
	return serial.Query(ctx, h.worker, h.cfg.Session.QueryTimeout, h.roster.players)
}

func (h *Host) State(ctx context.Context) (HostState, error) {
	return serial.Query(ctx, h.worker, h.cfg.Session.QueryTimeout, func() HostState { return h.state })
}

func (h *Host) Status(ctx context.Context) (Status, error) {
	return serial.Query(ctx, h.worker, h.cfg.Session.QueryTimeout, func() Status {
		return Status{
			Session:   h.instance,
			State:     h.state.String(),
			Round:     h.round,
			Remaining: h.remaining,
			Players:   h.roster.players(),
		}
	})
}

// Stop ends the session normally: guests are disconnected and EventStopped
// follows with a nil Err.
func (h *Host) Stop() error {
	return h.worker.Post(func() {
		if h.state == HostStopped || h.stopping {
			return
		}
		h.stopping = true
		h.cancelRound()
		if h.state == HostIdle {
			h.state = HostStopped
			h.emit(Event{Kind: EventStopped})
		}
		if err := h.server.Stop(); err != nil {
			h.logger.Warn().Str("component", "quiz.Host.Stop").Err(err).Msg("stop link")
		}
	})
}

// Close releases the link. Events is closed after the last queued event, or
// after serial.DrainTimeout if nobody reads the tail.
func (h *Host) Close() error {
	var err error
	h.once.Do(func() {
		close(h.quit)
		_ = h.worker.Post(h.cancelRound)
		h.worker.Close()
		err = h.server.Close()
		<-h.pumped
		h.events.Drain(serial.DrainTimeout)
	})
	return err
}

func (h *Host) pump() {
	defer close(h.pumped)
	events := h.server.Events()
	for {
		select {
		case <-h.quit:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.worker.Post(func() { h.handleSession(ev) }); err != nil {
				return
			}
		}
	}
}

func (h *Host) handleSession(ev session.Event) {
	switch ev.Kind {
	case session.EventListening:
		h.onListening()
	case session.EventPeerConnected:
		h.onJoin(ev.Peer)
	case session.EventPeerDisconnected:
		h.onLeave(ev.Peer, ev.Err)
	case session.EventMessage:
		h.onMessage(ev.Peer, ev.Payload)
	case session.EventStopped:
		h.onStopped()
	case session.EventError:
		h.logger.Warn().Str("component", "quiz.Host.handleSession").Err(ev.Err).Msg("link error")
	}
}

func (h *Host) onListening() {
	if h.state != HostIdle {
		return
	}
	h.state = HostWaitingMember
	me := h.roster.get(LocalRef()).player
	h.logger.Info().Str("component", "quiz.Host.onListening").Str("player", string(me.ID)).Msg("waiting for members")
	h.emit(Event{Kind: EventWaitingStarted, Player: me})
	h.emit(Event{Kind: EventRosterChanged, Players: h.roster.players()})
}

func (h *Host) onJoin(peer session.PeerRef) {
	if h.state != HostWaitingMember || h.stopping {
		h.logger.Info().
			Str("component", "quiz.Host.onJoin").
			Str("peer", string(peer)).
			Stringer("state", h.state).
			Msg("late joiner refused")
		_ = h.server.Disconnect(peer)
		return
	}
	if h.roster.size() >= h.cfg.MaxPlayers {
		_ = h.server.Disconnect(peer)
		return
	}
	id, err := h.mintID()
	if err != nil {
		h.logger.Error().Str("component", "quiz.Host.onJoin").Err(err).Msg("cannot assign player id")
		_ = h.server.Disconnect(peer)
		return
	}
	h.roster.add(RemoteRef(peer), id)
	h.logger.Info().
		Str("component", "quiz.Host.onJoin").
		Str("peer", string(peer)).
		Str("player", string(id)).
		Msg("player joined")
	h.send(peer, protocol.PlayerIDMsg{ID: id})
	h.broadcast(protocol.PlayerChanged{Players: h.roster.ids()})
	h.emit(Event{Kind: EventRosterChanged, Players: h.roster.players()})
}

func (h *Host) onLeave(peer session.PeerRef, reason error) {
	ref := RemoteRef(peer)
	if h.roster.get(ref) == nil {
		return
	}
	logger := h.logger.With().Str("component", "quiz.Host.onLeave").Str("peer", string(peer)).Logger()

	switch {
	case h.stopping || h.state == HostFinished || h.state == HostStopped:
		h.roster.disconnect(ref)
		logger.Debug().AnErr("reason", reason).Msg("player left after quiz")
	case h.state == HostWaitingMember || h.state == HostIdle:
		h.roster.remove(ref)
		logger.Info().AnErr("reason", reason).Msg("player left lobby")
		h.broadcast(protocol.PlayerChanged{Players: h.roster.ids()})
		h.emit(Event{Kind: EventRosterChanged, Players: h.roster.players()})
	case h.state == HostQuiz:
		num, ok := h.roster.disconnect(ref)
		if !ok {
			return
		}
		if h.roster.connectedGuests() == 0 {
			logger.Error().AnErr("reason", reason).Msg("last guest left mid-quiz")
			h.fail(ErrNoPlayersLeft)
			return
		}
		logger.Warn().AnErr("reason", reason).Int("number", num).Msg("player left mid-quiz")
		h.emit(Event{Kind: EventPlayerDisconnected, Number: num})
		h.broadcast(protocol.PlayerDisconnected{Number: num})
		if h.roundOpen && h.roster.complete() {
			h.resolveRound()
		}
	}
}

func (h *Host) onMessage(peer session.PeerRef, payload []byte) {
	msg, err := h.codec.Decode(payload)
	if err != nil {
		observability.RecordLinkError(observability.RoleHost, "decode")
		h.logger.Warn().Str("component", "quiz.Host.onMessage").Str("peer", string(peer)).Err(err).Msg("dropped message")
		return
	}
	switch m := msg.(type) {
	case protocol.AnswerMsg:
		h.handleAnswer(RemoteRef(peer), m.Choice)
	default:
		h.logger.Warn().
			Str("component", "quiz.Host.onMessage").
			Str("peer", string(peer)).
			Stringer("kind", msg.Kind()).
			Msg("unexpected message from guest")
	}
}

func (h *Host) onStopped() {
	if h.state == HostStopped {
		return
	}
	h.cancelRound()
	h.state = HostStopped
	h.logger.Info().Str("component", "quiz.Host.onStopped").Msg("stopped")
	h.emit(Event{Kind: EventStopped})
}

func (h *Host) startQuiz(n int) error {
	if h.state != HostWaitingMember || h.stopping {
		return fmt.Errorf("%w: %s", ErrInvalidState, h.state)
	}
	if h.roster.connectedGuests() == 0 {
		return ErrNoGuests
	}
	h.state = HostQuiz
	h.remaining = n
	h.logger.Info().
		Str("component", "quiz.Host.startQuiz").
		Int("questions", n).
		Int("players", h.roster.size()).
		Msg("quiz started")
	h.nextQuestion()
	return nil
}

func (h *Host) nextQuestion() {
	q, ok := h.source.Next()
	if !ok {
		h.logger.Warn().Str("component", "quiz.Host.nextQuestion").Int("remaining", h.remaining).Msg("question source exhausted")
		h.finish()
		return
	}
	h.question = q
	h.roundOpen = true
	h.round++
	h.myChoice = protocol.ChoiceTimeout
	h.roster.resetAnswers()
	_, h.span = h.tracer.Start(context.Background(), "quiz.round",
		trace.WithAttributes(
			attribute.String("quiz.session", h.instance),
			attribute.Int("quiz.round", h.round),
		))
	h.emit(Event{Kind: EventQuestion, Question: q.Text, Round: h.round})
	h.broadcast(protocol.QuestionMsg{Text: q.Text})
}

func (h *Host) handleAnswer(ref PlayerRef, choice protocol.Choice) {
	if h.state != HostQuiz || !h.roundOpen {
		h.logger.Debug().Str("component", "quiz.Host.handleAnswer").Stringer("ref", ref).Msg("no open round")
		return
	}
	e := h.roster.get(ref)
	if e == nil || !e.player.Connected {
		return
	}
	if e.answered {
		h.logger.Debug().
			Str("component", "quiz.Host.handleAnswer").
			Str("player", string(e.player.ID)).
			Msg("duplicate answer ignored")
		return
	}
	e.answered = true
	correct := h.question.IsCorrect(choice)
	if correct {
		e.player.Score++
	}
	if ref.IsLocal() {
		h.myChoice = choice
	}
	observability.RecordAnswer(correct)
	num, _ := h.roster.number(ref)
	h.logger.Debug().
		Str("component", "quiz.Host.handleAnswer").
		Str("player", string(e.player.ID)).
		Stringer("choice", choice).
		Bool("correct", correct).
		Msg("answer accepted")
	h.emit(Event{Kind: EventPlayerAnswered, Number: num})
	h.broadcast(protocol.PlayerAnswered{Number: num})

	if h.roster.complete() {
		h.resolveRound()
	}
}

func (h *Host) resolveRound() {
	h.roundOpen = false
	h.remaining--
	observability.RecordRound()
	correct := h.question.Correct
	h.emit(Event{Kind: EventRoundResolved, Correct: h.question.IsCorrect(h.myChoice), Choice: correct})
	h.broadcast(protocol.CorrectAnswer{Choice: correct})
	h.broadcast(protocol.PlayersState{Standings: h.roster.standings()})
	h.emit(Event{Kind: EventRosterChanged, Players: h.roster.players()})
	if h.span != nil {
		h.span.SetAttributes(attribute.Int("quiz.remaining", h.remaining))
		h.span.End()
		h.span = nil
	}

	h.delaySeq++
	seq := h.delaySeq
	h.delay = time.AfterFunc(h.cfg.RoundDelay, func() {
		_ = h.worker.Post(func() { h.afterDelay(seq) })
	})
}

func (h *Host) afterDelay(seq uint64) {
	if seq != h.delaySeq || h.state != HostQuiz || h.stopping {
		return
	}
	h.delay = nil
	if h.remaining <= 0 {
		h.finish()
		return
	}
	h.nextQuestion()
}

func (h *Host) finish() {
	h.state = HostFinished
	h.roundOpen = false
	ranking := h.roster.ranking()
	h.logger.Info().Str("component", "quiz.Host.finish").Int("rounds", h.round).Msg("quiz finished")
	h.emit(Event{Kind: EventResult, Players: ranking})
	h.broadcast(protocol.Result{Standings: standingsOf(ranking)})
}

// fail ends the session without further broadcasts.
func (h *Host) fail(err error) {
	h.cancelRound()
	h.state = HostStopped
	h.stopping = true
	h.emit(Event{Kind: EventStopped, Err: err})
	if stopErr := h.server.Stop(); stopErr != nil {
		h.logger.Warn().Str("component", "quiz.Host.fail").Err(stopErr).Msg("stop link")
	}
}

func (h *Host) cancelRound() {
	h.delaySeq++
	if h.delay != nil {
		h.delay.Stop()
		h.delay = nil
	}
	if h.span != nil {
		h.span.End()
		h.span = nil
	}
	h.roundOpen = false
}

func (h *Host) mintID() (protocol.PlayerID, error) {
	h.minted++
	id, err := protocol.MintPlayerID(h.minted, h.cfg.IDWidth)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlayerIDsExhausted, err)
	}
	return id, nil
}

func (h *Host) emit(ev Event) {
	h.events.Emit(ev)
}

func (h *Host) send(peer session.PeerRef, msg protocol.Message) {
	payload, err := h.codec.Encode(msg)
	if err != nil {
		h.logger.Error().Str("component", "quiz.Host.send").Stringer("kind", msg.Kind()).Err(err).Msg("encode failed")
		return
	}
	if err := h.server.Send(peer, payload); err != nil {
		h.logger.Warn().Str("component", "quiz.Host.send").Str("peer", string(peer)).Err(err).Msg("send failed")
	}
}

// broadcast sends msg to every connected guest.
func (h *Host) broadcast(msg protocol.Message) {
	peers := h.roster.peers()
	if len(peers) == 0 {
		return
	}
	payload, err := h.codec.Encode(msg)
	if err != nil {
		h.logger.Error().Str("component", "quiz.Host.broadcast").Stringer("kind", msg.Kind()).Err(err).Msg("encode failed")
		return
	}
	if err := h.server.Broadcast(peers, payload); err != nil {
		h.logger.Warn().Str("component", "quiz.Host.broadcast").Err(err).Msg("broadcast failed")
	}
}
