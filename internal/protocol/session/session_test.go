package session_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/danmuck/quizlink/internal/protocol/frame"
	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/danmuck/quizlink/internal/radio/loopback"
	"github.com/danmuck/quizlink/internal/testutil/testlog"
)

func testConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.AckTimeout = 100 * time.Millisecond
	cfg.QueryTimeout = time.Second
	return cfg
}

func waitKind(t *testing.T, ch <-chan session.Event, kind session.EventKind) session.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func listen(t *testing.T, m *loopback.Medium, cfg session.Config) *session.Server {
	t.Helper()
	srv := session.NewServer(m.Host(), cfg)
	t.Cleanup(func() { _ = srv.Close() })
	if err := srv.StartListening(); err != nil {
		t.Fatalf("start listening: %v", err)
	}
	waitKind(t, srv.Events(), session.EventListening)
	return srv
}

func join(t *testing.T, m *loopback.Medium, name string, cfg session.Config) *session.Client {
	t.Helper()
	c := session.NewClient(m.NewGuest(name), cfg)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.StartDiscovery(); err != nil {
		t.Fatalf("start discovery: %v", err)
	}
	ev := waitKind(t, c.Events(), session.EventDiscovered)
	if err := c.Connect(ev.Peer); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitKind(t, c.Events(), session.EventPeerConnected)
	return c
}

func TestHandshakeThenOrderedMessages(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	cli := join(t, m, "guest-a", cfg)

	ev := waitKind(t, srv.Events(), session.EventPeerConnected)
	if ev.Peer != "guest-a" {
		t.Fatalf("unexpected peer %q", ev.Peer)
	}

	payloads := [][]byte{
		bytes.Repeat([]byte("x"), 97),
		{},
		[]byte("short"),
		bytes.Repeat([]byte{0xab}, 41),
	}
	for _, p := range payloads {
		if err := cli.Send(p); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	for i, want := range payloads {
		got := waitKind(t, srv.Events(), session.EventMessage)
		if got.Peer != "guest-a" || !bytes.Equal(got.Payload, want) {
			t.Fatalf("message %d mismatch: peer=%q len=%d want len=%d", i, got.Peer, len(got.Payload), len(want))
		}
	}

	if err := srv.Send("guest-a", []byte("welcome aboard, this reply spans blocks")); err != nil {
		t.Fatalf("server send: %v", err)
	}
	reply := waitKind(t, cli.Events(), session.EventMessage)
	if string(reply.Payload) != "welcome aboard, this reply spans blocks" {
		t.Fatalf("unexpected reply %q", reply.Payload)
	}

	peers, err := srv.ConnectedPeers(context.Background())
	if err != nil || len(peers) != 1 || peers[0] != "guest-a" {
		t.Fatalf("connected peers=%v err=%v", peers, err)
	}
	state, err := cli.State(context.Background())
	if err != nil || state != session.ClientConnected {
		t.Fatalf("client state=%v err=%v", state, err)
	}
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	a := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)
	b := join(t, m, "b", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	if err := srv.Broadcast(nil, []byte("round one begins now")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	for _, c := range []*session.Client{a, b} {
		ev := waitKind(t, c.Events(), session.EventMessage)
		if string(ev.Payload) != "round one begins now" {
			t.Fatalf("unexpected payload %q", ev.Payload)
		}
	}
}

func TestAdmissionRefusesBeyondMaxPeers(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	cfg.MaxPeers = 1
	srv := listen(t, m, cfg)
	join(t, m, "first", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	late := join(t, m, "second", cfg)
	ev := waitKind(t, late.Events(), session.EventPeerDisconnected)
	if !errors.Is(ev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("expected refused guest to see unexpected disconnect, got %v", ev.Err)
	}
	peers, err := srv.ConnectedPeers(context.Background())
	if err != nil || len(peers) != 1 || peers[0] != "first" {
		t.Fatalf("connected peers=%v err=%v", peers, err)
	}
}

func TestUnexpectedAndRequestedDisconnect(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	a := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)
	join(t, m, "b", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	m.DropConnection("a")
	ev := waitKind(t, srv.Events(), session.EventPeerDisconnected)
	if ev.Peer != "a" || !errors.Is(ev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("expected unexpected disconnect of a, got %+v", ev)
	}
	cev := waitKind(t, a.Events(), session.EventPeerDisconnected)
	if !errors.Is(cev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("expected guest to see unexpected disconnect, got %v", cev.Err)
	}

	if err := srv.Disconnect("b"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	ev = waitKind(t, srv.Events(), session.EventPeerDisconnected)
	if ev.Peer != "b" || ev.Err != nil {
		t.Fatalf("expected requested disconnect of b, got %+v", ev)
	}
}

func TestClientRequestedDisconnect(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	cli := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	if err := cli.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	ev := waitKind(t, cli.Events(), session.EventPeerDisconnected)
	if ev.Err != nil {
		t.Fatalf("expected requested disconnect, got %v", ev.Err)
	}
	sev := waitKind(t, srv.Events(), session.EventPeerDisconnected)
	if !errors.Is(sev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("host did not request it, got %v", sev.Err)
	}
}

// untilDisconnected fails if any message arrives before the link drops.
func untilDisconnected(t *testing.T, ch <-chan session.Event) session.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed before disconnect")
			}
			switch ev.Kind {
			case session.EventMessage:
				t.Fatalf("message delivered after a cut-off send: len=%d %q", len(ev.Payload), ev.Payload)
			case session.EventPeerDisconnected:
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for disconnect")
		}
	}
}

func TestAckTimeoutMidMessageDropsPeer(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	cli := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	m.HoldAcks(loopback.HostRef, true)
	if err := srv.Send("a", bytes.Repeat([]byte("z"), 60)); err != nil {
		t.Fatalf("send: %v", err)
	}
	ev := waitKind(t, srv.Events(), session.EventError)
	var te *session.TransportError
	if !errors.As(ev.Err, &te) || !errors.Is(ev.Err, session.ErrAckTimeout) || !errors.Is(ev.Err, session.ErrTransport) {
		t.Fatalf("expected ack timeout transport error, got %v", ev.Err)
	}
	m.HoldAcks(loopback.HostRef, false)

	// Payloads whose framed size adds up to the rest of the cut message.
	for _, p := range []string{"delivered-one", "delivered-two", "sixsix", "after"} {
		_ = srv.Send("a", []byte(p))
	}

	sev := waitKind(t, srv.Events(), session.EventPeerDisconnected)
	if sev.Peer != "a" || !errors.Is(sev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("expected unexpected disconnect of a, got %+v", sev)
	}
	cev := untilDisconnected(t, cli.Events())
	if !errors.Is(cev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("guest should see an unexpected disconnect, got %v", cev.Err)
	}

	peers, err := srv.ConnectedPeers(context.Background())
	if err != nil || len(peers) != 0 {
		t.Fatalf("cut peer still listed: peers=%v err=%v", peers, err)
	}
}

func TestClientAckTimeoutMidMessageDropsHost(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	cli := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	m.HoldAcks("a", true)
	if err := cli.Send(bytes.Repeat([]byte("q"), 45)); err != nil {
		t.Fatalf("send: %v", err)
	}
	ev := waitKind(t, cli.Events(), session.EventError)
	if !errors.Is(ev.Err, session.ErrAckTimeout) {
		t.Fatalf("expected ack timeout, got %v", ev.Err)
	}
	cev := waitKind(t, cli.Events(), session.EventPeerDisconnected)
	if !errors.Is(cev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("expected unexpected disconnect, got %v", cev.Err)
	}
	if sev := untilDisconnected(t, srv.Events()); !errors.Is(sev.Err, session.ErrUnexpectedDisconnect) {
		t.Fatalf("host should see an unexpected disconnect, got %v", sev.Err)
	}
	state, err := cli.State(context.Background())
	if err != nil || state != session.ClientStopped {
		t.Fatalf("state=%v err=%v", state, err)
	}
}

func TestJoinSignOverPayloadLimitFailsConnect(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	listen(t, m, cfg)

	small := testConfig()
	small.MaxPayloadBytes = 4
	cli := session.NewClient(m.NewGuest("tiny"), small)
	t.Cleanup(func() { _ = cli.Close() })
	if err := cli.StartDiscovery(); err != nil {
		t.Fatalf("start discovery: %v", err)
	}
	found := waitKind(t, cli.Events(), session.EventDiscovered)
	if err := cli.Connect(found.Peer); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ev := waitKind(t, cli.Events(), session.EventError)
	var te *session.TransportError
	if !errors.As(ev.Err, &te) || te.Op != "connect" || !errors.Is(ev.Err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected connect failure for oversized join sign, got %v", ev.Err)
	}
}

func TestWriteFailureSurfacesTransportError(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	cli := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	m.FailWrites(loopback.HostRef, fmt.Errorf("antenna unplugged"))
	_ = srv.Send("a", []byte("lost"))
	ev := waitKind(t, srv.Events(), session.EventError)
	if !errors.Is(ev.Err, session.ErrTransport) {
		t.Fatalf("expected transport error, got %v", ev.Err)
	}

	m.FailWrites(loopback.HostRef, nil)
	_ = srv.Send("a", []byte("delivered"))
	msg := waitKind(t, cli.Events(), session.EventMessage)
	if string(msg.Payload) != "delivered" {
		t.Fatalf("unexpected payload %q", msg.Payload)
	}
}

func TestSendToUnknownPeerReportsError(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	srv := listen(t, m, testConfig())
	_ = srv.Send("ghost", []byte("hello"))
	ev := waitKind(t, srv.Events(), session.EventError)
	if !errors.Is(ev.Err, session.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", ev.Err)
	}
}

func TestStopDisconnectsPeersThenStops(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	srv := listen(t, m, cfg)
	cli := join(t, m, "a", cfg)
	waitKind(t, srv.Events(), session.EventPeerConnected)

	if err := srv.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	ev := waitKind(t, srv.Events(), session.EventPeerDisconnected)
	if ev.Err != nil {
		t.Fatalf("expected requested disconnect, got %v", ev.Err)
	}
	waitKind(t, srv.Events(), session.EventStopped)
	waitKind(t, cli.Events(), session.EventPeerDisconnected)
	state, err := srv.State(context.Background())
	if err != nil || state != session.ServerStopped {
		t.Fatalf("state=%v err=%v", state, err)
	}
}

func TestSendRejectsOversizedPayload(t *testing.T) {
	testlog.Start(t)
	m := loopback.NewMedium()
	cfg := testConfig()
	cfg.MaxPayloadBytes = 16
	srv := listen(t, m, cfg)
	if err := srv.Send("a", make([]byte, 17)); err == nil {
		t.Fatalf("expected oversized payload to be rejected")
	}
}
