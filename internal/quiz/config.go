package quiz

import (
	"time"

	"github.com/danmuck/quizlink/internal/protocol"
	"github.com/danmuck/quizlink/internal/protocol/session"
)

type HostConfig struct {
	Session session.Config
	IDWidth int
	// MaxPlayers counts the host's own player.
	MaxPlayers  int
	RoundDelay  time.Duration
	EventBuffer int
}

func DefaultHostConfig() HostConfig {
	return HostConfig{
		Session:     session.DefaultConfig(),
		IDWidth:     protocol.DefaultIDWidth,
		MaxPlayers:  4,
		RoundDelay:  5 * time.Second,
		EventBuffer: 64,
	}
}

func (c HostConfig) withDefaults() HostConfig {
	d := DefaultHostConfig()
	if c.IDWidth <= 0 {
		c.IDWidth = d.IDWidth
	}
	if c.MaxPlayers < 2 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.RoundDelay < 0 {
		c.RoundDelay = 0
	}
	if c.EventBuffer < 0 {
		c.EventBuffer = d.EventBuffer
	}
	c.Session.MaxPeers = c.MaxPlayers - 1
	c.Session = c.Session.WithDefaults()
	return c
}

type GuestConfig struct {
	Session     session.Config
	IDWidth     int
	EventBuffer int
}

func DefaultGuestConfig() GuestConfig {
	return GuestConfig{
		Session:     session.DefaultConfig(),
		IDWidth:     protocol.DefaultIDWidth,
		EventBuffer: 64,
	}
}

func (c GuestConfig) withDefaults() GuestConfig {
	d := DefaultGuestConfig()
	if c.IDWidth <= 0 {
		c.IDWidth = d.IDWidth
	}
	if c.EventBuffer < 0 {
		c.EventBuffer = d.EventBuffer
	}
	c.Session = c.Session.WithDefaults()
	return c
}
