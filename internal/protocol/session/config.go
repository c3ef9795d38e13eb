package session

import (
	"time"

	"github.com/danmuck/quizlink/internal/protocol/frame"
)

// JoinSign is the payload a guest sends once its link is writable. The host
// treats the peer as connected only after receiving it.
var JoinSign = []byte("012345")

// Config defines link defaults for both roles.
type Config struct {
	// BlockSize is the radio's maximum write size.
	BlockSize       int
	AckTimeout      time.Duration
	QueryTimeout    time.Duration
	MaxPeers        int
	MaxPayloadBytes uint32
	EventBuffer     int
}

func DefaultConfig() Config {
	return Config{
		BlockSize:       20,
		AckTimeout:      2 * time.Second,
		QueryTimeout:    5 * time.Second,
		MaxPeers:        3,
		MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
		EventBuffer:     64,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BlockSize <= 0 {
		c.BlockSize = d.BlockSize
	}
	if c.BlockSize < frame.MinBlockSize {
		c.BlockSize = frame.MinBlockSize
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = d.MaxPeers
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = d.MaxPayloadBytes
	}
	if c.EventBuffer < 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

func (c Config) limits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxPayloadBytes}
}
