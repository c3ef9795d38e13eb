package wsradio

import (
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected   = errors.New("wsradio: not connected")
	ErrBlockTooLarge  = errors.New("wsradio: block exceeds write size")
	ErrSendBufferFull = errors.New("wsradio: send buffer full")
	ErrClosed         = errors.New("wsradio: radio closed")
	ErrNoHosts        = errors.New("wsradio: no host addresses configured")
)

// BackoffConfig paces discovery probes.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

type Config struct {
	MaxBlock   int
	SendBuffer int
	WriteWait  time.Duration
	PongWait   time.Duration
	// Hosts are base URLs a guest probes, e.g. http://10.0.0.5:9400/link.
	Hosts      []string
	Probe      BackoffConfig
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

func DefaultConfig() Config {
	return Config{
		MaxBlock:   20,
		SendBuffer: 64,
		WriteWait:  5 * time.Second,
		PongWait:   30 * time.Second,
		Probe: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     3 * time.Second,
			Jitter:       true,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxBlock <= 0 {
		c.MaxBlock = d.MaxBlock
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.Probe.InitialDelay <= 0 {
		c.Probe = d.Probe
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 2 * time.Second}
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	return c
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// nextProbeDelay returns the wait before probe round attempt (1-based).
func nextProbeDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return cfg.InitialDelay
	}
	mult := max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}
