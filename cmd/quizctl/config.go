package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/quizlink/internal/quiz"
	"github.com/danmuck/quizlink/internal/radio/wsradio"
	"github.com/danmuck/quizlink/internal/server"
)

type fileConfig struct {
	Name         string   `toml:"name"`
	Listen       string   `toml:"listen"`
	LinkPath     string   `toml:"link_path"`
	AdvertiseURL string   `toml:"advertise_url"`
	CORSOrigins  []string `toml:"cors_origins"`
	Hosts        []string `toml:"hosts"`
	Deck         string   `toml:"deck"`
	Questions    int      `toml:"questions"`
	AnswerWindow string   `toml:"answer_window"`
	RoundDelay   string   `toml:"round_delay"`
	MaxPlayers   int      `toml:"max_players"`
	BlockSize    int      `toml:"block_size"`
	AckTimeout   string   `toml:"ack_timeout"`
}

type appConfig struct {
	Server       server.Config
	AdvertiseURL string
	Hosts        []string
	Deck         string
	Questions    int
	AnswerWindow time.Duration
	Host         quiz.HostConfig
	Guest        quiz.GuestConfig
	Radio        wsradio.Config
}

func defaultAppConfig() appConfig {
	return appConfig{
		Server: server.Config{
			Name:     "quizlink",
			Addr:     ":9400",
			LinkPath: server.DefaultLink,
		},
		Questions:    5,
		AnswerWindow: 20 * time.Second,
		Host:         quiz.DefaultHostConfig(),
		Guest:        quiz.DefaultGuestConfig(),
		Radio:        wsradio.DefaultConfig(),
	}
}

// loadAppConfig overlays the keys present in path on top of the defaults. An
// empty path yields the defaults.
func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load quizctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return appConfig{}, fmt.Errorf("load quizctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Server.Name = name
		}
	}
	if meta.IsDefined("listen") {
		cfg.Server.Addr = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("link_path") {
		p := strings.TrimSpace(raw.LinkPath)
		if !strings.HasPrefix(p, "/") {
			return appConfig{}, fmt.Errorf("link_path must start with /: %q", p)
		}
		cfg.Server.LinkPath = p
	}
	if meta.IsDefined("advertise_url") {
		cfg.AdvertiseURL = strings.TrimSpace(raw.AdvertiseURL)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Server.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	if meta.IsDefined("hosts") {
		cfg.Hosts = normalizeList(raw.Hosts)
	}
	if meta.IsDefined("deck") {
		cfg.Deck = strings.TrimSpace(raw.Deck)
	}
	if meta.IsDefined("questions") {
		if raw.Questions < 1 {
			return appConfig{}, fmt.Errorf("questions must be at least 1, got %d", raw.Questions)
		}
		cfg.Questions = raw.Questions
	}
	if meta.IsDefined("answer_window") {
		d, err := parseDuration("answer_window", raw.AnswerWindow)
		if err != nil {
			return appConfig{}, err
		}
		cfg.AnswerWindow = d
	}
	if meta.IsDefined("round_delay") {
		d, err := parseDuration("round_delay", raw.RoundDelay)
		if err != nil {
			return appConfig{}, err
		}
		cfg.Host.RoundDelay = d
	}
	if meta.IsDefined("max_players") {
		cfg.Host.MaxPlayers = raw.MaxPlayers
	}
	if meta.IsDefined("block_size") {
		cfg.Host.Session.BlockSize = raw.BlockSize
		cfg.Guest.Session.BlockSize = raw.BlockSize
		cfg.Radio.MaxBlock = raw.BlockSize
	}
	if meta.IsDefined("ack_timeout") {
		d, err := parseDuration("ack_timeout", raw.AckTimeout)
		if err != nil {
			return appConfig{}, err
		}
		cfg.Host.Session.AckTimeout = d
		cfg.Guest.Session.AckTimeout = d
	}

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
