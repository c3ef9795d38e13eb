package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/quizlink/internal/testutil/testlog"
)

func TestLoadAppConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAppConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Name != "quiz.local" {
		t.Fatalf("unexpected name: %q", cfg.Server.Name)
	}
	if cfg.Server.Addr != "127.0.0.1:9400" || cfg.Server.LinkPath != "/link" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0] != "http://127.0.0.1:9400/link" {
		t.Fatalf("unexpected hosts: %+v", cfg.Hosts)
	}
	if cfg.Questions != 3 {
		t.Fatalf("unexpected questions: %d", cfg.Questions)
	}
	if cfg.AnswerWindow != 15*time.Second {
		t.Fatalf("unexpected answer window: %v", cfg.AnswerWindow)
	}
	if cfg.Host.RoundDelay != 3*time.Second {
		t.Fatalf("unexpected round delay: %v", cfg.Host.RoundDelay)
	}
	if cfg.Host.MaxPlayers != 3 {
		t.Fatalf("unexpected max players: %d", cfg.Host.MaxPlayers)
	}
	if cfg.Host.Session.BlockSize != 32 || cfg.Guest.Session.BlockSize != 32 || cfg.Radio.MaxBlock != 32 {
		t.Fatalf("block size not applied everywhere")
	}
	if cfg.Guest.Session.AckTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected ack timeout: %v", cfg.Guest.Session.AckTimeout)
	}
}

func TestLoadAppConfigEmptyPathIsDefault(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAppConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := defaultAppConfig()
	if cfg.Server.Addr != def.Server.Addr || cfg.Questions != def.Questions || cfg.AnswerWindow != def.AnswerWindow {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadAppConfigRejects(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad_duration": `answer_window = "soon"`,
		"bad_link":     `link_path = "link"`,
		"no_questions": `questions = 0`,
		"unknown_key":  `colour = "blue"`,
	}
	dir := t.TempDir()
	for name, body := range cases {
		path := filepath.Join(dir, name+".toml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := loadAppConfig(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTemplatesLoad(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	for _, kind := range []string{"host", "guest"} {
		path := filepath.Join(dir, kind+".toml")
		if err := writeTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		if _, err := loadAppConfig(path); err != nil {
			t.Fatalf("%s template does not load: %v", kind, err)
		}
		if err := writeTemplate(path, kind, false); err == nil {
			t.Fatalf("%s: expected refusal to overwrite", kind)
		}
	}
	if _, err := template("referee"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
