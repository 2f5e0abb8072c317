package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, "server: {}\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", s.HTTPPort, DefaultHTTPPort)
	}
	if s.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", s.GRPCPort, DefaultGRPCPort)
	}
	if s.WS.PongWait != DefaultPongWait {
		t.Errorf("ws.pong_wait: got %v, want %v", s.WS.PongWait, DefaultPongWait)
	}
	if s.Countdown.Tick != DefaultCountdownTick {
		t.Errorf("countdown.tick: got %v, want %v", s.Countdown.Tick, DefaultCountdownTick)
	}
	if s.Ledger.StartingBalance != DefaultStartingBalance {
		t.Errorf("ledger.starting_balance: got %v, want %v", s.Ledger.StartingBalance, DefaultStartingBalance)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  http_port: 9000
  grpc_port: 9001
  frontend_addr: "http://localhost:3000"
  log_level: debug
  ws:
    send_buffer: 8
    write_timeout: 2s
    pong_wait: 30s
    read_limit: 1024
    inbound_rate: 5
    inbound_burst: 10
  countdown:
    tick: 500ms
    max_duration: 30
  ledger:
    starting_balance: 12.5
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != 9000 || s.GRPCPort != 9001 {
		t.Errorf("ports: got %d/%d, want 9000/9001", s.HTTPPort, s.GRPCPort)
	}
	if s.FrontendAddr != "http://localhost:3000" {
		t.Errorf("frontend_addr: got %q", s.FrontendAddr)
	}
	if s.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel: got %v, want debug", s.SlogLevel())
	}
	if s.WS.SendBuffer != 8 || s.WS.WriteTimeout != 2*time.Second || s.WS.PongWait != 30*time.Second {
		t.Errorf("ws: got %+v", s.WS)
	}
	if s.WS.ReadLimit != 1024 || s.WS.InboundRate != 5 || s.WS.InboundBurst != 10 {
		t.Errorf("ws limits: got %+v", s.WS)
	}
	if s.Countdown.Tick != 500*time.Millisecond || s.Countdown.MaxDuration != 30 {
		t.Errorf("countdown: got %+v", s.Countdown)
	}
	if s.Ledger.StartingBalance != 12.5 {
		t.Errorf("ledger.starting_balance: got %v, want 12.5", s.Ledger.StartingBalance)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AICEBREAKER_HTTP_PORT", "9100")
	t.Setenv("AICEBREAKER_FRONTEND_ADDR", "https://game.example")
	t.Setenv("AICEBREAKER_WS_PONG_WAIT", "15s")
	t.Setenv("AICEBREAKER_COUNTDOWN_MAX_DURATION", "12")

	p := writeConfig(t, `server:
  http_port: 9000
  ws:
    send_buffer: 8
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Server
	if s.HTTPPort != 9100 {
		t.Errorf("http_port: got %d, want 9100 from env", s.HTTPPort)
	}
	if s.FrontendAddr != "https://game.example" {
		t.Errorf("frontend_addr: got %q", s.FrontendAddr)
	}
	if s.WS.PongWait != 15*time.Second {
		t.Errorf("ws.pong_wait: got %v, want 15s", s.WS.PongWait)
	}
	if s.WS.SendBuffer != 8 {
		t.Errorf("ws.send_buffer: got %d, want 8 from file", s.WS.SendBuffer)
	}
	if s.Countdown.MaxDuration != 12 {
		t.Errorf("countdown.max_duration: got %d, want 12", s.Countdown.MaxDuration)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("AICEBREAKER_HTTP_PORT", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid env override, got nil")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"http port out of range", "server:\n  http_port: 70000\n"},
		{"negative grpc port", "server:\n  grpc_port: -1\n"},
		{"same ports", "server:\n  http_port: 9000\n  grpc_port: 9000\n"},
		{"unknown log level", "server:\n  log_level: loud\n"},
		{"zero send buffer", "server:\n  ws:\n    send_buffer: 0\n"},
		{"burst missing", "server:\n  ws:\n    inbound_rate: 3\n    inbound_burst: 0\n"},
		{"zero tick", "server:\n  countdown:\n    tick: 0s\n"},
		{"negative balance", "server:\n  ledger:\n    starting_balance: -1\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.content)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestRestartRequired(t *testing.T) {
	prev := defaults()
	next := defaults()
	next.Server.LogLevel = "debug"
	if got := RestartRequired(prev, next); len(got) != 0 {
		t.Errorf("log_level only: got %v, want none", got)
	}

	next.Server.HTTPPort = 9999
	next.Server.WS.SendBuffer = 1
	got := RestartRequired(prev, next)
	if len(got) != 2 || got[0] != "http_port" || got[1] != "ws" {
		t.Errorf("RestartRequired: got %v, want [http_port ws]", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "server:\n  log_level: info\n")
	current, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	go Watch(ctx, p, current, func(_, next *Config) { changes <- next }) //nolint:errcheck

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("server:\n  log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case next := <-changes:
			if next.Server.SlogLevel() == slog.LevelDebug {
				return
			}
		case <-deadline:
			t.Fatal("no reload with log_level debug observed")
		}
	}
}
