package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/peer"
	"github.com/teslashibe/go-gaze/internal/transform"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}

	if cfg.Transform.MinWidth != 800 || cfg.Transform.MaxWidth != 1000 {
		t.Errorf("expected width range [800, 1000], got [%v, %v]", cfg.Transform.MinWidth, cfg.Transform.MaxWidth)
	}

	if cfg.Smoothing.Window != 10 || cfg.Smoothing.Slack != 3 {
		t.Errorf("expected window 10 slack 3, got %d %d", cfg.Smoothing.Window, cfg.Smoothing.Slack)
	}

	if cfg.Speaking.DebounceMs != 200 {
		t.Errorf("expected debounce_ms 200, got %d", cfg.Speaking.DebounceMs)
	}

	if cfg.Peer.Transport != peer.TransportNone {
		t.Errorf("expected transport none, got %s", cfg.Peer.Transport)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected default port 9000, got %d", cfg.Server.Port)
	}

	if cfg.Participant.StaleAfter != 5*time.Second {
		t.Errorf("expected stale_after 5s, got %v", cfg.Participant.StaleAfter)
	}

	if cfg.Limits() != transform.DefaultLimits() {
		t.Errorf("expected default limits, got %+v", cfg.Limits())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
participant:
  id: "7"
  condition: SizeChangeDiscrete
transform:
  min_width: 600
  border_color: [255, 0, 0]
smoothing:
  window: 5
speaking:
  threshold: 20
  debounce_ms: 150
session:
  export_dir: /tmp/results
peer:
  transport: relay
  url: ws://relay.local/room/a
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}

	ec := cfg.Engine()
	if ec.ParticipantID != "7" {
		t.Errorf("expected participant 7, got %s", ec.ParticipantID)
	}
	if ec.Transform.Condition != transform.SizeChangeDiscrete {
		t.Errorf("expected SizeChangeDiscrete, got %s", ec.Transform.Condition)
	}
	if ec.Transform.Limits.MinWidth != 600 || ec.Transform.Limits.MaxWidth != 1000 {
		t.Errorf("expected width range [600, 1000], got [%v, %v]", ec.Transform.Limits.MinWidth, ec.Transform.Limits.MaxWidth)
	}
	if ec.Transform.Limits.BorderColor != (transform.Color{R: 255}) {
		t.Errorf("expected red border, got %+v", ec.Transform.Limits.BorderColor)
	}
	if ec.Transform.Window != 5 || ec.Transform.Slack != 3 {
		t.Errorf("expected window 5 slack 3, got %d %d", ec.Transform.Window, ec.Transform.Slack)
	}
	if ec.Speaking.Threshold != 20 || ec.Speaking.Debounce != 150*time.Millisecond {
		t.Errorf("expected threshold 20 debounce 150ms, got %v %v", ec.Speaking.Threshold, ec.Speaking.Debounce)
	}

	if cfg.Session.ExportDir != "/tmp/results" {
		t.Errorf("expected export dir /tmp/results, got %s", cfg.Session.ExportDir)
	}

	rc := cfg.Relay()
	if rc.URL != "ws://relay.local/room/a" || rc.ParticipantID != "7" {
		t.Errorf("unexpected relay config: %+v", rc)
	}
	if rc.ReconnectBackoff != time.Second {
		t.Errorf("expected default reconnect backoff 1s, got %v", rc.ReconnectBackoff)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GOGAZE_SERVER_PORT", "7777")
	t.Setenv("GOGAZE_PARTICIPANT_ID", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777 from env, got %d", cfg.Server.Port)
	}
	if cfg.Participant.ID != "12" {
		t.Errorf("expected participant 12 from env, got %s", cfg.Participant.ID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid port too low",
			modify: func(c *Config) {
				c.Server.Port = 0
			},
			wantErr: true,
		},
		{
			name: "invalid port too high",
			modify: func(c *Config) {
				c.Server.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "empty participant",
			modify: func(c *Config) {
				c.Participant.ID = ""
			},
			wantErr: true,
		},
		{
			name: "unknown condition",
			modify: func(c *Config) {
				c.Participant.Condition = "9"
			},
			wantErr: true,
		},
		{
			name: "condition by name",
			modify: func(c *Config) {
				c.Participant.Condition = "position_and_size_change"
			},
			wantErr: false,
		},
		{
			name: "inverted width range",
			modify: func(c *Config) {
				c.Transform.MinWidth = 1200
			},
			wantErr: true,
		},
		{
			name: "short border color",
			modify: func(c *Config) {
				c.Transform.BorderColor = []int{1, 2}
			},
			wantErr: true,
		},
		{
			name: "zero window",
			modify: func(c *Config) {
				c.Smoothing.Window = 0
			},
			wantErr: true,
		},
		{
			name: "threshold out of range",
			modify: func(c *Config) {
				c.Speaking.Threshold = 300
			},
			wantErr: true,
		},
		{
			name: "relay without url",
			modify: func(c *Config) {
				c.Peer.Transport = peer.TransportRelay
			},
			wantErr: true,
		},
		{
			name: "webrtc with url",
			modify: func(c *Config) {
				c.Peer.Transport = peer.TransportWebRTC
				c.Peer.URL = "ws://relay.local/room/a"
			},
			wantErr: false,
		},
		{
			name: "relay with zero backoff",
			modify: func(c *Config) {
				c.Peer.Transport = peer.TransportRelay
				c.Peer.URL = "ws://relay.local/room/a"
				c.Peer.ReconnectBackoff = 0
			},
			wantErr: true,
		},
		{
			name: "max backoff below initial",
			modify: func(c *Config) {
				c.Peer.Transport = peer.TransportWebRTC
				c.Peer.URL = "ws://relay.local/room/a"
				c.Peer.ReconnectBackoff = 5 * time.Second
				c.Peer.MaxBackoff = time.Second
			},
			wantErr: true,
		},
		{
			name: "zero backoff without transport",
			modify: func(c *Config) {
				c.Peer.ReconnectBackoff = 0
			},
			wantErr: false,
		},
		{
			name: "unknown transport",
			modify: func(c *Config) {
				c.Peer.Transport = "carrier-pigeon"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Timeouts(t *testing.T) {
	cfg := Default()

	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("expected read_timeout 10s, got %v", cfg.Server.ReadTimeout)
	}

	if cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("expected write_timeout 10s, got %v", cfg.Server.WriteTimeout)
	}

	if cfg.Server.GracefulTimeout != 5*time.Second {
		t.Errorf("expected graceful_timeout 5s, got %v", cfg.Server.GracefulTimeout)
	}
}
