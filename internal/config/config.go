// Package config provides configuration management for go-gaze
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-gaze/internal/engine"
	"github.com/teslashibe/go-gaze/internal/peer"
	"github.com/teslashibe/go-gaze/internal/speaking"
	"github.com/teslashibe/go-gaze/internal/transform"
)

// Config is the root configuration structure
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Participant ParticipantConfig `mapstructure:"participant"`
	Transform   TransformConfig   `mapstructure:"transform"`
	Smoothing   SmoothingConfig   `mapstructure:"smoothing"`
	Speaking    SpeakingConfig    `mapstructure:"speaking"`
	Session     SessionConfig     `mapstructure:"session"`
	Peer        PeerConfig        `mapstructure:"peer"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

// ParticipantConfig identifies the local participant
type ParticipantConfig struct {
	ID         string        `mapstructure:"id"`
	Condition  string        `mapstructure:"condition"`   // numeric ID (1-6) or name
	StaleAfter time.Duration `mapstructure:"stale_after"` // engine unhealthy without frames for this long
}

// TransformConfig holds the window geometry constants
type TransformConfig struct {
	MinWidth          float64 `mapstructure:"min_width"`
	MaxWidth          float64 `mapstructure:"max_width"`
	HeightRatio       float64 `mapstructure:"height_ratio"`
	DistanceScale     float64 `mapstructure:"distance_scale"`
	ProximityScale    float64 `mapstructure:"proximity_scale"`
	AlphaMin          float64 `mapstructure:"alpha_min"`
	AlphaMax          float64 `mapstructure:"alpha_max"`
	AlphaMinThreshold float64 `mapstructure:"alpha_min_threshold"`
	GazeBand          float64 `mapstructure:"gaze_band"`
	BorderColor       []int   `mapstructure:"border_color"` // r, g, b
}

// SmoothingConfig configures the moving averages
type SmoothingConfig struct {
	Window int `mapstructure:"window"`
	Slack  int `mapstructure:"slack"`
}

// SpeakingConfig configures the speaking detector
type SpeakingConfig struct {
	Threshold  float64 `mapstructure:"threshold"`
	DebounceMs int     `mapstructure:"debounce_ms"`
	AlphaMin   float64 `mapstructure:"alpha_min"`
	AlphaMax   float64 `mapstructure:"alpha_max"`
}

// SessionConfig configures session export
type SessionConfig struct {
	ExportDir string `mapstructure:"export_dir"`
}

// PeerConfig configures the link to remote participants
type PeerConfig struct {
	Transport        string        `mapstructure:"transport"` // none, relay, webrtc
	URL              string        `mapstructure:"url"`
	ICEServers       []string      `mapstructure:"ice_servers"`
	ChannelLabel     string        `mapstructure:"channel_label"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Default returns the default configuration
func Default() *Config {
	limits := transform.DefaultLimits()
	detector := speaking.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:            9000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			GracefulTimeout: 5 * time.Second,
		},
		Participant: ParticipantConfig{
			ID:         "1",
			Condition:  "1",
			StaleAfter: 5 * time.Second,
		},
		Transform: TransformConfig{
			MinWidth:          limits.MinWidth,
			MaxWidth:          limits.MaxWidth,
			HeightRatio:       limits.HeightRatio,
			DistanceScale:     limits.DistanceScale,
			ProximityScale:    limits.ProximityScale,
			AlphaMin:          limits.AlphaMin,
			AlphaMax:          limits.AlphaMax,
			AlphaMinThreshold: limits.AlphaMinThreshold,
			GazeBand:          limits.GazeBand,
			BorderColor:       []int{limits.BorderColor.R, limits.BorderColor.G, limits.BorderColor.B},
		},
		Smoothing: SmoothingConfig{
			Window: 10,
			Slack:  3,
		},
		Speaking: SpeakingConfig{
			Threshold:  detector.Threshold,
			DebounceMs: int(detector.Debounce / time.Millisecond),
			AlphaMin:   detector.AlphaMin,
			AlphaMax:   detector.AlphaMax,
		},
		Session: SessionConfig{
			ExportDir: "./results",
		},
		Peer: PeerConfig{
			Transport:        peer.TransportNone,
			ICEServers:       []string{"stun:stun.l.google.com:19302"},
			ChannelLabel:     "gaze",
			ReconnectBackoff: 1 * time.Second,
			MaxBackoff:       30 * time.Second,
			PingInterval:     10 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			// Missing file is okay, we have defaults
			slog.Warn("config file not loaded, using defaults", "path", path, "error", err)
		}
	}

	v.SetEnvPrefix("GOGAZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.graceful_timeout", "5s")

	v.SetDefault("participant.id", d.Participant.ID)
	v.SetDefault("participant.condition", d.Participant.Condition)
	v.SetDefault("participant.stale_after", "5s")

	v.SetDefault("transform.min_width", d.Transform.MinWidth)
	v.SetDefault("transform.max_width", d.Transform.MaxWidth)
	v.SetDefault("transform.height_ratio", d.Transform.HeightRatio)
	v.SetDefault("transform.distance_scale", d.Transform.DistanceScale)
	v.SetDefault("transform.proximity_scale", d.Transform.ProximityScale)
	v.SetDefault("transform.alpha_min", d.Transform.AlphaMin)
	v.SetDefault("transform.alpha_max", d.Transform.AlphaMax)
	v.SetDefault("transform.alpha_min_threshold", d.Transform.AlphaMinThreshold)
	v.SetDefault("transform.gaze_band", d.Transform.GazeBand)
	v.SetDefault("transform.border_color", d.Transform.BorderColor)

	v.SetDefault("smoothing.window", d.Smoothing.Window)
	v.SetDefault("smoothing.slack", d.Smoothing.Slack)

	v.SetDefault("speaking.threshold", d.Speaking.Threshold)
	v.SetDefault("speaking.debounce_ms", d.Speaking.DebounceMs)
	v.SetDefault("speaking.alpha_min", d.Speaking.AlphaMin)
	v.SetDefault("speaking.alpha_max", d.Speaking.AlphaMax)

	v.SetDefault("session.export_dir", d.Session.ExportDir)

	v.SetDefault("peer.transport", d.Peer.Transport)
	v.SetDefault("peer.url", "")
	v.SetDefault("peer.ice_servers", d.Peer.ICEServers)
	v.SetDefault("peer.channel_label", d.Peer.ChannelLabel)
	v.SetDefault("peer.reconnect_backoff", "1s")
	v.SetDefault("peer.max_backoff", "30s")
	v.SetDefault("peer.ping_interval", "10s")
	v.SetDefault("peer.write_timeout", "5s")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Participant.ID == "" {
		return fmt.Errorf("participant.id must not be empty")
	}
	if _, err := transform.ParseCondition(c.Participant.Condition); err != nil {
		return fmt.Errorf("participant.condition: %w", err)
	}

	if len(c.Transform.BorderColor) != 3 {
		return fmt.Errorf("border_color must have 3 components, got %d", len(c.Transform.BorderColor))
	}
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	if c.Smoothing.Window < 1 {
		return fmt.Errorf("smoothing window must be at least 1, got %d", c.Smoothing.Window)
	}
	if c.Smoothing.Slack < 0 {
		return fmt.Errorf("smoothing slack must not be negative, got %d", c.Smoothing.Slack)
	}

	if c.Speaking.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", c.Speaking.DebounceMs)
	}
	if c.Speaking.Threshold < 0 || c.Speaking.Threshold > 255 {
		return fmt.Errorf("speaking threshold must be between 0 and 255, got %f", c.Speaking.Threshold)
	}

	switch c.Peer.Transport {
	case peer.TransportNone:
	case peer.TransportRelay, peer.TransportWebRTC:
		if c.Peer.URL == "" {
			return fmt.Errorf("peer.url is required for transport %s", c.Peer.Transport)
		}
		if c.Peer.ReconnectBackoff <= 0 {
			return fmt.Errorf("peer.reconnect_backoff must be positive, got %v", c.Peer.ReconnectBackoff)
		}
		if c.Peer.MaxBackoff < c.Peer.ReconnectBackoff {
			return fmt.Errorf("peer.max_backoff %v is below reconnect_backoff %v", c.Peer.MaxBackoff, c.Peer.ReconnectBackoff)
		}
	default:
		return fmt.Errorf("unknown peer transport: %s", c.Peer.Transport)
	}

	return nil
}

// Limits returns the transform limits
func (c *Config) Limits() transform.Limits {
	t := c.Transform
	color := transform.Green
	if len(t.BorderColor) == 3 {
		color = transform.Color{R: t.BorderColor[0], G: t.BorderColor[1], B: t.BorderColor[2]}
	}

	return transform.Limits{
		MinWidth:          t.MinWidth,
		MaxWidth:          t.MaxWidth,
		HeightRatio:       t.HeightRatio,
		DistanceScale:     t.DistanceScale,
		ProximityScale:    t.ProximityScale,
		AlphaMin:          t.AlphaMin,
		AlphaMax:          t.AlphaMax,
		AlphaMinThreshold: t.AlphaMinThreshold,
		GazeBand:          t.GazeBand,
		BorderColor:       color,
	}
}

// Engine returns the engine configuration. Call Validate first.
func (c *Config) Engine() engine.Config {
	cond, err := transform.ParseCondition(c.Participant.Condition)
	if err != nil {
		cond = transform.Baseline
	}

	return engine.Config{
		ParticipantID: c.Participant.ID,
		Transform: transform.Config{
			Limits:      c.Limits(),
			Condition:   cond,
			Window:      c.Smoothing.Window,
			Slack:       c.Smoothing.Slack,
			Participant: c.Participant.ID,
		},
		Speaking: speaking.Config{
			Threshold: c.Speaking.Threshold,
			Debounce:  time.Duration(c.Speaking.DebounceMs) * time.Millisecond,
			AlphaMin:  c.Speaking.AlphaMin,
			AlphaMax:  c.Speaking.AlphaMax,
		},
		StaleAfter: c.Participant.StaleAfter,
	}
}

// Relay returns the relay client configuration
func (c *Config) Relay() peer.RelayConfig {
	return peer.RelayConfig{
		URL:              c.Peer.URL,
		ParticipantID:    c.Participant.ID,
		ReconnectBackoff: c.Peer.ReconnectBackoff,
		MaxBackoff:       c.Peer.MaxBackoff,
		PingInterval:     c.Peer.PingInterval,
		WriteTimeout:     c.Peer.WriteTimeout,
	}
}

// Mesh returns the WebRTC mesh configuration
func (c *Config) Mesh() peer.MeshConfig {
	return peer.MeshConfig{
		ParticipantID: c.Participant.ID,
		ICEServers:    c.Peer.ICEServers,
		ChannelLabel:  c.Peer.ChannelLabel,
	}
}
