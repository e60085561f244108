package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// PeerConfig drives the terminal peer.
type PeerConfig struct {
	RelayURL   string
	RelayWSURL string

	RedisURL    string
	DatabaseURL string

	BoardPNGPath string
	BoardPNGSize int

	SessionTTL  time.Duration
	MessagesDir string

	HTTPTimeout time.Duration
	HTTPRetries int
}

// RelayConfig drives the relay server.
type RelayConfig struct {
	Addr           string
	RedisURL       string
	PeerTTL        time.Duration
	MetricsEnabled bool
}

func LoadPeer() (*PeerConfig, error) {
	cfg := &PeerConfig{
		BoardPNGSize: 600,
		SessionTTL:   24 * time.Hour,
		HTTPTimeout:  5 * time.Second,
		HTTPRetries:  2,
	}

	cfg.RelayURL = strings.TrimRight(env("RELAY_URL"), "/")
	cfg.RelayWSURL = strings.TrimRight(env("RELAY_WS_URL"), "/")
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.BoardPNGPath = env("BOARD_PNG_PATH")
	cfg.MessagesDir = env("MESSAGES_DIR")

	if v := env("BOARD_PNG_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 90 {
			cfg.BoardPNGSize = n
		}
	}
	if d, ok := duration("SESSION_TTL"); ok {
		cfg.SessionTTL = d
	}
	if d, ok := duration("HTTP_TIMEOUT"); ok {
		cfg.HTTPTimeout = d
	}
	if v := env("HTTP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HTTPRetries = n
		}
	}

	if cfg.RelayURL == "" {
		return nil, errors.New("RELAY_URL is required")
	}
	if cfg.RelayWSURL == "" {
		return nil, errors.New("RELAY_WS_URL is required")
	}
	return cfg, nil
}

func LoadRelay() (*RelayConfig, error) {
	cfg := &RelayConfig{
		Addr:           ":9000",
		PeerTTL:        2 * time.Minute,
		MetricsEnabled: true,
	}
	if v := env("RELAY_ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.RedisURL = env("REDIS_URL")
	if d, ok := duration("PEER_TTL"); ok {
		cfg.PeerTTL = d
	}
	if v := env("METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MetricsEnabled = b
		}
	}
	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// duration accepts plain seconds ("3600") or a Go duration ("1h").
func duration(key string) (time.Duration, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
