package config

import (
	"testing"
	"time"
)

func TestLoadPeerRequiresRelay(t *testing.T) {
	t.Setenv("RELAY_URL", "")
	t.Setenv("RELAY_WS_URL", "ws://localhost:9000")
	if _, err := LoadPeer(); err == nil {
		t.Fatalf("expected error without RELAY_URL")
	}
	t.Setenv("RELAY_URL", "http://localhost:9000")
	t.Setenv("RELAY_WS_URL", "")
	if _, err := LoadPeer(); err == nil {
		t.Fatalf("expected error without RELAY_WS_URL")
	}
}

func TestLoadPeerDefaultsAndOverrides(t *testing.T) {
	t.Setenv("RELAY_URL", " http://localhost:9000/ ")
	t.Setenv("RELAY_WS_URL", "ws://localhost:9000")
	t.Setenv("SESSION_TTL", "90")
	t.Setenv("BOARD_PNG_SIZE", "12")
	t.Setenv("HTTP_TIMEOUT", "750ms")
	t.Setenv("HTTP_RETRIES", "")

	cfg, err := LoadPeer()
	if err != nil {
		t.Fatalf("LoadPeer: %v", err)
	}
	if cfg.RelayURL != "http://localhost:9000" {
		t.Fatalf("relay url not normalized: %q", cfg.RelayURL)
	}
	if cfg.SessionTTL != 90*time.Second {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.BoardPNGSize != 600 {
		t.Fatalf("too small png size should be ignored, got %d", cfg.BoardPNGSize)
	}
	if cfg.HTTPTimeout != 750*time.Millisecond || cfg.HTTPRetries != 2 {
		t.Fatalf("http settings = %v / %d", cfg.HTTPTimeout, cfg.HTTPRetries)
	}
}

func TestLoadRelay(t *testing.T) {
	t.Setenv("RELAY_ADDR", "")
	t.Setenv("PEER_TTL", "1m")
	t.Setenv("METRICS_ENABLED", "false")
	cfg, err := LoadRelay()
	if err != nil {
		t.Fatalf("LoadRelay: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.PeerTTL != time.Minute || cfg.MetricsEnabled {
		t.Fatalf("unexpected relay config %+v", cfg)
	}
}
