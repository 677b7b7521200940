package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsToDev(t *testing.T) {
	t.Setenv("MODE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.MaxActiveRooms != 500 {
		t.Errorf("MaxActiveRooms = %d, want 500", cfg.MaxActiveRooms)
	}
}

func TestLoadModePresets(t *testing.T) {
	t.Setenv("MODE", "alpha")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxActiveRooms != 120 {
		t.Errorf("alpha MaxActiveRooms = %d, want 120", cfg.MaxActiveRooms)
	}
	if cfg.RoomStateResyncMs != 7000 {
		t.Errorf("alpha RoomStateResyncMs = %d, want 7000", cfg.RoomStateResyncMs)
	}
}

func TestLoadEnvOverridesPreset(t *testing.T) {
	t.Setenv("MODE", "prod")
	t.Setenv("MAX_ACTIVE_ROOMS", "42")
	t.Setenv("ROUTER_NODE_IDS", "a, b ,c")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxActiveRooms != 42 {
		t.Errorf("MaxActiveRooms = %d, want 42", cfg.MaxActiveRooms)
	}
	if len(cfg.RouterNodes) != 3 || cfg.RouterNodes[0] != "A" || cfg.RouterNodes[2] != "C" {
		t.Errorf("RouterNodes = %v, want [A B C]", cfg.RouterNodes)
	}
}

func TestBroadcastInterval(t *testing.T) {
	cfg := preset(ModeDev)
	if got := cfg.BroadcastInterval(); got != 125*time.Millisecond {
		t.Errorf("BroadcastInterval = %v, want 125ms", got)
	}
}
