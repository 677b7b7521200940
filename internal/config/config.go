package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Mode selects a preset of capacity and performance thresholds.
type Mode string

const (
	ModeDev   = Mode("dev")
	ModeAlpha = Mode("alpha")
	ModeProd  = Mode("prod")
)

type Config struct {
	Port        string `env:"PORT"`
	DatabaseURL string `env:"DATABASE_URL"`
	AdminSecret string `env:"ADMIN_SECRET"`

	NodeID      string   `env:"NODE_ID"`
	RouterNodes []string `env:"ROUTER_NODE_IDS" envSeparator:","`

	MaxActiveRooms         int `env:"MAX_ACTIVE_ROOMS"`
	MaxParticipantsPerRoom int `env:"MAX_PARTICIPANTS_PER_ROOM"`

	TickP95WarnMs   int `env:"TICK_P95_WARN_MS"`
	TickOverrunWarn int `env:"TICK_OVERRUN_WARN"`

	RoomStateHz       int `env:"ROOM_STATE_HZ"`
	RoomStateResyncMs int `env:"ROOM_STATE_RESYNC_MS"`

	Mode Mode `env:"-"`
}

func preset(mode Mode) Config {
	cfg := Config{
		Port:        "4001",
		AdminSecret: "dev-secret",
		NodeID:      "A",
		RouterNodes: []string{"A", "B"},
		Mode:        mode,
	}
	switch mode {
	case ModeAlpha:
		cfg.MaxActiveRooms = 120
		cfg.MaxParticipantsPerRoom = 16
		cfg.TickP95WarnMs = 60
		cfg.TickOverrunWarn = 6
		cfg.RoomStateHz = 6
		cfg.RoomStateResyncMs = 7000
	case ModeProd:
		cfg.MaxActiveRooms = 800
		cfg.MaxParticipantsPerRoom = 24
		cfg.TickP95WarnMs = 90
		cfg.TickOverrunWarn = 12
		cfg.RoomStateHz = 8
		cfg.RoomStateResyncMs = 5000
	default:
		cfg.MaxActiveRooms = 500
		cfg.MaxParticipantsPerRoom = 20
		cfg.TickP95WarnMs = 80
		cfg.TickOverrunWarn = 10
		cfg.RoomStateHz = 8
		cfg.RoomStateResyncMs = 5000
	}
	return cfg
}

// Load resolves the runtime mode, applies its preset, then lets env vars
// override individual fields.
func Load() (Config, error) {
	mode := Mode(strings.ToLower(os.Getenv("MODE")))
	if mode != ModeAlpha && mode != ModeProd {
		mode = ModeDev
	}
	cfg := preset(mode)
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.NodeID = strings.ToUpper(cfg.NodeID)
	nodes := make([]string, 0, len(cfg.RouterNodes))
	for _, n := range cfg.RouterNodes {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n != "" {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		nodes = []string{cfg.NodeID}
	}
	cfg.RouterNodes = nodes
	return cfg, nil
}

// BroadcastInterval is the minimum spacing between room-state broadcasts.
func (c Config) BroadcastInterval() time.Duration {
	hz := c.RoomStateHz
	if hz <= 0 {
		hz = 8
	}
	return time.Second / time.Duration(hz)
}

// ResyncInterval is the cadence for full room.state resyncs.
func (c Config) ResyncInterval() time.Duration {
	return time.Duration(c.RoomStateResyncMs) * time.Millisecond
}
