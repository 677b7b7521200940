// Package scheduler drives all room advancement from a single
// fixed-interval tick. Ticks never overlap: when one is still running at
// the next deadline, the new tick is skipped and counted as an overrun.
package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"roomcast/internal/config"
	"roomcast/internal/maintenance"
	"roomcast/internal/metrics"
	"roomcast/internal/protocol"
	"roomcast/internal/rooms"
	"roomcast/internal/telemetry"
)

// TickInterval is the fixed scheduler cadence.
const TickInterval = 250 * time.Millisecond

const ephemeralCap = 4_000

// Broadcaster is the room transport the engine fans state out through.
type Broadcaster interface {
	Broadcast(roomCode string, msg any)
	SubscriberCount(roomCode string) int
}

type gate struct {
	lastBroadcastAt int64
	lastResyncAt    int64
	lastHash        uint64
}

// Engine owns the tick loop and the broadcast gating state.
type Engine struct {
	cfg        config.Config
	registry   *rooms.Registry
	hub        Broadcaster
	pipeline   *telemetry.Pipeline
	window     *maintenance.Window
	protection *maintenance.ProtectionMonitor
	safemode   *maintenance.Safemode

	busy  atomic.Bool
	muGat sync.Mutex
	gates map[string]*gate
}

func New(cfg config.Config, registry *rooms.Registry, hub Broadcaster, pipeline *telemetry.Pipeline, window *maintenance.Window, protection *maintenance.ProtectionMonitor, safemode *maintenance.Safemode) *Engine {
	return &Engine{
		cfg:        cfg,
		registry:   registry,
		hub:        hub,
		pipeline:   pipeline,
		window:     window,
		protection: protection,
		safemode:   safemode,
		gates:      map[string]*gate{},
	}
}

// Run ticks until the context ends.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TickOnce(time.Now().UnixMilli())
		}
	}
}

// TickOnce runs one tick at the given wall time. Re-entrant calls are
// skipped and counted as overruns.
func (e *Engine) TickOnce(nowMs int64) {
	if !e.busy.CompareAndSwap(false, true) {
		e.protection.ObserveOverrun()
		metrics.TickOverruns.Inc()
		return
	}
	start := time.Now()
	defer func() {
		dur := time.Since(start)
		metrics.TickDuration.Observe(dur.Seconds())
		e.protection.ObserveTick(float64(dur.Milliseconds()))
		e.busy.Store(false)
	}()

	e.pipeline.Housekeep(nowMs)

	if e.window.Tick(nowMs) {
		log.Println("[Scheduler] Drain window elapsed. Entering maintenance.")
	}
	maintState, banner, eta := e.window.Status(nowMs)
	safemodeOn, safemodeReason := e.safemode.Status()
	protMode := e.protection.Mode()

	switch maintState {
	case maintenance.StateDraining:
		metrics.MaintenanceState.Set(1)
	case maintenance.StateMaintenance:
		metrics.MaintenanceState.Set(2)
	default:
		metrics.MaintenanceState.Set(0)
	}
	if protMode == maintenance.ProtectionDegraded {
		metrics.ProtectionDegraded.Set(1)
	} else {
		metrics.ProtectionDegraded.Set(0)
	}

	activeRooms := e.registry.List()
	metrics.ActiveRooms.Set(float64(len(activeRooms)))

	for _, room := range activeRooms {
		res := room.Tick(rooms.TickInput{
			NowMs:          nowMs,
			Safemode:       safemodeOn,
			SafemodeReason: safemodeReason,
			WsHealthy:      true,
			TileStalls:     0,
			Maintenance:    maintState,
			Banner:         banner,
			EtaSeconds:     eta,
			Protection:     protMode,
		})

		if res.Swing {
			e.hub.Broadcast(room.Code, protocol.OK("moment.added", room.Code, room.MatchID(), nowMs, res.SwingMoment))
		}
		if res.SegmentChanged {
			e.hub.Broadcast(room.Code, protocol.OK("segment.set", room.Code, room.MatchID(), nowMs, map[string]any{
				"segment": res.Segment,
				"reason":  res.SegmentReason,
			}))
		}
		if res.QuietChanged {
			e.hub.Broadcast(room.Code, protocol.OK("announcer.quiet", room.Code, room.MatchID(), nowMs, map[string]any{
				"quietMode": res.QuietActive,
			}))
		}
		if res.StageChanged {
			room.PushAutomation(nowMs, "broadcast", "stage "+string(res.StageFrom)+" -> "+string(res.StageTo))
		}

		e.broadcastState(room, nowMs, res.State, safemodeOn, protMode)

		room.PruneIdleViewers(nowMs)
		room.TrimInteractions(ephemeralCap)
	}

	e.dropStaleGates(activeRooms)
}

// broadcastState applies the cadence and change gates. A full room.state
// goes out on the resync cadence; a room.state.delta goes out when the
// payload hash moved between resyncs; an unchanged room sends nothing.
func (e *Engine) broadcastState(room *rooms.Room, nowMs int64, state rooms.StatePayload, safemodeOn bool, protMode maintenance.ProtectionMode) {
	mult := int64(maintenance.IntervalMultiplier(protMode, safemodeOn))
	intervalMs := e.cfg.BroadcastInterval().Milliseconds() * mult
	resyncMs := e.cfg.ResyncInterval().Milliseconds() * mult

	e.muGat.Lock()
	g, ok := e.gates[room.Code]
	if !ok {
		g = &gate{}
		e.gates[room.Code] = g
	}
	e.muGat.Unlock()

	if nowMs-g.lastBroadcastAt < intervalMs {
		return
	}

	hash := hashState(state)
	matchID := room.MatchID()
	switch {
	case g.lastHash == 0 || nowMs-g.lastResyncAt >= resyncMs:
		e.hub.Broadcast(room.Code, protocol.OK("room.state", room.Code, matchID, nowMs, state))
		g.lastResyncAt = nowMs
		metrics.Broadcasts.Inc()
	case hash != g.lastHash:
		e.hub.Broadcast(room.Code, protocol.OK("room.state.delta", room.Code, matchID, nowMs, state))
		metrics.Broadcasts.Inc()
	}
	g.lastHash = hash
	g.lastBroadcastAt = nowMs
}

// hashState serializes the payload for change detection. encoding/json
// emits struct fields in declaration order, so identical state always
// hashes identically.
func hashState(state rooms.StatePayload) uint64 {
	payload, err := json.Marshal(state)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(payload)
}

func (e *Engine) dropStaleGates(active []*rooms.Room) {
	e.muGat.Lock()
	defer e.muGat.Unlock()
	live := make(map[string]struct{}, len(active))
	for _, r := range active {
		live[r.Code] = struct{}{}
	}
	for code := range e.gates {
		if _, ok := live[code]; !ok {
			delete(e.gates, code)
		}
	}
}
