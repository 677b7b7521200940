package scheduler

import (
	"sync"
	"testing"

	"roomcast/internal/config"
	"roomcast/internal/maintenance"
	"roomcast/internal/protocol"
	"roomcast/internal/rooms"
	"roomcast/internal/telemetry"
)

type recordingHub struct {
	mu   sync.Mutex
	msgs []protocol.Envelope
}

func (h *recordingHub) Broadcast(roomCode string, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if env, ok := msg.(protocol.Envelope); ok {
		h.msgs = append(h.msgs, env)
	}
}

func (h *recordingHub) SubscriberCount(roomCode string) int { return 1 }

func (h *recordingHub) ops() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.msgs))
	for i, m := range h.msgs {
		out[i] = m.Op
	}
	return out
}

func (h *recordingHub) count(op string) int {
	n := 0
	for _, o := range h.ops() {
		if o == op {
			n++
		}
	}
	return n
}

func testEngine(t *testing.T) (*Engine, *recordingHub, *rooms.Registry) {
	t.Helper()
	cfg := config.Config{RoomStateHz: 8, RoomStateResyncMs: 5000, TickP95WarnMs: 90, TickOverrunWarn: 12}
	reg := rooms.NewRegistry(10)
	hub := &recordingHub{}
	eng := New(cfg, reg, hub, telemetry.NewPipeline(), maintenance.NewWindow(),
		maintenance.NewProtectionMonitor(90, 12), &maintenance.Safemode{})
	return eng, hub, reg
}

func TestFirstTickSendsFullState(t *testing.T) {
	eng, hub, reg := testEngine(t)
	if _, err := reg.Create("AAAAAA", 0); err != nil {
		t.Fatal(err)
	}

	eng.TickOnce(1_000)
	if got := hub.count("room.state"); got != 1 {
		t.Fatalf("room.state broadcasts = %d, want 1", got)
	}
}

func TestUnchangedRoomStaysQuietBetweenResyncs(t *testing.T) {
	eng, hub, reg := testEngine(t)
	if _, err := reg.Create("AAAAAA", 0); err != nil {
		t.Fatal(err)
	}

	eng.TickOnce(1_000) // initial full state
	eng.TickOnce(1_050) // inside the broadcast interval
	eng.TickOnce(1_200) // interval elapsed, nothing changed
	eng.TickOnce(2_000)
	if got := hub.count("room.state"); got != 1 {
		t.Errorf("room.state = %d, want 1", got)
	}
	if got := hub.count("room.state.delta"); got != 0 {
		t.Errorf("room.state.delta = %d, want 0", got)
	}

	// Resync cadence forces a full state even with no changes.
	eng.TickOnce(6_100)
	if got := hub.count("room.state"); got != 2 {
		t.Errorf("room.state after resync = %d, want 2", got)
	}
}

func TestChangedStateSendsDelta(t *testing.T) {
	// A long resync window so the change gate, not the resync cadence,
	// is what fires.
	cfg := config.Config{RoomStateHz: 8, RoomStateResyncMs: 60_000, TickP95WarnMs: 90, TickOverrunWarn: 12}
	reg := rooms.NewRegistry(10)
	hub := &recordingHub{}
	eng := New(cfg, reg, hub, telemetry.NewPipeline(), maintenance.NewWindow(),
		maintenance.NewProtectionMonitor(90, 12), &maintenance.Safemode{})
	room, err := reg.Create("AAAAAA", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := room.StartMatch(0, "Red", "Blue", 600_000); err != nil {
		t.Fatal(err)
	}

	eng.TickOnce(1_000)
	// The tip-off segment advances at 10s, changing the payload inside
	// the resync window.
	eng.TickOnce(10_000)
	if got := hub.count("segment.set"); got != 1 {
		t.Errorf("segment.set = %d, want 1", got)
	}
	if got := hub.count("room.state.delta"); got != 1 {
		t.Errorf("room.state.delta = %d, want 1", got)
	}
}

func TestSwingBroadcastsMoment(t *testing.T) {
	eng, hub, reg := testEngine(t)
	room, err := reg.Create("AAAAAA", 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := room.StartMatch(0, "Red", "Blue", 600_000); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		room.ApplyAccepted(telemetry.Event{
			ID: "evt", ParticipantID: "p1", Ts: int64(900 + i),
			Type: telemetry.EventGoal, Intensity: 5,
			StatDelta: map[string]float64{"score": 1},
		})
	}
	eng.TickOnce(1_000)
	if got := hub.count("moment.added"); got != 1 {
		t.Errorf("moment.added = %d, want 1", got)
	}
}

func TestGateDroppedWithRoom(t *testing.T) {
	eng, _, reg := testEngine(t)
	if _, err := reg.Create("AAAAAA", 0); err != nil {
		t.Fatal(err)
	}
	eng.TickOnce(1_000)
	eng.muGat.Lock()
	_, had := eng.gates["AAAAAA"]
	eng.muGat.Unlock()
	if !had {
		t.Fatal("gate should exist for an active room")
	}

	reg.Destroy("AAAAAA")
	eng.TickOnce(2_000)
	eng.muGat.Lock()
	_, has := eng.gates["AAAAAA"]
	eng.muGat.Unlock()
	if has {
		t.Error("gate should be dropped with its room")
	}
}

func TestSafemodeStretchesCadence(t *testing.T) {
	eng, hub, reg := testEngine(t)
	if _, err := reg.Create("AAAAAA", 0); err != nil {
		t.Fatal(err)
	}
	eng.safemode.Set(true, "ops safety")

	eng.TickOnce(1_000)
	// Tripled interval: a tick one normal interval later must stay quiet.
	eng.TickOnce(1_200)
	if got := hub.count("room.state") + hub.count("room.state.delta"); got != 1 {
		t.Errorf("broadcasts under safemode = %d, want 1", got)
	}
}
