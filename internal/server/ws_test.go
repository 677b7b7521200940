package server

import (
	"encoding/json"
	"testing"

	"roomcast/internal/wshub"
)

func testClient(viewerID, roomCode string) *wshub.Client {
	return &wshub.Client{
		ViewerID: viewerID,
		RoomCode: roomCode,
		Send:     make(chan []byte, 16),
	}
}

// recvEnvelope drains one queued reply if there is one.
func recvEnvelope(t *testing.T, c *wshub.Client) (testEnvelope, bool) {
	t.Helper()
	select {
	case data := <-c.Send:
		var env testEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decoding envelope: %v (raw %s)", err, data)
		}
		return env, true
	default:
		return testEnvelope{}, false
	}
}

func TestViewerActionBudgets(t *testing.T) {
	srv := testServer(t)
	allow := func(op string, nowMs int64) bool {
		budget := viewerBudgets[op]
		return srv.Pipeline.ViewerAllow(nowMs, "TEST12:viewer:v1:"+op, budget.capacity, budget.refill)
	}

	// Power-ups: burst of 2, then one more only after 5s of refill.
	for i := 0; i < 2; i++ {
		if !allow("viewer.powerup", 1_000) {
			t.Fatalf("powerup %d should be within the burst", i+1)
		}
	}
	if allow("viewer.powerup", 1_000) {
		t.Error("third powerup in a burst should be denied")
	}
	if allow("viewer.powerup", 3_000) {
		t.Error("powerup should still be denied 2s in")
	}
	if !allow("viewer.powerup", 6_000) {
		t.Error("powerup should refill one token after 5s")
	}

	// Reactions: burst of 6, full recovery within a second.
	for i := 0; i < 6; i++ {
		if !allow("viewer.react", 1_000) {
			t.Fatalf("react %d should be within the burst", i+1)
		}
	}
	if allow("viewer.react", 1_000) {
		t.Error("seventh react in a burst should be denied")
	}
	if !allow("viewer.react", 2_000) {
		t.Error("react should refill within a second")
	}

	// Taps: burst of 3, one token back after 500ms.
	for i := 0; i < 3; i++ {
		if !allow("viewer.tap", 1_000) {
			t.Fatalf("tap %d should be within the burst", i+1)
		}
	}
	if allow("viewer.tap", 1_000) {
		t.Error("fourth tap in a burst should be denied")
	}
	if !allow("viewer.tap", 1_500) {
		t.Error("tap should refill one token after 500ms")
	}
}

func TestPowerupCooldownsOverWire(t *testing.T) {
	srv := testServer(t)
	room, err := srv.Registry.Create("DELTA4", 0)
	if err != nil {
		t.Fatal(err)
	}
	v1 := testClient("v1", room.Code)
	v2 := testClient("v2", room.Code)
	msg := clientMsg{Op: "viewer.powerup", ReqID: "r1"}

	srv.wsViewerAction(room, v1, msg, 1_000)
	if env, got := recvEnvelope(t, v1); got {
		t.Fatalf("first powerup should pass, got reply op %s", env.Op)
	}

	srv.wsViewerAction(room, v2, msg, 2_000)
	env, got := recvEnvelope(t, v2)
	if !got || env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Fatal("room-wide cooldown should reject another viewer inside 8s")
	}

	srv.wsViewerAction(room, v2, msg, 10_000)
	if env, got := recvEnvelope(t, v2); got {
		t.Fatalf("powerup after the room cooldown should pass, got reply op %s", env.Op)
	}

	srv.wsViewerAction(room, v1, msg, 20_000)
	env, got = recvEnvelope(t, v1)
	if !got || env.Error == nil || env.Error.Code != "RATE_LIMITED" {
		t.Fatal("per-viewer cooldown should reject a repeat inside 30s")
	}
}

func TestSafemodeLeavesVotesOpen(t *testing.T) {
	srv := testServer(t)
	room, err := srv.Registry.Create("ECHO55", 0)
	if err != nil {
		t.Fatal(err)
	}
	srv.Safemode.Set(true, "load shedding")
	v := testClient("v1", room.Code)

	srv.wsViewerAction(room, v, clientMsg{Op: "viewer.react"}, 1_000)
	env, got := recvEnvelope(t, v)
	if !got || env.Error == nil || env.Error.Code != "SAFEMODE_ACTIVE" {
		t.Fatal("reactions should be paused under safe mode")
	}

	srv.wsViewerAction(room, v, clientMsg{
		Op:   "viewer.vote",
		Data: json.RawMessage(`{"option":"ace"}`),
	}, 1_000)
	if env, got := recvEnvelope(t, v); got {
		t.Fatalf("votes should stay open under safe mode, got reply op %s", env.Op)
	}
	if n := room.Votes()["ace"]; n != 1 {
		t.Errorf("votes[ace] = %d, want 1", n)
	}
}
