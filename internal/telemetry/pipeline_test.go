package telemetry

import (
	"fmt"
	"reflect"
	"testing"
)

func candidate(pid string, n int) Candidate {
	return Candidate{
		ParticipantID: pid,
		Type:          EventKill,
		Intensity:     3,
		StatDelta:     map[string]float64{"kills": float64(n + 1)},
	}
}

func TestTokenBucketAdmitsExactlyCapacity(t *testing.T) {
	p := NewPipeline()
	accepted := 0
	for i := 0; i < 20; i++ {
		res := p.Ingest(0, "ROOM", candidate("p1", i))
		if res.Accepted {
			accepted++
			continue
		}
		if !res.Rejected {
			t.Fatalf("request %d: expected accepted or rejected, got %+v", i, res)
		}
		if res.RetryAfterMs <= 0 {
			t.Errorf("rejection should carry a retry-after hint")
		}
	}
	if accepted != TokenCapacity {
		t.Errorf("accepted = %d, want %d", accepted, TokenCapacity)
	}
}

func TestTokenBucketRefills(t *testing.T) {
	p := NewPipeline()
	for i := 0; i < 10; i++ {
		p.Ingest(0, "ROOM", candidate("p1", i))
	}
	// 500ms at 8 tokens/sec refills 4 tokens.
	accepted := 0
	for i := 0; i < 10; i++ {
		if p.Ingest(500, "ROOM", candidate("p1", 100+i)).Accepted {
			accepted++
		}
	}
	if accepted != 4 {
		t.Errorf("accepted after refill = %d, want 4", accepted)
	}
}

func TestAssignTimestamp(t *testing.T) {
	if got := AssignTimestamp(1000, 1000); got != 1001 {
		t.Errorf("AssignTimestamp(1000, 1000) = %d, want 1001", got)
	}
	if got := AssignTimestamp(2000, 1000); got != 2000 {
		t.Errorf("AssignTimestamp(2000, 1000) = %d, want 2000", got)
	}
	if got := AssignTimestamp(1000, 1500); got != 1501 {
		t.Errorf("AssignTimestamp(1000, 1500) = %d, want 1501", got)
	}
}

func TestMonotonicTimestampsUnderBurst(t *testing.T) {
	p := NewPipeline()
	var last int64
	for i := 0; i < 5; i++ {
		res := p.Ingest(1000, "ROOM", candidate("p1", i))
		if !res.Accepted {
			t.Fatalf("event %d not accepted", i)
		}
		if res.Event.Ts <= last {
			t.Fatalf("ts %d not after %d", res.Event.Ts, last)
		}
		last = res.Event.Ts
	}
}

func TestLowConfidence(t *testing.T) {
	cases := []struct {
		name      string
		intensity int
		delta     map[string]float64
		want      bool
	}{
		{"zero intensity", 0, map[string]float64{"kills": 1}, true},
		{"empty delta", 3, map[string]float64{}, true},
		{"nil delta", 3, nil, true},
		{"all-zero delta", 3, map[string]float64{"kills": 0, "score": 0}, true},
		{"real signal", 3, map[string]float64{"kills": 1}, false},
	}
	for _, tc := range cases {
		if got := LowConfidence(tc.intensity, tc.delta); got != tc.want {
			t.Errorf("%s: LowConfidence = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDedupeRejectsRepeat(t *testing.T) {
	p := NewPipeline()
	c := Candidate{ParticipantID: "p1", Type: EventKill, Intensity: 3, StatDelta: map[string]float64{"kills": 1}}
	first := p.Ingest(1000, "ROOM", c)
	if !first.Accepted {
		t.Fatalf("first submission should be accepted: %+v", first)
	}
	second := p.Ingest(1000, "ROOM", c)
	if !second.Discarded || second.DiscardReason != DiscardDedupe {
		t.Fatalf("repeat should be discarded as dedupe: %+v", second)
	}
}

func TestDedupeCacheBound(t *testing.T) {
	c := newDedupeCache()
	for i := 0; i < 3000; i++ {
		c.check(uint64(i)+1<<32, int64(i))
	}
	if c.size() > dedupeMax {
		t.Errorf("dedupe cache size = %d, want <= %d", c.size(), dedupeMax)
	}
}

func TestAbuseEscalation(t *testing.T) {
	var st AbuseState
	for i := 0; i < 12; i++ {
		st = NextAbuse(int64(i), st, SignalRateHit)
	}
	if !st.Warn {
		t.Error("sustained rate hits should warn")
	}
	if st.ReducedUntil == 0 {
		t.Error("sustained rate hits should open a reduced window")
	}
	if st.MutedUntil == 0 {
		t.Error("sustained rate hits should open a mute window")
	}
	if st.Score != 6 {
		t.Errorf("score after mute = %v, want 6", st.Score)
	}
}

func TestAcceptedNeverEscalates(t *testing.T) {
	var st AbuseState
	for i := 0; i < 20; i++ {
		st = NextAbuse(int64(i), st, SignalAccepted)
	}
	if st.Warn || st.MutedUntil != 0 || st.ReducedUntil != 0 {
		t.Errorf("accepted-only stream escalated: %+v", st)
	}
	if st.Score != 0 {
		t.Errorf("score = %v, want 0 (floored)", st.Score)
	}
}

func TestMutedParticipantRejectedOutright(t *testing.T) {
	p := NewPipeline()
	// Drain the bucket, then hammer until muted.
	for i := 0; i < 60; i++ {
		p.Ingest(0, "ROOM", candidate("p1", i))
	}
	res := p.Ingest(1, "ROOM", candidate("p1", 999))
	if !res.Rejected || res.Code != "RATE_LIMIT_ESCALATED" {
		t.Fatalf("muted participant should be escalated: %+v", res)
	}
	// A different participant is unaffected.
	other := p.Ingest(1, "ROOM", candidate("p2", 0))
	if !other.Accepted {
		t.Fatalf("other participant should be accepted: %+v", other)
	}
}

func TestReplayDeterminism(t *testing.T) {
	fixture := make([]Candidate, 0, 30)
	for i := 0; i < 30; i++ {
		fixture = append(fixture, Candidate{
			ParticipantID: fmt.Sprintf("p%d", i%3),
			Type:          EventKill,
			Intensity:     (i % 6),
			StatDelta:     map[string]float64{"kills": float64(i % 4)},
		})
	}
	run := func() []Event {
		p := NewPipeline()
		var out []Event
		for i, c := range fixture {
			res := p.Ingest(int64(i*40), "ROOM", c)
			if res.Accepted {
				out = append(out, res.Event)
			}
		}
		return out
	}
	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatal("replaying an identical fixture produced different accepted sequences")
	}
	if len(a) == 0 {
		t.Fatal("fixture produced no accepted events")
	}
}

func TestClearRoom(t *testing.T) {
	p := NewPipeline()
	p.Ingest(0, "ROOM", candidate("p1", 0))
	p.ClearRoom("ROOM")
	if len(p.buckets) != 0 || len(p.abuse) != 0 || len(p.dedupe) != 0 {
		t.Error("ClearRoom should drop all per-room state")
	}
}
