package telemetry

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"roomcast/internal/protocol"
)

const (
	// TokenCapacity is the per-participant telemetry budget per second.
	TokenCapacity = 8
	reducedFloor  = 2

	// ephemeralCap bounds each composite-keyed map owned by the pipeline.
	ephemeralCap = 4000

	// idleEvictMs drops bucket/abuse entries untouched for this long.
	idleEvictMs = 10 * 60_000
)

// AssignTimestamp returns the server timestamp for an event: wall clock,
// bumped past the participant's previous timestamp so per-participant
// ordering is strict even within one millisecond.
func AssignTimestamp(nowMs, lastTs int64) int64 {
	if nowMs <= lastTs {
		return lastTs + 1
	}
	return nowMs
}

// LowConfidence reports whether an event carries no usable signal: zero
// intensity, or a stat-delta that is empty or entirely zero.
func LowConfidence(intensity int, statDelta map[string]float64) bool {
	if intensity <= 0 {
		return true
	}
	if len(statDelta) == 0 {
		return true
	}
	for _, v := range statDelta {
		if v != 0 {
			return false
		}
	}
	return true
}

// Result is the total outcome of one admission attempt. Exactly one of
// Accepted, Discarded, Rejected is set.
type Result struct {
	Accepted      bool
	Discarded     bool
	DiscardReason string
	Rejected      bool
	Code          protocol.ErrorCode
	RetryAfterMs  int64
	Event         Event
	EventID       string
}

// Pipeline owns every composite-keyed admission map: rate-limit buckets,
// abuse states, per-room dedupe caches, per-participant timestamps, and
// viewer-action buckets. All maps are bounded by inline eviction.
type Pipeline struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	abuse   map[string]AbuseState
	dedupe  map[string]*dedupeCache
	lastTs  map[string]int64
	viewer  map[string]*bucket
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		buckets: make(map[string]*bucket),
		abuse:   make(map[string]AbuseState),
		dedupe:  make(map[string]*dedupeCache),
		lastTs:  make(map[string]int64),
		viewer:  make(map[string]*bucket),
	}
}

func participantKey(roomCode, matchID, participantID string) string {
	return roomCode + ":" + matchID + ":" + participantID
}

// Ingest runs the full admission pipeline for one candidate event:
// rate limit, timestamp assignment, dedupe, confidence filter, abuse
// scoring. It never returns an error; every input has a defined outcome.
func (p *Pipeline) Ingest(nowMs int64, roomCode string, c Candidate) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	participantID := c.ParticipantID
	if participantID == "" {
		participantID = "host"
	}
	matchID := c.MatchID
	if matchID == "" {
		matchID = "default"
	}
	key := participantKey(roomCode, matchID, participantID)

	abuse := p.abuse[key]
	if abuse.Muted(nowMs) {
		p.abuse[key] = NextAbuse(nowMs, abuse, SignalRateHit)
		retry := abuse.MutedUntil - nowMs
		if retry < 250 {
			retry = 250
		}
		return Result{Rejected: true, Code: protocol.ErrRateLimitEscalated, RetryAfterMs: retry}
	}

	capacity := float64(TokenCapacity)
	if abuse.Reduced(nowMs) {
		capacity = TokenCapacity / 2
		if capacity < reducedFloor {
			capacity = reducedFloor
		}
	}
	b := p.buckets[key]
	if b == nil {
		b = newBucket(nowMs, capacity)
		p.buckets[key] = b
	}
	if !b.take(nowMs, capacity) {
		drops := b.recordDrop(nowMs)
		if drops == 1 || drops%25 == 0 {
			log.Printf("[Telemetry] rate-limited key=%s drops=%d\n", key, drops)
		}
		p.abuse[key] = NextAbuse(nowMs, abuse, SignalRateHit)
		return Result{Rejected: true, Code: protocol.ErrRateLimited, RetryAfterMs: 250}
	}

	ts := AssignTimestamp(nowMs, p.lastTs[key])

	intensity := c.Intensity
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 5 {
		intensity = 5
	}

	dkey := DedupeKey(participantID, c.Type, intensity, c.StatDelta, ts)
	cache := p.dedupe[roomCode]
	if cache == nil {
		cache = newDedupeCache()
		p.dedupe[roomCode] = cache
	}
	eventID := fmt.Sprintf("evt_%016x", dkey^uint64(ts))
	if cache.check(dkey, ts) {
		p.abuse[key] = NextAbuse(nowMs, abuse, SignalDedupe)
		return Result{Discarded: true, DiscardReason: DiscardDedupe, EventID: eventID}
	}

	if LowConfidence(intensity, c.StatDelta) {
		p.abuse[key] = NextAbuse(nowMs, abuse, SignalLowConfidence)
		return Result{Discarded: true, DiscardReason: DiscardLowConfidence, EventID: eventID}
	}

	p.lastTs[key] = ts
	p.abuse[key] = NextAbuse(nowMs, abuse, SignalAccepted)

	evt := Event{
		ID:            eventID,
		RoomCode:      roomCode,
		MatchID:       matchID,
		ParticipantID: participantID,
		Ts:            ts,
		Type:          c.Type,
		Intensity:     intensity,
		StatDelta:     c.StatDelta,
		ClientTs:      c.ClientTs,
	}
	return Result{Accepted: true, Event: evt, EventID: eventID}
}

// AbuseFor returns the current abuse state for a participant key.
func (p *Pipeline) AbuseFor(roomCode, matchID, participantID string) AbuseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.abuse[participantKey(roomCode, matchID, participantID)]
}

// ViewerAllow applies the viewer-action token bucket for the given key.
func (p *Pipeline) ViewerAllow(nowMs int64, key string, capacity, refillPerSec float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.viewer[key]
	if b == nil {
		b = newBucket(nowMs, capacity)
		p.viewer[key] = b
	}
	elapsed := nowMs - b.lastRefillAt
	if elapsed < 0 {
		elapsed = 0
	}
	b.tokens += float64(elapsed) * (refillPerSec / 1000)
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefillAt = nowMs
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// ClearRoom drops all per-room pipeline state after a room is archived.
func (p *Pipeline) ClearRoom(roomCode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := roomCode + ":"
	for k := range p.buckets {
		if strings.HasPrefix(k, prefix) {
			delete(p.buckets, k)
		}
	}
	for k := range p.abuse {
		if strings.HasPrefix(k, prefix) {
			delete(p.abuse, k)
		}
	}
	for k := range p.lastTs {
		if strings.HasPrefix(k, prefix) {
			delete(p.lastTs, k)
		}
	}
	for k := range p.viewer {
		if strings.HasPrefix(k, prefix) {
			delete(p.viewer, k)
		}
	}
	delete(p.dedupe, roomCode)
}

// Housekeep evicts idle entries and enforces the global cap on each map.
// Runs inline from the scheduler tick, never concurrently with itself.
func (p *Pipeline) Housekeep(nowMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := nowMs - idleEvictMs
	for k, b := range p.buckets {
		if b.lastRefillAt < cutoff {
			delete(p.buckets, k)
			delete(p.lastTs, k)
		}
	}
	for k, b := range p.viewer {
		if b.lastRefillAt < cutoff {
			delete(p.viewer, k)
		}
	}
	for k, a := range p.abuse {
		if a.Score == 0 && a.ReducedUntil < cutoff && a.MutedUntil < cutoff {
			delete(p.abuse, k)
		}
	}
	capTrim(p.buckets, ephemeralCap)
	capTrim(p.viewer, ephemeralCap)
	trimAbuse(p.abuse, ephemeralCap)
	trimTs(p.lastTs, ephemeralCap)
}

func capTrim(m map[string]*bucket, max int) {
	for k := range m {
		if len(m) <= max {
			return
		}
		delete(m, k)
	}
}

func trimAbuse(m map[string]AbuseState, max int) {
	for k := range m {
		if len(m) <= max {
			return
		}
		delete(m, k)
	}
}

func trimTs(m map[string]int64, max int) {
	for k := range m {
		if len(m) <= max {
			return
		}
		delete(m, k)
	}
}
