package telemetry

// bucket is a token bucket refilled by wall-clock elapsed time. Fractional
// tokens are permitted; consumption requires at least one whole token.
type bucket struct {
	tokens       float64
	lastRefillAt int64
	dropCount    int
	dropWindowAt int64
}

func newBucket(nowMs int64, capacity float64) *bucket {
	return &bucket{tokens: capacity, lastRefillAt: nowMs, dropWindowAt: nowMs}
}

// take refills the bucket at capacity tokens per second and consumes one
// token when available.
func (b *bucket) take(nowMs int64, capacity float64) bool {
	elapsed := nowMs - b.lastRefillAt
	if elapsed < 0 {
		elapsed = 0
	}
	b.tokens += float64(elapsed) * (capacity / 1000)
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

// recordDrop counts rejections within a rolling 10s window, for sampled
// warn logging.
func (b *bucket) recordDrop(nowMs int64) int {
	if nowMs-b.dropWindowAt > 10_000 {
		b.dropWindowAt = nowMs
		b.dropCount = 0
	}
	b.dropCount++
	return b.dropCount
}
