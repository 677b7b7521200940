package announcer

const (
	quietDensityPerSec = 0.2
	quietEnterMs       = 45_000
	quietRecoverMs     = 10_000
	quietMinStayMs     = 20_000
)

// QuietState tracks low-activity hysteresis. Entering quiet mode requires a
// sustained lull; leaving it requires both sustained recovery and a minimum
// stay, so the announcer does not flap between modes. The tracking flags
// are explicit so a sample at timestamp zero still starts its clock.
type QuietState struct {
	Active         bool  `json:"active"`
	EnteredAt      int64 `json:"-"`
	lowSince       int64
	lowTracking    bool
	recoveredSince int64
	recovering     bool
}

// Update feeds one density sample (accepted events per second over the
// trailing window) and reports whether the mode flipped.
func (q *QuietState) Update(nowMs int64, density float64) bool {
	if !q.Active {
		if density < quietDensityPerSec {
			if !q.lowTracking {
				q.lowTracking = true
				q.lowSince = nowMs
			}
			if nowMs-q.lowSince >= quietEnterMs {
				q.Active = true
				q.EnteredAt = nowMs
				q.recovering = false
				return true
			}
		} else {
			q.lowTracking = false
		}
		return false
	}

	if density >= quietDensityPerSec {
		if !q.recovering {
			q.recovering = true
			q.recoveredSince = nowMs
		}
		if nowMs-q.recoveredSince >= quietRecoverMs && nowMs-q.EnteredAt >= quietMinStayMs {
			q.Active = false
			q.lowTracking = false
			q.recovering = false
			return true
		}
	} else {
		q.recovering = false
	}
	return false
}
