package maintenance

import "sync"

// Safemode is the operator-controlled global safety switch. It forces
// stage recovery and stretches broadcast cadence while enabled.
type Safemode struct {
	mu      sync.Mutex
	enabled bool
	reason  string
}

func (s *Safemode) Set(enabled bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		reason = ""
	}
	s.reason = reason
}

func (s *Safemode) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Safemode) Status() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, s.reason
}
