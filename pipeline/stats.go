package pipeline

import "sync"

// Stats accumulates rejection accounting across invocations. Harnesses
// attach one via NewWithStats; a nil receiver is a no-op so the live
// path pays nothing.
type Stats struct {
	mu          sync.Mutex
	signals     int
	invalidBars int
	holds       map[string]int
}

// NewStats returns an empty accounting structure.
func NewStats() *Stats {
	return &Stats{holds: make(map[string]int)}
}

func (s *Stats) recordSignal() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.signals++
	s.mu.Unlock()
}

func (s *Stats) recordInvalid() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.invalidBars++
	s.mu.Unlock()
}

func (s *Stats) recordHold(stage string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.holds[stage]++
	s.mu.Unlock()
}

// Signals returns the number of accepted signals.
func (s *Stats) Signals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals
}

// InvalidBars returns the number of rejected windows.
func (s *Stats) InvalidBars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidBars
}

// HoldCount returns the holds recorded for one stage.
func (s *Stats) HoldCount(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holds[stage]
}

// Holds copies out the per-stage hold counts.
func (s *Stats) Holds() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.holds))
	for k, v := range s.holds {
		out[k] = v
	}
	return out
}
