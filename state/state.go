// Package state holds the process-wide decision memory: per-symbol
// broken-level records and the last-signal cooldown clock. Symbols are
// independently locked so concurrent pipelines on different instruments
// never contend; a pipeline run holds its symbol's lock end to end.
package state

import (
	"sync"
	"time"

	"github.com/volarix/volarix/types"
)

// BrokenLevel records an S/R level that price penetrated beyond the
// break threshold. The entry expires at CooldownUntil.
type BrokenLevel struct {
	Price         float64
	Kind          types.LevelKind
	BrokenAt      time.Time
	CooldownUntil time.Time
}

type symbolState struct {
	mu         sync.Mutex
	broken     []BrokenLevel
	lastSignal time.Time
	hasSignal  bool
}

// DecisionState owns all per-symbol memory for one process. Tests and
// backtest runs construct a fresh instance for determinism.
type DecisionState struct {
	mu      sync.Mutex
	symbols map[string]*symbolState
}

// NewDecisionState returns an empty store.
func NewDecisionState() *DecisionState {
	return &DecisionState{symbols: make(map[string]*symbolState)}
}

func (s *DecisionState) symbol(symbol string) *symbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{}
		s.symbols[symbol] = st
	}
	return st
}

// Acquire locks the symbol's state for the duration of a pipeline run
// and returns a handle for reads and updates. Callers must Release it.
func (s *DecisionState) Acquire(symbol string) *SymbolHandle {
	st := s.symbol(symbol)
	st.mu.Lock()
	return &SymbolHandle{st: st}
}

// SymbolHandle is a locked view of one symbol's entries.
type SymbolHandle struct {
	st *symbolState
}

// Release unlocks the symbol.
func (h *SymbolHandle) Release() { h.st.mu.Unlock() }

// ActiveBroken prunes expired records and returns those still cooling
// down at the given decision time.
func (h *SymbolHandle) ActiveBroken(at time.Time) []BrokenLevel {
	kept := h.st.broken[:0]
	for _, b := range h.st.broken {
		if at.Before(b.CooldownUntil) {
			kept = append(kept, b)
		}
	}
	h.st.broken = kept
	out := make([]BrokenLevel, len(kept))
	copy(out, kept)
	return out
}

// MarkBroken inserts or refreshes a broken-level record. Two records
// are the same level when their prices differ by less than tolerance
// and the kinds match.
func (h *SymbolHandle) MarkBroken(price float64, kind types.LevelKind, brokenAt time.Time, cooldown time.Duration, tolerance float64) {
	until := brokenAt.Add(cooldown)
	for i, b := range h.st.broken {
		if b.Kind == kind && within(b.Price, price, tolerance) {
			h.st.broken[i].BrokenAt = brokenAt
			h.st.broken[i].CooldownUntil = until
			return
		}
	}
	h.st.broken = append(h.st.broken, BrokenLevel{
		Price:         price,
		Kind:          kind,
		BrokenAt:      brokenAt,
		CooldownUntil: until,
	})
}

// LastSignal returns the decision-bar time of the most recent accepted
// signal, when one exists.
func (h *SymbolHandle) LastSignal() (time.Time, bool) {
	return h.st.lastSignal, h.st.hasSignal
}

// RecordSignal stores the decision-bar time of an accepted signal. The
// wall clock never enters the store; bar time keeps live and replay
// identical.
func (h *SymbolHandle) RecordSignal(decisionTime time.Time) {
	h.st.lastSignal = decisionTime
	h.st.hasSignal = true
}

// BrokenCount reports the number of active broken levels for a symbol
// at the given time. Observability only.
func (s *DecisionState) BrokenCount(symbol string, at time.Time) int {
	h := s.Acquire(symbol)
	defer h.Release()
	return len(h.ActiveBroken(at))
}

// NextSignalAfter reports when the symbol's cooldown permits the next
// signal. The second result is false when no signal was ever recorded.
func (s *DecisionState) NextSignalAfter(symbol string, cooldown time.Duration) (time.Time, bool) {
	h := s.Acquire(symbol)
	defer h.Release()
	last, ok := h.LastSignal()
	if !ok {
		return time.Time{}, false
	}
	return last.Add(cooldown), true
}

// ClearAll wipes every symbol's entries. Used by tests.
func (s *DecisionState) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = make(map[string]*symbolState)
}

func within(a, b, tolerance float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < tolerance
}
