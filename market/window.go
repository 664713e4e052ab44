package market

import (
	"fmt"

	"github.com/volarix/volarix/types"
)

// MinLookback is the smallest window the pipeline accepts. 200 bars
// keep the EMA(50) warm; 400 is the canonical request size.
const MinLookback = 200

// MaxGapPeriods bounds weekend/holiday gaps between adjacent bars.
const MaxGapPeriods = 168

// Canonical InvalidBars reasons, each naming exactly one violated rule.
const (
	ReasonInsufficientBars = "insufficient bars (< minimum lookback)"
	ReasonZeroTimestamp    = "zero timestamp"
	ReasonNotIncreasing    = "strictly increasing timestamps"
	ReasonMisaligned       = "alignment to timeframe"
	ReasonExcessiveGap     = "gap exceeds 168 periods"
)

// InvalidBarsError reports a bar sequence that failed validation. It is
// the only error the pipeline surfaces; every other negative outcome is
// a HOLD.
type InvalidBarsError struct {
	Reason string
}

func (e *InvalidBarsError) Error() string {
	return fmt.Sprintf("invalid bars: %s", e.Reason)
}

// BarWindow is a validated, read-only view over a contiguous run of
// closed bars for one (symbol, timeframe). The last bar is the decision
// bar.
type BarWindow struct {
	symbol    string
	timeframe types.Timeframe
	bars      []types.Bar
	pip       float64
}

// NewBarWindow validates the sequence and constructs the window. The
// bars slice is retained; callers must not mutate it afterwards.
func NewBarWindow(symbol string, tf types.Timeframe, bars []types.Bar) (*BarWindow, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("unknown timeframe %q", string(tf))
	}
	if len(bars) < MinLookback {
		return nil, &InvalidBarsError{Reason: ReasonInsufficientBars}
	}
	period := tf.Seconds()
	for i, b := range bars {
		if b.Time.IsZero() || b.Time.Unix() == 0 {
			return nil, &InvalidBarsError{Reason: ReasonZeroTimestamp}
		}
		if i == 0 {
			continue
		}
		delta := b.Time.Unix() - bars[i-1].Time.Unix()
		if delta <= 0 {
			return nil, &InvalidBarsError{Reason: ReasonNotIncreasing}
		}
		if delta%period != 0 {
			return nil, &InvalidBarsError{Reason: ReasonMisaligned}
		}
		if delta > MaxGapPeriods*period {
			return nil, &InvalidBarsError{Reason: ReasonExcessiveGap}
		}
	}
	return &BarWindow{
		symbol:    symbol,
		timeframe: tf,
		bars:      bars,
		pip:       PipValue(symbol),
	}, nil
}

// Symbol returns the instrument the window belongs to.
func (w *BarWindow) Symbol() string { return w.symbol }

// Timeframe returns the bar period of the window.
func (w *BarWindow) Timeframe() types.Timeframe { return w.timeframe }

// Pip returns the pip unit for the window's symbol.
func (w *BarWindow) Pip() float64 { return w.pip }

// Period returns the timeframe length in seconds.
func (w *BarWindow) Period() int64 { return w.timeframe.Seconds() }

// Len returns the number of bars.
func (w *BarWindow) Len() int { return len(w.bars) }

// Bar returns the bar at index i (0 = oldest).
func (w *BarWindow) Bar(i int) types.Bar { return w.bars[i] }

// DecisionIndex is the index of the decision bar.
func (w *BarWindow) DecisionIndex() int { return len(w.bars) - 1 }

// DecisionBar is the most recent closed bar; the signal is evaluated at
// its close.
func (w *BarWindow) DecisionBar() types.Bar { return w.bars[len(w.bars)-1] }

// Closes copies out the close series for indicator math.
func (w *BarWindow) Closes() []float64 {
	out := make([]float64, len(w.bars))
	for i, b := range w.bars {
		out[i] = b.Close
	}
	return out
}
