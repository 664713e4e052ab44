package types

import "time"

// Decision is the outcome of a pipeline invocation.
type Decision string

const (
	Buy  Decision = "BUY"
	Sell Decision = "SELL"
	Hold Decision = "HOLD"
)

// Trend classifies the EMA(20)/EMA(50) relation at the decision bar.
type Trend string

const (
	Uptrend   Trend = "UPTREND"
	Downtrend Trend = "DOWNTREND"
	Ranging   Trend = "RANGING"
)

// LevelKind distinguishes support from resistance.
type LevelKind string

const (
	Support    LevelKind = "support"
	Resistance LevelKind = "resistance"
)

// Label returns the capitalized kind used in acceptance reasons.
func (k LevelKind) Label() string {
	if k == Resistance {
		return "Resistance"
	}
	return "Support"
}

// Bar is a single closed OHLCV candle. Prices are absolute instrument
// price units; conversion to pips happens only at the boundaries.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Body is the absolute open-close distance.
func (b Bar) Body() float64 {
	if b.Close >= b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// UpperWick is the distance from the body top to the high.
func (b Bar) UpperWick() float64 {
	top := b.Open
	if b.Close > top {
		top = b.Close
	}
	return b.High - top
}

// LowerWick is the distance from the low to the body bottom.
func (b Bar) LowerWick() float64 {
	bottom := b.Open
	if b.Close < bottom {
		bottom = b.Close
	}
	return bottom - b.Low
}

// Range is the high-low distance.
func (b Bar) Range() float64 { return b.High - b.Low }

// ClosePosition locates the close inside the bar's range, 0 at the low
// and 1 at the high. Zero-range bars report 0; callers treat them as
// no-rejection bars.
func (b Bar) ClosePosition() float64 {
	r := b.Range()
	if r <= 0 {
		return 0
	}
	return (b.Close - b.Low) / r
}

// Level is a clustered S/R price. Score and touch bookkeeping are
// recomputed per request.
type Level struct {
	Price          float64
	Kind           LevelKind
	Score          int // 0..100
	LastTouchIndex int
	Touches        int
}

// RejectionPattern is a pin bar matched against a level.
type RejectionPattern struct {
	BarIndex      int
	Direction     Decision // Buy or Sell
	Level         Level
	WickBodyRatio float64
	ClosePosition float64
	Confidence    float64
}

// TPFractions is the fixed scale-out split across the three targets.
var TPFractions = [3]float64{0.4, 0.4, 0.2}

// TradeSetup carries the SL/TP geometry derived from the entry price.
type TradeSetup struct {
	Entry float64
	SL    float64
	TP1   float64
	TP2   float64
	TP3   float64
}

// Signal is the pipeline result. HOLD carries only the reason; the
// price fields and confidence are meaningful for BUY/SELL only.
type Signal struct {
	Decision    Decision
	Entry       float64
	SL          float64
	TP1         float64
	TP2         float64
	TP3         float64
	TPFractions [3]float64
	Confidence  float64
	Reason      string
}

// HoldSignal builds the canonical no-trade result.
func HoldSignal(reason string) Signal {
	return Signal{Decision: Hold, Reason: reason}
}
