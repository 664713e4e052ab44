package pipeline

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/market"
	"github.com/volarix/volarix/state"
	"github.com/volarix/volarix/testutils"
	"github.com/volarix/volarix/types"
)

// anchor is 10:00 ET on a winter Monday, inside the London/NY overlap.
var anchor = time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC)

// buyFixture plants a double-touched support at 1.08500 and a long
// lower-wick pin on the decision bar. Ratio 7 and level score 90 put
// the confidence at 0.80, above the trend bypass.
func buyFixture() *testutils.SeriesBuilder {
	return testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingLow(382, 1.08500).
		SwingLow(390, 1.08500).
		Set(399, 1.08530, 1.08545, 1.08460, 1.08540)
}

// sellFixture mirrors buyFixture on a resistance at 1.08600.
func sellFixture() *testutils.SeriesBuilder {
	return testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingHigh(382, 1.08600).
		SwingHigh(390, 1.08600).
		Set(399, 1.08575, 1.08645, 1.08560, 1.08565)
}

func newPipeline() (*Pipeline, *Stats) {
	stats := NewStats()
	return NewWithStats(state.NewDecisionState(), testutils.NewMockLogger(), stats), stats
}

func evaluate(t *testing.T, p *Pipeline, b *testutils.SeriesBuilder) types.Signal {
	t.Helper()
	sig, err := p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: b.Bars()})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return sig
}

func TestEvaluateBuySignal(t *testing.T) {
	p, stats := newPipeline()
	sig := evaluate(t, p, buyFixture())

	if sig.Decision != types.Buy {
		t.Fatalf("decision %s, reason %q", sig.Decision, sig.Reason)
	}
	wantReason := "Support bounce at 1.08500, score 90 (trend filter bypassed)"
	if sig.Reason != wantReason {
		t.Fatalf("reason %q", sig.Reason)
	}
	if math.Abs(sig.Confidence-0.80) > 1e-9 {
		t.Fatalf("confidence %v", sig.Confidence)
	}
	approx(t, "entry", sig.Entry, 1.08540)
	approx(t, "sl", sig.SL, 1.08400)
	approx(t, "tp1", sig.TP1, 1.08680)
	approx(t, "tp2", sig.TP2, 1.08820)
	approx(t, "tp3", sig.TP3, 1.08960)
	if sig.TPFractions != types.TPFractions {
		t.Fatalf("fractions %v", sig.TPFractions)
	}
	if stats.Signals() != 1 {
		t.Fatalf("signals %d", stats.Signals())
	}
}

func TestEvaluateSellSignalBypassesTrend(t *testing.T) {
	// Rising background market, so a SELL only passes via the
	// high-confidence bypass.
	p, _ := newPipeline()
	sig := evaluate(t, p, sellFixture())

	if sig.Decision != types.Sell {
		t.Fatalf("decision %s, reason %q", sig.Decision, sig.Reason)
	}
	wantReason := "Resistance bounce at 1.08600, score 90 (trend filter bypassed)"
	if sig.Reason != wantReason {
		t.Fatalf("reason %q", sig.Reason)
	}
	approx(t, "entry", sig.Entry, 1.08565)
	approx(t, "sl", sig.SL, 1.08700)
	approx(t, "tp1", sig.TP1, 1.08430)
}

func TestEvaluateAlignedBuyWithoutBypass(t *testing.T) {
	// Ratio 5 gives confidence 0.70: above the gate, below the bypass.
	// BUY in an uptrend passes the alignment check on its own merits.
	b := testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingLow(382, 1.08500).
		SwingLow(390, 1.08500).
		Set(399, 1.08530, 1.08545, 1.08480, 1.08540)
	p, _ := newPipeline()
	sig := evaluate(t, p, b)

	if sig.Decision != types.Buy {
		t.Fatalf("decision %s, reason %q", sig.Decision, sig.Reason)
	}
	if sig.Reason != "Support bounce at 1.08500, score 90" {
		t.Fatalf("reason %q", sig.Reason)
	}
	if math.Abs(sig.Confidence-0.70) > 1e-9 {
		t.Fatalf("confidence %v", sig.Confidence)
	}
}

func TestEvaluateTrendAlignmentRejectsCounterTrendSell(t *testing.T) {
	// Ratio 5 keeps the confidence at 0.70, below the bypass, so the
	// SELL collides with the rising market.
	b := testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingHigh(382, 1.08600).
		SwingHigh(390, 1.08600).
		Set(399, 1.08565, 1.08615, 1.08550, 1.08555)
	p, stats := newPipeline()
	sig := evaluate(t, p, b)

	if sig.Decision != types.Hold {
		t.Fatalf("decision %s", sig.Decision)
	}
	if sig.Reason != "Trend alignment failed: SELL in UPTREND" {
		t.Fatalf("reason %q", sig.Reason)
	}
	if stats.HoldCount(StageTrend) != 1 {
		t.Fatalf("trend holds %d", stats.HoldCount(StageTrend))
	}
}

func TestEvaluateOutsideSession(t *testing.T) {
	// Shift the whole window so the decision bar lands at 02:00 ET.
	b := buyFixture().ShiftTimes(-8 * time.Hour)
	p, stats := newPipeline()
	sig := evaluate(t, p, b)

	if sig.Decision != types.Hold || sig.Reason != "Outside trading session (London/NY only)" {
		t.Fatalf("signal %+v", sig)
	}
	if stats.HoldCount(StageSession) != 1 {
		t.Fatal("session hold not recorded")
	}
}

func TestEvaluateNoLevels(t *testing.T) {
	b := testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004)
	p, _ := newPipeline()
	sig := evaluate(t, p, b)
	if sig.Decision != types.Hold || sig.Reason != "No significant S/R levels detected" {
		t.Fatalf("signal %+v", sig)
	}
}

func TestEvaluateNoRejection(t *testing.T) {
	// Levels exist but the tail holds only drifting background bars.
	b := testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingLow(382, 1.08500).
		SwingLow(390, 1.08500)
	p, _ := newPipeline()
	sig := evaluate(t, p, b)
	if sig.Decision != types.Hold || sig.Reason != "No rejection pattern at valid S/R levels" {
		t.Fatalf("signal %+v", sig)
	}
}

func TestEvaluateConfidenceGate(t *testing.T) {
	// Ratio 2 caps the confidence at 0.55.
	b := testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingLow(382, 1.08500).
		SwingLow(390, 1.08500).
		Set(399, 1.08540, 1.08565, 1.08500, 1.08560)
	p, _ := newPipeline()
	sig := evaluate(t, p, b)
	if sig.Decision != types.Hold || sig.Reason != "Confidence below threshold (0.55 < 0.60)" {
		t.Fatalf("signal %+v", sig)
	}
}

func TestEvaluateInsufficientEdge(t *testing.T) {
	// The pin closes 6 pips above the stop: below costs 3.4 + edge 4.0.
	b := testutils.NewSeries(400, anchor, types.H1, 1.07, 0.00004).
		SwingLow(382, 1.08500).
		SwingLow(390, 1.08500).
		Set(399, 1.08470, 1.08473, 1.08420, 1.08460)
	p, stats := newPipeline()
	sig := evaluate(t, p, b)
	if sig.Decision != types.Hold {
		t.Fatalf("decision %s, reason %q", sig.Decision, sig.Reason)
	}
	if sig.Reason != "Insufficient edge after costs (TP1 6.0 pips <= costs 3.4 + edge 4.0)" {
		t.Fatalf("reason %q", sig.Reason)
	}
	if stats.HoldCount(StageEdge) != 1 {
		t.Fatal("edge hold not recorded")
	}
}

func TestEvaluateBrokenLevelTracking(t *testing.T) {
	// A deep dip after the last touch breaks the 1.08500 support by
	// more than 15 pips. First invocation detects and records the
	// break; the second sees it in the store. Both hold.
	b := buyFixture().
		Set(395, 1.08560, 1.08565, 1.08340, 1.08555)
	st := state.NewDecisionState()
	p := New(st, testutils.NewMockLogger())

	want := "All S/R levels broken or in cooldown period (48h)"
	for run := 1; run <= 2; run++ {
		sig, err := p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: b.Bars()})
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if sig.Decision != types.Hold || sig.Reason != want {
			t.Fatalf("run %d: %+v", run, sig)
		}
	}
	if got := st.BrokenCount("EURUSD", anchor); got != 1 {
		t.Fatalf("broken count %d", got)
	}
}

func TestEvaluateCooldown(t *testing.T) {
	st := state.NewDecisionState()
	p := New(st, testutils.NewMockLogger())

	sig, err := p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: buyFixture().Bars()})
	if err != nil || sig.Decision != types.Buy {
		t.Fatalf("first run: %+v %v", sig, err)
	}

	// One bar later the same setup is still inside the 2h cooldown.
	later := buyFixture().ShiftTimes(time.Hour)
	sig, err = p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: later.Bars()})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sig.Decision != types.Hold {
		t.Fatalf("decision %s", sig.Decision)
	}
	if sig.Reason != "Signal cooldown active: next signal allowed after 2025-02-10T17:00:00Z" {
		t.Fatalf("reason %q", sig.Reason)
	}

	// At exactly two hours the window reopens.
	reopened := buyFixture().ShiftTimes(2 * time.Hour)
	sig, err = p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: reopened.Bars()})
	if err != nil || sig.Decision != types.Buy {
		t.Fatalf("third run: %+v %v", sig, err)
	}
}

func TestEvaluateCooldownIsPerSymbol(t *testing.T) {
	p, _ := newPipeline()
	if sig := evaluate(t, p, buyFixture()); sig.Decision != types.Buy {
		t.Fatalf("EURUSD: %+v", sig)
	}
	sig, err := p.Evaluate(Request{Symbol: "GBPUSD", Timeframe: types.H1, Bars: buyFixture().Bars()})
	if err != nil || sig.Decision != types.Buy {
		t.Fatalf("GBPUSD must not share the clock: %+v %v", sig, err)
	}
}

func TestEvaluateInvalidBars(t *testing.T) {
	b := testutils.NewSeries(100, anchor, types.H1, 1.07, 0.00004)
	p, stats := newPipeline()
	_, err := p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: b.Bars()})
	var invalid *market.InvalidBarsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBarsError, got %v", err)
	}
	if invalid.Reason != market.ReasonInsufficientBars {
		t.Fatalf("reason %q", invalid.Reason)
	}
	if stats.InvalidBars() != 1 {
		t.Fatal("invalid bars not recorded")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	first := func() types.Signal {
		p, _ := newPipeline()
		return evaluate(t, p, buyFixture())
	}
	a, b := first(), first()
	if a != b {
		t.Fatalf("same input, different output:\n%+v\n%+v", a, b)
	}
}

func TestEvaluateZeroParamsUseDefaults(t *testing.T) {
	p, _ := newPipeline()
	sig, err := p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: buyFixture().Bars()})
	if err != nil || sig.Decision != types.Buy {
		t.Fatalf("zero-value params must behave as defaults: %+v %v", sig, err)
	}
}

func TestEvaluateOverriddenEdge(t *testing.T) {
	// Raising the edge floor turns the accepted BUY into a hold.
	params := config.Default()
	params.MinEdgePips = 11.0 // costs 3.4 + 11.0 > the 14-pip TP1
	p, _ := newPipeline()
	sig, err := p.Evaluate(Request{Symbol: "EURUSD", Timeframe: types.H1, Bars: buyFixture().Bars(), Params: params})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sig.Decision != types.Hold {
		t.Fatalf("decision %s", sig.Decision)
	}
	if sig.Reason != "Insufficient edge after costs (TP1 14.0 pips <= costs 3.4 + edge 11.0)" {
		t.Fatalf("reason %q", sig.Reason)
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
}
