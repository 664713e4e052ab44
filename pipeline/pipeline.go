// Package pipeline sequences the ten decision stages over a validated
// bar window and assembles the final signal. One invocation owns its
// symbol's state lock end to end, so store reads and updates cannot
// interleave with a concurrent run on the same instrument.
package pipeline

import (
	"fmt"
	"time"

	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/logger"
	"github.com/volarix/volarix/market"
	"github.com/volarix/volarix/metrics"
	"github.com/volarix/volarix/rejection"
	"github.com/volarix/volarix/risk"
	"github.com/volarix/volarix/session"
	"github.com/volarix/volarix/sr"
	"github.com/volarix/volarix/state"
	"github.com/volarix/volarix/trend"
	"github.com/volarix/volarix/types"
)

// Stage labels used for hold accounting and metrics.
const (
	StageSession    = "session"
	StageLevels     = "sr_levels"
	StageBroken     = "broken_levels"
	StageRejection  = "rejection"
	StageConfidence = "confidence"
	StageTrend      = "trend_alignment"
	StageCooldown   = "cooldown"
	StageGeometry   = "geometry"
	StageEdge       = "edge"
)

const bypassNote = " (trend filter bypassed)"

// Request is one decision invocation for a (symbol, timeframe) window.
type Request struct {
	Symbol    string
	Timeframe types.Timeframe
	Bars      []types.Bar
	Params    config.Params
}

// Pipeline evaluates requests against process-wide decision state.
type Pipeline struct {
	state *state.DecisionState
	log   logger.Logger
	stats *Stats
}

// New builds a pipeline over the given state.
func New(st *state.DecisionState, log logger.Logger) *Pipeline {
	return &Pipeline{state: st, log: log}
}

// NewWithStats additionally records per-stage hold counts, for use by
// harnesses.
func NewWithStats(st *state.DecisionState, log logger.Logger, stats *Stats) *Pipeline {
	return &Pipeline{state: st, log: log, stats: stats}
}

// Evaluate runs the full stage chain. The only returned error is bar
// validation failure; every other negative outcome is a HOLD signal
// with a canonical reason.
func (p *Pipeline) Evaluate(req Request) (types.Signal, error) {
	params := req.Params
	if params == (config.Params{}) {
		params = config.Default()
	}

	w, err := market.NewBarWindow(req.Symbol, req.Timeframe, req.Bars)
	if err != nil {
		metrics.InvalidBars.Inc()
		p.stats.recordInvalid()
		return types.Signal{}, err
	}

	h := p.state.Acquire(req.Symbol)
	defer h.Release()

	decisionBar := w.DecisionBar()
	decisionTime := decisionBar.Time

	if !session.InSession(decisionTime) {
		return p.hold(StageSession, session.ReasonOutsideSession), nil
	}

	// Trend never rejects; the alignment gate consumes it below.
	marketTrend := trend.Classify(w.Closes())

	levels := sr.Detect(w, params)
	if len(levels) == 0 {
		return p.hold(StageLevels, sr.ReasonNoLevels), nil
	}

	levels = p.filterAndTrackBroken(w, h, levels, decisionTime, params)
	metrics.BrokenLevels.WithLabelValues(req.Symbol).Set(float64(len(h.ActiveBroken(decisionTime))))
	if len(levels) == 0 {
		reason := fmt.Sprintf("All S/R levels broken or in cooldown period (%gh)", params.BrokenLevelCooldownHours)
		return p.hold(StageBroken, reason), nil
	}

	pattern, ok := rejection.Detect(w, levels, params)
	if !ok {
		return p.hold(StageRejection, rejection.ReasonNoRejection), nil
	}

	if pattern.Confidence < params.MinConfidence {
		reason := fmt.Sprintf("Confidence below threshold (%.2f < %.2f)", pattern.Confidence, params.MinConfidence)
		return p.hold(StageConfidence, reason), nil
	}

	bypassed := pattern.Confidence >= params.BypassConfidence
	if !bypassed && !aligned(marketTrend, pattern.Direction) {
		reason := fmt.Sprintf("Trend alignment failed: %s in %s", pattern.Direction, marketTrend)
		return p.hold(StageTrend, reason), nil
	}

	cooldown := time.Duration(params.CooldownHours * float64(time.Hour))
	if last, has := h.LastSignal(); has {
		if decisionTime.Sub(last) < cooldown {
			next := last.Add(cooldown)
			reason := fmt.Sprintf("Signal cooldown active: next signal allowed after %s", next.UTC().Format(time.RFC3339))
			return p.hold(StageCooldown, reason), nil
		}
	}

	setup, ok := risk.BuildSetup(pattern.Direction, pattern.Level.Price, decisionBar.Close, w.Pip(), params)
	if !ok {
		return p.hold(StageGeometry, risk.ReasonInvalidGeometry), nil
	}

	tp1Pips, ok := risk.EdgeOK(setup, w.Pip(), params.Cost, params.MinEdgePips)
	if !ok {
		reason := fmt.Sprintf("Insufficient edge after costs (TP1 %.1f pips <= costs %.1f + edge %.1f)",
			tp1Pips, params.Cost.TotalCostPips(), params.MinEdgePips)
		return p.hold(StageEdge, reason), nil
	}

	h.RecordSignal(decisionTime)

	reason := fmt.Sprintf("%s bounce at %s, score %d",
		pattern.Level.Kind.Label(), market.FormatPrice(pattern.Level.Price), pattern.Level.Score)
	if bypassed {
		reason += bypassNote
	}

	sig := types.Signal{
		Decision:    pattern.Direction,
		Entry:       setup.Entry,
		SL:          setup.SL,
		TP1:         setup.TP1,
		TP2:         setup.TP2,
		TP3:         setup.TP3,
		TPFractions: types.TPFractions,
		Confidence:  pattern.Confidence,
		Reason:      reason,
	}
	metrics.Decisions.WithLabelValues(string(sig.Decision)).Inc()
	p.stats.recordSignal()
	if p.log != nil {
		p.log.Info("signal_emitted",
			logger.String("symbol", req.Symbol),
			logger.String("decision", string(sig.Decision)),
			logger.Float64("entry", sig.Entry),
			logger.Float64("confidence", sig.Confidence),
			logger.String("reason", sig.Reason),
		)
	}
	return sig, nil
}

// filterAndTrackBroken drops levels near an active broken price of the
// same kind, then scans the survivors for fresh break events. A break
// is searched only in bars strictly after the level's last contributing
// touch; freshly broken levels are recorded and excluded from this
// invocation as well.
func (p *Pipeline) filterAndTrackBroken(w *market.BarWindow, h *state.SymbolHandle, levels []types.Level, decisionTime time.Time, params config.Params) []types.Level {
	tolerance := params.ClusterPips * w.Pip()
	threshold := params.BrokenLevelBreakPips * w.Pip()
	cooldown := time.Duration(params.BrokenLevelCooldownHours * float64(time.Hour))
	active := h.ActiveBroken(decisionTime)

	kept := levels[:0]
	for _, lvl := range levels {
		if nearBroken(lvl, active, tolerance) {
			continue
		}
		if breakBar, found := findBreak(w, lvl, threshold); found {
			h.MarkBroken(lvl.Price, lvl.Kind, breakBar.Time, cooldown, tolerance)
			continue
		}
		kept = append(kept, lvl)
	}
	return kept
}

func nearBroken(lvl types.Level, active []state.BrokenLevel, tolerance float64) bool {
	for _, b := range active {
		if b.Kind != lvl.Kind {
			continue
		}
		d := b.Price - lvl.Price
		if d < 0 {
			d = -d
		}
		if d < tolerance {
			return true
		}
	}
	return false
}

// findBreak walks the window chronologically after the level's last
// touch, looking for the first bar penetrating the break threshold.
func findBreak(w *market.BarWindow, lvl types.Level, threshold float64) (types.Bar, bool) {
	for i := lvl.LastTouchIndex + 1; i <= w.DecisionIndex(); i++ {
		bar := w.Bar(i)
		if lvl.Kind == types.Support && bar.Low < lvl.Price-threshold {
			return bar, true
		}
		if lvl.Kind == types.Resistance && bar.High > lvl.Price+threshold {
			return bar, true
		}
	}
	return types.Bar{}, false
}

// aligned applies the trend gate: with-trend entries and ranging
// markets pass.
func aligned(t types.Trend, direction types.Decision) bool {
	switch t {
	case types.Uptrend:
		return direction == types.Buy
	case types.Downtrend:
		return direction == types.Sell
	default:
		return true
	}
}

func (p *Pipeline) hold(stage, reason string) types.Signal {
	metrics.Decisions.WithLabelValues(string(types.Hold)).Inc()
	metrics.Holds.WithLabelValues(stage).Inc()
	p.stats.recordHold(stage)
	if p.log != nil {
		p.log.Info("hold",
			logger.String("stage", stage),
			logger.String("reason", reason),
		)
	}
	return types.HoldSignal(reason)
}
