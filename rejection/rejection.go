// Package rejection searches the tail of a window for a pin bar
// against the surviving S/R levels. The scan order is canonical: bars
// newest first, levels by descending score; the first match wins.
package rejection

import (
	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/market"
	"github.com/volarix/volarix/types"
)

// ReasonNoRejection is the canonical HOLD reason when no pin bar
// matches any level.
const ReasonNoRejection = "No rejection pattern at valid S/R levels"

const bodyEpsilon = 1e-9

// Detect scans the last RejectionTailBars bars (decision bar included)
// against the levels, which must already be sorted by descending score.
func Detect(w *market.BarWindow, levels []types.Level, p config.Params) (types.RejectionPattern, bool) {
	if len(levels) == 0 {
		return types.RejectionPattern{}, false
	}
	d := w.DecisionIndex()
	maxDistance := p.MaxDistancePips * w.Pip()

	oldest := d - p.RejectionTailBars + 1
	if oldest < 0 {
		oldest = 0
	}
	for i := d; i >= oldest; i-- {
		bar := w.Bar(i)
		if bar.Range() <= 0 {
			continue
		}
		for _, lvl := range levels {
			if pattern, ok := match(bar, i, lvl, maxDistance, p); ok {
				return pattern, true
			}
		}
	}
	return types.RejectionPattern{}, false
}

// match tests one bar against one level. Supports yield BUY bounces,
// resistances yield SELL rejections.
func match(bar types.Bar, index int, lvl types.Level, maxDistance float64, p config.Params) (types.RejectionPattern, bool) {
	body := bar.Body()
	if body < bodyEpsilon {
		body = bodyEpsilon
	}

	if lvl.Kind == types.Support {
		if abs(bar.Low-lvl.Price) > maxDistance {
			return types.RejectionPattern{}, false
		}
		ratio := bar.LowerWick() / body
		if ratio <= p.MinWickBodyRatio {
			return types.RejectionPattern{}, false
		}
		if bar.LowerWick() <= bar.UpperWick() {
			return types.RejectionPattern{}, false
		}
		pos := bar.ClosePosition()
		if pos < p.MinClosePosition {
			return types.RejectionPattern{}, false
		}
		return types.RejectionPattern{
			BarIndex:      index,
			Direction:     types.Buy,
			Level:         lvl,
			WickBodyRatio: ratio,
			ClosePosition: pos,
			Confidence:    confidence(lvl.Score, ratio),
		}, true
	}

	if abs(bar.High-lvl.Price) > maxDistance {
		return types.RejectionPattern{}, false
	}
	ratio := bar.UpperWick() / body
	if ratio <= p.MinWickBodyRatio {
		return types.RejectionPattern{}, false
	}
	if bar.UpperWick() <= bar.LowerWick() {
		return types.RejectionPattern{}, false
	}
	pos := bar.ClosePosition()
	if pos > 1-p.MinClosePosition {
		return types.RejectionPattern{}, false
	}
	return types.RejectionPattern{
		BarIndex:      index,
		Direction:     types.Sell,
		Level:         lvl,
		WickBodyRatio: ratio,
		ClosePosition: pos,
		Confidence:    confidence(lvl.Score, ratio),
	}, true
}

// confidence blends level quality and wick dominance, capped at 1.
func confidence(score int, wickBodyRatio float64) float64 {
	c := (float64(score)/100 + wickBodyRatio/10) / 2
	if c > 1 {
		return 1
	}
	return c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
