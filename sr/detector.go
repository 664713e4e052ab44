// Package sr detects support/resistance levels inside a bar window:
// swing highs/lows over a symmetric radius, price clustering within a
// pip tolerance, and touch/recency/wick scoring.
package sr

import (
	"sort"

	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/market"
	"github.com/volarix/volarix/types"
)

// ReasonNoLevels is the canonical HOLD reason when no level scores high
// enough.
const ReasonNoLevels = "No significant S/R levels detected"

const bodyEpsilon = 1e-9

// swing is a raw candidate before clustering.
type swing struct {
	index    int
	price    float64
	fromHigh bool
	bar      types.Bar
}

// Detect returns the score-ranked level set for the window, highest
// score first. Levels below the minimum score are dropped.
func Detect(w *market.BarWindow, p config.Params) []types.Level {
	swings := findSwings(w, p)
	if len(swings) == 0 {
		return nil
	}
	clusters := clusterSwings(swings, p.ClusterPips*w.Pip())
	d := w.DecisionIndex()

	levels := make([]types.Level, 0, len(clusters))
	for _, c := range clusters {
		lvl := c.toLevel(d, p)
		if lvl.Score >= p.MinLevelScore {
			levels = append(levels, lvl)
		}
	}

	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Score != levels[j].Score {
			return levels[i].Score > levels[j].Score
		}
		if levels[i].Touches != levels[j].Touches {
			return levels[i].Touches > levels[j].Touches
		}
		return levels[i].Price < levels[j].Price
	})
	return levels
}

// findSwings scans the lookback region for strict local extrema. A
// swing high at i beats every high in [i-w, i-1] and [i+1, i+w]; swing
// lows are symmetric. Candidates need w bars on both sides inside the
// window and must land in [decision-lookback, decision-1].
func findSwings(w *market.BarWindow, p config.Params) []swing {
	d := w.DecisionIndex()
	radius := p.SwingRadius

	lo := d - p.SRLookback
	if lo < radius {
		lo = radius
	}
	hi := d - 1
	if hi > d-radius {
		hi = d - radius
	}

	var out []swing
	for i := lo; i <= hi; i++ {
		bar := w.Bar(i)
		if isSwingHigh(w, i, radius) {
			out = append(out, swing{index: i, price: bar.High, fromHigh: true, bar: bar})
		}
		if isSwingLow(w, i, radius) {
			out = append(out, swing{index: i, price: bar.Low, fromHigh: false, bar: bar})
		}
	}
	return out
}

func isSwingHigh(w *market.BarWindow, i, radius int) bool {
	h := w.Bar(i).High
	for j := i - radius; j <= i+radius; j++ {
		if j == i {
			continue
		}
		if w.Bar(j).High >= h {
			return false
		}
	}
	return true
}

func isSwingLow(w *market.BarWindow, i, radius int) bool {
	l := w.Bar(i).Low
	for j := i - radius; j <= i+radius; j++ {
		if j == i {
			continue
		}
		if w.Bar(j).Low <= l {
			return false
		}
	}
	return true
}

// cluster is a fold of price-adjacent swings.
type cluster struct {
	swings []swing
}

// clusterSwings sorts candidates by price and folds consecutive points
// while the gap to the previous one stays within the tolerance.
func clusterSwings(swings []swing, tolerance float64) []cluster {
	sorted := make([]swing, len(swings))
	copy(sorted, swings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].price != sorted[j].price {
			return sorted[i].price < sorted[j].price
		}
		return sorted[i].index < sorted[j].index
	})

	var out []cluster
	current := cluster{swings: []swing{sorted[0]}}
	for _, s := range sorted[1:] {
		prev := current.swings[len(current.swings)-1]
		if s.price-prev.price <= tolerance {
			current.swings = append(current.swings, s)
			continue
		}
		out = append(out, current)
		current = cluster{swings: []swing{s}}
	}
	return append(out, current)
}

// toLevel derives the level price, kind and score from the folded
// swings. Kind follows the majority origin; an even split resolves to
// resistance, the high-origin side.
func (c cluster) toLevel(decisionIndex int, p config.Params) types.Level {
	var sum float64
	var highs, lows, lastTouch int
	for _, s := range c.swings {
		sum += s.price
		if s.fromHigh {
			highs++
		} else {
			lows++
		}
		if s.index > lastTouch {
			lastTouch = s.index
		}
	}

	kind := types.Support
	if highs >= lows {
		kind = types.Resistance
	}

	score := 20 * len(c.swings)
	if lastTouch >= decisionIndex-p.RecentTouchBars {
		score += 50
	}
	if c.hasWickRejection(kind, p.WickBonusRatio) {
		score += 20
	}
	if score > 100 {
		score = 100
	}

	return types.Level{
		Price:          sum / float64(len(c.swings)),
		Kind:           kind,
		Score:          score,
		LastTouchIndex: lastTouch,
		Touches:        len(c.swings),
	}
}

// hasWickRejection reports whether any contributing candle showed a
// dominant wick on the side matching the level kind.
func (c cluster) hasWickRejection(kind types.LevelKind, minRatio float64) bool {
	for _, s := range c.swings {
		body := s.bar.Body()
		if body < bodyEpsilon {
			body = bodyEpsilon
		}
		wick := s.bar.LowerWick()
		if kind == types.Resistance {
			wick = s.bar.UpperWick()
		}
		if wick/body > minRatio {
			return true
		}
	}
	return false
}
