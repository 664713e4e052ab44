// Package risk derives the SL/TP geometry of a signal from the entry
// price and evaluates the cost-adjusted edge of its first target.
package risk

import (
	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/types"
)

// ReasonInvalidGeometry is the canonical HOLD reason for a setup whose
// price ordering cannot hold.
const ReasonInvalidGeometry = "Invalid geometry"

// BuildSetup places the stop beyond the level and scales three targets
// at 1R/2R/3R from the entry. The entry is the decision-bar close; a
// caller executing at the next open re-derives on its side.
func BuildSetup(direction types.Decision, levelPrice, entry, pip float64, p config.Params) (types.TradeSetup, bool) {
	buffer := p.SLBufferPips * pip
	s := types.TradeSetup{Entry: entry}

	if direction == types.Buy {
		s.SL = levelPrice - buffer
		r := entry - s.SL
		if r <= 0 {
			return types.TradeSetup{}, false
		}
		s.TP1 = entry + r
		s.TP2 = entry + 2*r
		s.TP3 = entry + 3*r
		return s, validBuy(s)
	}

	s.SL = levelPrice + buffer
	r := s.SL - entry
	if r <= 0 {
		return types.TradeSetup{}, false
	}
	s.TP1 = entry - r
	s.TP2 = entry - 2*r
	s.TP3 = entry - 3*r
	return s, validSell(s)
}

func validBuy(s types.TradeSetup) bool {
	return s.SL < s.Entry && s.Entry < s.TP1 && s.TP1 < s.TP2 && s.TP2 < s.TP3
}

func validSell(s types.TradeSetup) bool {
	return s.TP3 < s.TP2 && s.TP2 < s.TP1 && s.TP1 < s.Entry && s.Entry < s.SL
}

// TP1Pips is the distance from entry to the first target in pips.
func TP1Pips(s types.TradeSetup, pip float64) float64 {
	d := s.TP1 - s.Entry
	if d < 0 {
		d = -d
	}
	return d / pip
}

// EdgeOK requires the first target to clear the round-trip cost plus
// the minimum edge, strictly.
func EdgeOK(s types.TradeSetup, pip float64, cost config.CostModel, minEdgePips float64) (float64, bool) {
	tp1 := TP1Pips(s, pip)
	return tp1, tp1 > cost.TotalCostPips()+minEdgePips
}
