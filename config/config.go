package config

import (
	"errors"
	"fmt"
)

// CostModel describes the round-trip trading cost of one signal.
type CostModel struct {
	SpreadPips        float64 // default 1.0
	SlippagePips      float64 // default 0.5, charged per side
	CommissionPerSide float64 // USD per side per lot, default 7.0
	USDPerPipPerLot   float64 // default 10.0
	LotSize           float64 // default 1.0
}

// TotalCostPips converts the full round trip into pips:
// spread + 2*slippage + commission on both sides expressed in pips.
func (c CostModel) TotalCostPips() float64 {
	return c.SpreadPips + 2*c.SlippagePips +
		(2*c.CommissionPerSide*c.LotSize)/c.USDPerPipPerLot
}

// Params holds every tunable threshold of the decision pipeline.
// All fields carry strict defaults; request-level overrides apply only
// to the subset exposed through Overrides.
type Params struct {
	// Gates
	MinConfidence    float64 // default 0.60
	BypassConfidence float64 // default 0.75, trend gate bypass
	CooldownHours    float64 // default 2, per-symbol signal spacing

	// S/R detection
	SRLookback      int     // default 50 bars before the decision bar
	SwingRadius     int     // default 5
	ClusterPips     float64 // default 10
	MinLevelScore   int     // default 60
	RecentTouchBars int     // default 20
	WickBonusRatio  float64 // default 1.5

	// Broken-level tracking
	BrokenLevelCooldownHours float64 // default 48
	BrokenLevelBreakPips     float64 // default 15

	// Rejection detection
	RejectionTailBars int     // default 5, includes the decision bar
	MaxDistancePips   float64 // default 10
	MinWickBodyRatio  float64 // default 1.5
	MinClosePosition  float64 // default 0.60 (mirrored to 0.40 for sells)

	// Setup and edge
	SLBufferPips float64 // default 10 beyond the level
	MinEdgePips  float64 // default 4.0
	Cost         CostModel
}

// Default returns the canonical parameter set.
func Default() Params {
	return Params{
		MinConfidence:    0.60,
		BypassConfidence: 0.75,
		CooldownHours:    2,

		SRLookback:      50,
		SwingRadius:     5,
		ClusterPips:     10,
		MinLevelScore:   60,
		RecentTouchBars: 20,
		WickBonusRatio:  1.5,

		BrokenLevelCooldownHours: 48,
		BrokenLevelBreakPips:     15,

		RejectionTailBars: 5,
		MaxDistancePips:   10,
		MinWickBodyRatio:  1.5,
		MinClosePosition:  0.60,

		SLBufferPips: 10,
		MinEdgePips:  4.0,
		Cost: CostModel{
			SpreadPips:        1.0,
			SlippagePips:      0.5,
			CommissionPerSide: 7.0,
			USDPerPipPerLot:   10.0,
			LotSize:           1.0,
		},
	}
}

// Overrides carries the request-level parameter subset. Nil fields fall
// back to the default.
type Overrides struct {
	MinConfidence            *float64 `json:"min_confidence"`
	BrokenLevelCooldownHours *float64 `json:"broken_level_cooldown_hours"`
	BrokenLevelBreakPips     *float64 `json:"broken_level_break_pips"`
	MinEdgePips              *float64 `json:"min_edge_pips"`
	SpreadPips               *float64 `json:"spread_pips"`
	SlippagePips             *float64 `json:"slippage_pips"`
	CommissionPerSide        *float64 `json:"commission_per_side_per_lot"`
	USDPerPipPerLot          *float64 `json:"usd_per_pip_per_lot"`
	LotSize                  *float64 `json:"lot_size"`
}

// Apply merges non-nil overrides onto p and returns the result.
func (p Params) Apply(o *Overrides) Params {
	if o == nil {
		return p
	}
	if o.MinConfidence != nil {
		p.MinConfidence = *o.MinConfidence
	}
	if o.BrokenLevelCooldownHours != nil {
		p.BrokenLevelCooldownHours = *o.BrokenLevelCooldownHours
	}
	if o.BrokenLevelBreakPips != nil {
		p.BrokenLevelBreakPips = *o.BrokenLevelBreakPips
	}
	if o.MinEdgePips != nil {
		p.MinEdgePips = *o.MinEdgePips
	}
	if o.SpreadPips != nil {
		p.Cost.SpreadPips = *o.SpreadPips
	}
	if o.SlippagePips != nil {
		p.Cost.SlippagePips = *o.SlippagePips
	}
	if o.CommissionPerSide != nil {
		p.Cost.CommissionPerSide = *o.CommissionPerSide
	}
	if o.USDPerPipPerLot != nil {
		p.Cost.USDPerPipPerLot = *o.USDPerPipPerLot
	}
	if o.LotSize != nil {
		p.Cost.LotSize = *o.LotSize
	}
	return p
}

// Validate checks that every numeric field is in a sensible range and
// returns the first problem found, so a bad configuration surfaces
// before any decision is made.
func (p *Params) Validate() error {
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("MinConfidence (%f) must be within [0, 1]", p.MinConfidence)
	}
	if p.BypassConfidence < 0 || p.BypassConfidence > 1 {
		return fmt.Errorf("BypassConfidence (%f) must be within [0, 1]", p.BypassConfidence)
	}
	if p.CooldownHours <= 0 {
		return errors.New("CooldownHours must be positive")
	}
	if p.SRLookback <= 0 {
		return errors.New("SRLookback must be positive")
	}
	if p.SwingRadius <= 0 {
		return errors.New("SwingRadius must be positive")
	}
	if p.SRLookback <= 2*p.SwingRadius {
		return fmt.Errorf("SRLookback (%d) must exceed twice the SwingRadius (%d)", p.SRLookback, p.SwingRadius)
	}
	if p.ClusterPips <= 0 {
		return errors.New("ClusterPips must be positive")
	}
	if p.MinLevelScore < 0 || p.MinLevelScore > 100 {
		return fmt.Errorf("MinLevelScore (%d) must be within [0, 100]", p.MinLevelScore)
	}
	if p.RecentTouchBars <= 0 {
		return errors.New("RecentTouchBars must be positive")
	}
	if p.WickBonusRatio <= 0 {
		return errors.New("WickBonusRatio must be positive")
	}
	if p.BrokenLevelCooldownHours <= 0 {
		return errors.New("BrokenLevelCooldownHours must be positive")
	}
	if p.BrokenLevelBreakPips <= 0 {
		return errors.New("BrokenLevelBreakPips must be positive")
	}
	if p.RejectionTailBars <= 0 {
		return errors.New("RejectionTailBars must be positive")
	}
	if p.MaxDistancePips <= 0 {
		return errors.New("MaxDistancePips must be positive")
	}
	if p.MinWickBodyRatio <= 0 {
		return errors.New("MinWickBodyRatio must be positive")
	}
	if p.MinClosePosition <= 0.5 || p.MinClosePosition >= 1 {
		return fmt.Errorf("MinClosePosition (%f) must be within (0.5, 1)", p.MinClosePosition)
	}
	if p.SLBufferPips <= 0 {
		return errors.New("SLBufferPips must be positive")
	}
	if p.MinEdgePips < 0 {
		return errors.New("MinEdgePips cannot be negative")
	}
	if p.Cost.SpreadPips < 0 || p.Cost.SlippagePips < 0 || p.Cost.CommissionPerSide < 0 {
		return errors.New("cost components cannot be negative")
	}
	if p.Cost.USDPerPipPerLot <= 0 {
		return errors.New("USDPerPipPerLot must be positive")
	}
	if p.Cost.LotSize <= 0 {
		return errors.New("LotSize must be positive")
	}
	return nil
}
