// Package backtest replays a bar history through the decision pipeline
// with fresh per-run stores, resolving emitted signals against the
// bars that follow them. Fills are modelled conservatively: on a bar
// touching both the stop and a target, the stop wins.
package backtest

import (
	"fmt"
	"time"

	"github.com/volarix/volarix/config"
	"github.com/volarix/volarix/logger"
	"github.com/volarix/volarix/market"
	"github.com/volarix/volarix/pipeline"
	"github.com/volarix/volarix/state"
	"github.com/volarix/volarix/types"
)

// Exit reasons recorded on the trade ledger.
const (
	ExitStopLoss   = "stop_loss"
	ExitTakeProfit = "take_profit_3"
	ExitEndOfData  = "end_of_data"
)

// DefaultWindowSize is the canonical request length.
const DefaultWindowSize = 400

// Config tunes a replay run. Zero values fall back to the defaults.
type Config struct {
	WindowSize int
	Params     config.Params
}

// Trade is one resolved signal.
type Trade struct {
	Symbol     string
	Direction  types.Decision
	EntryTime  time.Time
	ExitTime   time.Time
	Entry      float64
	SL         float64
	TP1        float64
	TP2        float64
	TP3        float64
	Pips       float64
	ExitReason string
}

// Result aggregates the run: the trade ledger, per-stage hold counts
// and summary statistics in pips.
type Result struct {
	Invocations int
	Signals     int
	Holds       map[string]int
	Trades      []Trade
	Wins        int
	Losses      int
	NetPips     float64
	WinRate     float64
}

// openTrade tracks the unrealized remainder of an emitted signal.
type openTrade struct {
	trade     Trade
	pip       float64
	remaining float64
	nextTP    int
}

// Run walks the history, invoking the pipeline at every index once the
// warm-up window is filled. Signals are taken only while flat; the
// pipeline itself is still invoked on every bar so cooldown and
// broken-level state evolve exactly as they would live.
func Run(symbol string, tf types.Timeframe, bars []types.Bar, cfg Config, log logger.Logger) (*Result, error) {
	if cfg.WindowSize == 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Params == (config.Params{}) {
		cfg.Params = config.Default()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if len(bars) < cfg.WindowSize {
		return nil, fmt.Errorf("backtest: history (%d bars) shorter than window (%d)", len(bars), cfg.WindowSize)
	}
	if log == nil {
		log = logger.Nop()
	}

	st := state.NewDecisionState()
	stats := pipeline.NewStats()
	pl := pipeline.NewWithStats(st, log, stats)
	pip := market.PipValue(symbol)

	res := &Result{}
	var open *openTrade

	for i := cfg.WindowSize - 1; i < len(bars); i++ {
		if open != nil {
			open.advance(bars[i])
			if open.remaining <= 0 {
				res.record(open.trade)
				open = nil
			}
		}

		sig, err := pl.Evaluate(pipeline.Request{
			Symbol:    symbol,
			Timeframe: tf,
			Bars:      bars[i-cfg.WindowSize+1 : i+1],
			Params:    cfg.Params,
		})
		if err != nil {
			return nil, err
		}
		res.Invocations++

		if sig.Decision != types.Hold && open == nil {
			open = &openTrade{
				trade: Trade{
					Symbol:    symbol,
					Direction: sig.Decision,
					EntryTime: bars[i].Time,
					Entry:     sig.Entry,
					SL:        sig.SL,
					TP1:       sig.TP1,
					TP2:       sig.TP2,
					TP3:       sig.TP3,
				},
				pip:       pip,
				remaining: 1,
			}
		}
	}

	if open != nil {
		last := bars[len(bars)-1]
		open.closeAll(last.Close, last.Time, ExitEndOfData)
		res.record(open.trade)
	}

	res.Signals = stats.Signals()
	res.Holds = stats.Holds()
	if n := res.Wins + res.Losses; n > 0 {
		res.WinRate = float64(res.Wins) / float64(n)
	}
	return res, nil
}

func (r *Result) record(t Trade) {
	r.Trades = append(r.Trades, t)
	r.NetPips += t.Pips
	if t.Pips > 0 {
		r.Wins++
	} else {
		r.Losses++
	}
}

// advance checks one newly closed bar against the stop and the
// remaining targets. The stop is evaluated first.
func (o *openTrade) advance(bar types.Bar) {
	if o.trade.Direction == types.Buy {
		if bar.Low <= o.trade.SL {
			o.closeAll(o.trade.SL, bar.Time, ExitStopLoss)
			return
		}
		for o.nextTP < 3 && bar.High >= o.target(o.nextTP) {
			o.realize(o.target(o.nextTP), bar.Time)
		}
		return
	}
	if bar.High >= o.trade.SL {
		o.closeAll(o.trade.SL, bar.Time, ExitStopLoss)
		return
	}
	for o.nextTP < 3 && bar.Low <= o.target(o.nextTP) {
		o.realize(o.target(o.nextTP), bar.Time)
	}
}

func (o *openTrade) target(i int) float64 {
	switch i {
	case 0:
		return o.trade.TP1
	case 1:
		return o.trade.TP2
	default:
		return o.trade.TP3
	}
}

// realize books the scale-out fraction of the current target.
func (o *openTrade) realize(price float64, at time.Time) {
	frac := types.TPFractions[o.nextTP]
	o.trade.Pips += frac * o.pipsAt(price)
	o.remaining -= frac
	o.nextTP++
	if o.nextTP == 3 {
		o.remaining = 0
		o.trade.ExitTime = at
		o.trade.ExitReason = ExitTakeProfit
	}
}

// closeAll books the remaining fraction at the given price.
func (o *openTrade) closeAll(price float64, at time.Time, reason string) {
	if o.remaining > 0 {
		o.trade.Pips += o.remaining * o.pipsAt(price)
		o.remaining = 0
	}
	o.trade.ExitTime = at
	o.trade.ExitReason = reason
}

func (o *openTrade) pipsAt(price float64) float64 {
	if o.trade.Direction == types.Buy {
		return (price - o.trade.Entry) / o.pip
	}
	return (o.trade.Entry - price) / o.pip
}
