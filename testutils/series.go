// Package testutils provides synthetic bar-series builders and a
// recording logger for the test suites.
package testutils

import (
	"time"

	"github.com/volarix/volarix/types"
)

// SeriesBuilder assembles a background bar series and lets tests plant
// swings and pin bars at chosen indices. Background bars drift linearly
// with a small body so they never form swing points or rejections on
// their own.
type SeriesBuilder struct {
	bars []types.Bar
}

// NewSeries creates n background bars ending at end (the decision-bar
// time), spaced by the timeframe period. Closes run base + i*drift.
func NewSeries(n int, end time.Time, tf types.Timeframe, base, drift float64) *SeriesBuilder {
	period := time.Duration(tf.Seconds()) * time.Second
	bars := make([]types.Bar, n)
	for i := range bars {
		c := base + float64(i)*drift
		bars[i] = types.Bar{
			Time:   end.Add(-time.Duration(n-1-i) * period),
			Open:   c - 0.00002,
			High:   c + 0.00005,
			Low:    c - 0.00005,
			Close:  c,
			Volume: 1000,
		}
	}
	return &SeriesBuilder{bars: bars}
}

// Set overwrites the OHLC of bar i, keeping its time and volume.
func (b *SeriesBuilder) Set(i int, open, high, low, close float64) *SeriesBuilder {
	bar := &b.bars[i]
	bar.Open, bar.High, bar.Low, bar.Close = open, high, low, close
	return b
}

// SwingLow plants a strict local low touching price at bar i. The body
// sits just above the low so the candle earns no wick bonus.
func (b *SeriesBuilder) SwingLow(i int, price float64) *SeriesBuilder {
	return b.Set(i, price+0.0003, price+0.0004, price, price+0.0001)
}

// SwingHigh plants a strict local high touching price at bar i.
func (b *SeriesBuilder) SwingHigh(i int, price float64) *SeriesBuilder {
	return b.Set(i, price-0.0003, price, price-0.0004, price-0.0001)
}

// ShiftTimes moves every bar time by the given offset. Used to push a
// fixture outside the trading session.
func (b *SeriesBuilder) ShiftTimes(offset time.Duration) *SeriesBuilder {
	for i := range b.bars {
		b.bars[i].Time = b.bars[i].Time.Add(offset)
	}
	return b
}

// Bars returns the assembled series.
func (b *SeriesBuilder) Bars() []types.Bar {
	out := make([]types.Bar, len(b.bars))
	copy(out, b.bars)
	return out
}
