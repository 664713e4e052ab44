// Package trend classifies the market regime at the decision bar from
// the EMA(20)/EMA(50) relation over the window's close series. The
// spans are fixed: changing them breaks live/replay parity.
package trend

import "github.com/volarix/volarix/types"

const (
	fastSpan = 20
	slowSpan = 50
)

// Classify returns UPTREND when EMA(20) > EMA(50) at the last close,
// DOWNTREND when below, RANGING when equal. It never rejects; the
// alignment gate consumes the result later in the pipeline.
func Classify(closes []float64) types.Trend {
	fast := EMA(closes, fastSpan)
	slow := EMA(closes, slowSpan)
	switch {
	case fast > slow:
		return types.Uptrend
	case fast < slow:
		return types.Downtrend
	default:
		return types.Ranging
	}
}

// EMA computes an exponential moving average over the whole series,
// seeded with the SMA of the first span values. Returns 0 when the
// series is shorter than the span.
func EMA(values []float64, span int) float64 {
	if span <= 0 || len(values) < span {
		return 0
	}
	var sum float64
	for _, v := range values[:span] {
		sum += v
	}
	ema := sum / float64(span)
	alpha := 2.0 / float64(span+1)
	for _, v := range values[span:] {
		ema = v*alpha + ema*(1-alpha)
	}
	return ema
}
