package types

import "fmt"

// Timeframe is the bar period of a request window.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
	W1  Timeframe = "W1"
)

var timeframeSeconds = map[Timeframe]int64{
	M1:  60,
	M5:  5 * 60,
	M15: 15 * 60,
	M30: 30 * 60,
	H1:  3600,
	H4:  4 * 3600,
	D1:  24 * 3600,
	W1:  7 * 24 * 3600,
}

// Seconds returns the period length, or 0 for an unknown timeframe.
func (tf Timeframe) Seconds() int64 { return timeframeSeconds[tf] }

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool { return timeframeSeconds[tf] != 0 }

// ParseTimeframe converts the wire representation (e.g. "H1").
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}
