// Package session gates decisions on the London/New York trading hours
// of the decision bar. Bar timestamps are UTC instants; the hour is
// taken after conversion to US Eastern time so DST shifts are handled
// once, here.
package session

import "time"

// ReasonOutsideSession is the canonical HOLD reason for off-session bars.
const ReasonOutsideSession = "Outside trading session (London/NY only)"

// Eastern-hour session bounds, half-open.
const (
	londonOpen   = 3
	londonClose  = 11
	newYorkOpen  = 8
	newYorkClose = 22
)

var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("session: load America/New_York: " + err.Error())
	}
	return loc
}

// InSession reports whether t falls inside the London or New York
// session.
func InSession(t time.Time) bool {
	h := t.In(eastern).Hour()
	if h >= londonOpen && h < londonClose {
		return true
	}
	return h >= newYorkOpen && h < newYorkClose
}
