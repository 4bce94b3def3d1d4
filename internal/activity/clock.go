// Package activity tracks the timestamp of the bot's last outbound action.
package activity

import (
	"sync/atomic"
	"time"
)

// Clock is a process-wide, forward-only timestamp of last activity.
// The zero value is an unset clock. Safe for concurrent use.
type Clock struct {
	unixNano atomic.Int64
}

// NewClock returns an unset clock.
func NewClock() *Clock {
	return &Clock{}
}

// Touch moves the clock to now. The clock never moves backward: a concurrent
// Touch with an older timestamp loses.
func (c *Clock) Touch() {
	c.advance(time.Now().UnixNano())
}

// Last returns the last recorded activity time. ok is false if the clock has
// never been touched.
func (c *Clock) Last() (t time.Time, ok bool) {
	v := c.unixNano.Load()
	if v == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, v), true
}

// Elapsed returns the duration since last activity. If the clock is unset it
// is initialized to now and Elapsed returns 0 with ok=false, so callers can
// treat the first observation as "activity starts now".
func (c *Clock) Elapsed() (d time.Duration, ok bool) {
	now := time.Now()
	v := c.unixNano.Load()
	if v == 0 {
		c.advance(now.UnixNano())
		return 0, false
	}
	return now.Sub(time.Unix(0, v)), true
}

func (c *Clock) advance(target int64) {
	for {
		current := c.unixNano.Load()
		if current >= target {
			return
		}
		if c.unixNano.CompareAndSwap(current, target) {
			return
		}
	}
}
