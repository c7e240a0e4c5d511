// Package atomic_clock is convenient API around atomic int64 system clock.
// Use for time accounting, e.g. frame boundary stamps written by the scan loop
// and read by anyone. Do not use where time zone matters.
package atomic_clock

import (
	"sync/atomic"
	"time"
)

type Clock struct{ v int64 }

func source() int64 { return time.Now().UnixNano() }

// Swap stores now and returns time elapsed since previous value, 0 if it was zero.
func (c *Clock) Swap() time.Duration {
	now := source()
	old := atomic.SwapInt64(&c.v, now)
	if old == 0 {
		return 0
	}
	return time.Duration(now - old)
}
