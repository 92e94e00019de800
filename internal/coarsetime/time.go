// Package coarsetime provides a clock with a fixed resolution, cheap enough to
// stamp every protocol exchange.
//
// The clock starts ticking on first use.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is the update interval of Now.
const Resolution = 50 * time.Millisecond

var (
	now   atomic.Int64
	start sync.Once
)

func run() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the current time, at most Resolution old.
func Now() time.Time {
	start.Do(run)
	return time.Unix(0, now.Load())
}
