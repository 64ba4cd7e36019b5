package timer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is the frequency at which the time is updated. 500ms are precise enough for
// setting I/O deadlines.
const Resolution = 500 * time.Millisecond

var (
	millis atomic.Int64
	once   sync.Once
)

// Now returns the current time with the precision of Resolution. The clock goroutine is
// started on the first call.
func Now() time.Time {
	once.Do(start)

	ms := millis.Load()
	return time.Unix(ms/1000, (ms%1000)*1e6)
}

// Deadline returns the point in time after the timeout.
func Deadline(timeout time.Duration) time.Time {
	return Now().Add(timeout)
}

func start() {
	millis.Store(time.Now().UnixMilli())

	go func() {
		ticker := time.NewTicker(Resolution)
		for now := range ticker.C {
			millis.Store(now.UnixMilli())
		}
	}()
}
