package progress

import "sync/atomic"

// Sink receives one-way progress notifications from long-running passes.
// The reported value is a monotonically increasing count of groups processed;
// there is no cancellation path through a Sink.
type Sink interface {
	Report(processed int)
}

// Noop discards progress reports.
type Noop struct{}

func (Noop) Report(int) {}

// Counter is a Sink that remembers the highest value reported.
// Safe for concurrent use.
type Counter struct {
	last atomic.Int64
}

// Report records the value if it advances the counter.
func (c *Counter) Report(processed int) {
	for {
		cur := c.last.Load()
		if int64(processed) <= cur {
			return
		}
		if c.last.CompareAndSwap(cur, int64(processed)) {
			return
		}
	}
}

// Last returns the highest value reported so far.
func (c *Counter) Last() int { return int(c.last.Load()) }
