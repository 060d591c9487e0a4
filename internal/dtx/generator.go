package dtx

import (
	"sync"
	"time"
)

// NowNanos is the time source used by Generator. Tests may replace it.
var NowNanos = func() uint64 { return uint64(time.Now().UnixNano()) }

// Generator hands out strictly increasing transaction IDs for one
// originator. If the wall clock goes backwards the last timestamp is reused
// and bumped, so IDs never repeat.
type Generator struct {
	mu     sync.Mutex
	origin FID
	last   uint64
}

// NewGenerator creates a Generator for the given originator.
func NewGenerator(origin FID) *Generator {
	return &Generator{origin: origin}
}

// Originator returns the FID stamped into every generated ID.
func (g *Generator) Originator() FID {
	return g.origin
}

// Next returns a new ID greater than every ID previously returned.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := NowNanos()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	return ID{Originator: g.origin, Timestamp: ts}
}
