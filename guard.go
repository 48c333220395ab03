package iptu

import (
	"sync"
	"sync/atomic"
	"time"
)

// guard serializes mutating operations and rejects any mutating entry while
// an operation that calls out to custody is in flight. Entry while busy fails
// with ErrReentrant and never waits.
type guard struct {
	busy atomic.Bool
	mu   sync.Mutex
}

// hold marks the ledger busy for the whole call. Used by operations that
// move funds.
func (g *guard) hold() (release func(), err error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	g.mu.Lock()
	return func() {
		g.mu.Unlock()
		g.busy.Store(false)
	}, nil
}

// enter serializes an operation that does not move funds. It fails while a
// hold is active.
func (g *guard) enter() (release func(), err error) {
	if g.busy.Load() {
		return nil, ErrReentrant
	}
	g.mu.Lock()
	return g.mu.Unlock, nil
}

// Clock supplies the time used to stamp payments and events.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
