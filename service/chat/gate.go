package chat

import "sync/atomic"

// gate is the single-flight guard used by the periodic cycles: a tick
// that finds the previous tick still running is skipped entirely, never
// queued.
type gate struct {
	busy atomic.Bool
}

// TryAcquire reports whether the caller won the gate.
func (g *gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

func (g *gate) Release() {
	g.busy.Store(false)
}
