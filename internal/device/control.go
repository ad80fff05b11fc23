package device

import "sync/atomic"

// Control is the shared cooperative-abort word for a family of dispatches.
// The host writes it between dispatches; every work unit samples it exactly
// once before touching any buffer. A unit that observes the abort performs
// no reads or writes beyond the flag itself and returns immediately, so an
// aborted dispatch leaves its buffers byte-for-byte untouched.
type Control struct {
	abort uint32
}

func NewControl() *Control {
	return &Control{}
}

// RequestAbort asks all subsequent (and in-flight, not-yet-started) work
// units to skip their computation. Units already past their sample point
// run to completion; there is no preemption.
func (c *Control) RequestAbort() {
	atomic.StoreUint32(&c.abort, 1)
}

// Reset clears the abort flag. Only valid between dispatches.
func (c *Control) Reset() {
	atomic.StoreUint32(&c.abort, 0)
}

// Aborted reports whether the abort flag is set. Kernels call this once
// per unit as a snapshot, never in a loop.
func (c *Control) Aborted() bool {
	if c == nil {
		return false
	}
	return atomic.LoadUint32(&c.abort) != 0
}
