package onboard

import "sync/atomic"

// Inbox is a single slot mailbox for remote targets in output shaft degrees.
// Any goroutine may Deliver; a newer delivery overwrites one not yet taken.
// Only the control loop should Take.
type Inbox struct {
	slot atomic.Pointer[float64]
}

func (b *Inbox) Deliver(outDeg float64) {
	b.slot.Store(&outDeg)
}

// Take empties the slot, reporting whether anything was pending.
func (b *Inbox) Take() (float64, bool) {
	p := b.slot.Swap(nil)
	if p == nil {
		return 0, false
	}
	return *p, true
}
