// Package waiter implements the condition-variable and multi-object waiter
// contract spec.md §3 and §4.5 describe as an external primitive: a
// fixed-slot aggregate that lets a task block on several condition
// variables at once and wake when any of them is signaled. It generalizes
// the teacher's fdops.Pollmsg_t/Pollers_t notify-channel pattern (a single
// buffered-channel notifier per poller) to an arbitrary wait-list per
// condition variable and an arbitrary number of condition variables per
// wait.
package waiter

import (
	"context"
	"sync"
)

// CondVar is a condition variable with a wait-list of notification
// channels. Signal wakes every currently-registered waiter exactly once;
// it does not remember signals that happen before a waiter registers,
// matching the teacher's comment that devices "don't bother" notifying
// anyone who isn't already waiting.
type CondVar struct {
	mu      sync.Mutex
	waiters map[*chan struct{}]struct{}
}

// NewCondVar returns an empty condition variable.
func NewCondVar() *CondVar {
	return &CondVar{waiters: make(map[*chan struct{}]struct{})}
}

// register adds ch to the wait-list and returns a function to remove it
// again (used on Waiter.Reset/free so a slot's channel doesn't leak a
// registration after the wait completes).
func (c *CondVar) register(ch *chan struct{}) func() {
	c.mu.Lock()
	c.waiters[ch] = struct{}{}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.waiters, ch)
		c.mu.Unlock()
	}
}

// Signal wakes every waiter currently registered on this condition
// variable. Each notification is non-blocking: a waiter's channel is
// buffered size 1, so a signal sent to an already-signaled but
// not-yet-woken waiter is simply dropped, exactly as spec.md's §9 note on
// spurious/duplicate wakeups allows.
func (c *CondVar) Signal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.waiters {
		select {
		case *ch <- struct{}{}:
		default:
		}
	}
}

// Kind identifies which of the three readiness streams a waiter slot is
// bound to.
type Kind uint8

const (
	KindNone Kind = iota
	KindRead
	KindWrite
	KindExcept
)

// slot is one entry of the fixed-size waiter aggregate.
type slot struct {
	kind      Kind
	cv        *CondVar
	ch        chan struct{}
	unregister func()
}

// Waiter is the fixed-size multi-object waiter of spec.md §3: Allocate
// reserves count slots, Set binds a slot to a condition variable of a
// given readiness kind, Reset clears a slot (per spec.md: "the signaled
// slot's wait-object type is cleared"), and SleepOn blocks until any bound
// condition signals or ctx is canceled.
type Waiter struct {
	slots []slot
}

// Allocate returns a Waiter with count empty slots. It places no upper
// bound on count and never reports an out-of-memory condition; a negative
// count panics.
func Allocate(count int) *Waiter {
	return &Waiter{slots: make([]slot, count)}
}

// Set binds slots[idx] to cv with the given kind. If cv is nil the slot is
// left unbound (spec.md: "if the handle supports the kind but provides no
// condition, it will still be polled once at the end" — selectcore handles
// that case by simply not calling Set for that fd/kind).
func (w *Waiter) Set(idx int, kind Kind, cv *CondVar) {
	s := &w.slots[idx]
	if s.unregister != nil {
		s.unregister()
	}
	s.kind = kind
	s.cv = cv
	if cv == nil {
		s.unregister = nil
		return
	}
	s.ch = make(chan struct{}, 1)
	ch := &s.ch
	s.unregister = cv.register(ch)
}

// Reset clears slots[idx]'s wait-object type and unregisters it from its
// condition variable, per spec.md §3's waiter contract.
func (w *Waiter) Reset(idx int) {
	s := &w.slots[idx]
	if s.unregister != nil {
		s.unregister()
	}
	*s = slot{}
}

// Free releases every slot's registration. Callers must call Free once
// they are done sleeping on a Waiter so condition variables don't retain
// dead channels.
func (w *Waiter) Free() {
	for i := range w.slots {
		w.Reset(i)
	}
}

// SleepOn atomically waits on every bound slot's channel and returns the
// index of whichever slot signaled first, or -1 with ctx.Err() if ctx is
// canceled first. It may return having observed a notification that does
// not correspond to an actually-ready stream — spec.md §9's "spurious
// wakeup" — callers must re-check readiness and sleep again if so.
func (w *Waiter) SleepOn(ctx context.Context) (int, error) {
	cases := make([]reflectCase, 0, len(w.slots)+1)
	for i := range w.slots {
		if w.slots[i].cv != nil {
			cases = append(cases, reflectCase{idx: i, ch: w.slots[i].ch})
		}
	}
	return sleepSelect(ctx, cases)
}
