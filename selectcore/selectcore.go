// Package selectcore implements the blocking readiness multiplexer of
// spec.md §4.5: translate userspace-shaped fd sets and an optional timeout
// into a multi-object wait on condition variables, then report which fds
// are actually ready. It is the library-level entry point the syscall
// package's Select adapts to a POSIX-shaped ABI, following the teacher's
// own split between sys_poll (the syscall) and _checkfds (the mechanism).
package selectcore

import (
	"context"
	"time"

	"github.com/kernelcore/corebus/defs"
	"github.com/kernelcore/corebus/vfs"
	"github.com/kernelcore/corebus/waiter"
)

// FDSet is a bitset-shaped set of file descriptors, sized implicitly by
// Request.NFDs. A nil FDSet means "this set was not supplied" (the NULL
// fd_set pointer case).
type FDSet struct {
	bits []bool
}

// NewFDSet returns an FDSet capable of holding fds [0, nfds).
func NewFDSet(nfds int) *FDSet {
	return &FDSet{bits: make([]bool, nfds)}
}

// Set marks fd as a member of the set.
func (s *FDSet) Set(fd int) {
	if s == nil || fd < 0 || fd >= len(s.bits) {
		return
	}
	s.bits[fd] = true
}

// IsSet reports whether fd is a member.
func (s *FDSet) IsSet(fd int) bool {
	if s == nil || fd < 0 || fd >= len(s.bits) {
		return false
	}
	return s.bits[fd]
}

// Clear removes fd from the set.
func (s *FDSet) Clear(fd int) {
	if s == nil || fd < 0 || fd >= len(s.bits) {
		return
	}
	s.bits[fd] = false
}

// Count returns the number of set bits.
func (s *FDSet) Count() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, b := range s.bits {
		if b {
			n++
		}
	}
	return n
}

// Request is the translated input to Select: nfds, the three optional fd
// sets, and an optional timeout, matching spec.md §3's select context.
type Request struct {
	NFDs    int
	Read    *FDSet
	Write   *FDSet
	Except  *FDSet
	Timeout *defs.Timeval // nil means "block indefinitely"
}

// Response is the phase-4 report: the (possibly narrowed) fd sets and the
// remaining timeout.
type Response struct {
	Read, Write, Except *FDSet
	Remaining           defs.Timeval
	Ready               int
}

// MaxHandles bounds nfds, per spec.md §6's MAX_HANDLES constant. It is a
// package variable rather than a hardcoded const so a syscall package can
// size it to its own fd table.
var MaxHandles = 1024

// timerHZ is the tick rate selectcore uses to convert a timeval timeout to
// ticks, ticks to a time.Duration for Go's own timers (the "tick engine"
// available to this module), and ticks back to a timeval remainder in
// Response.Remaining.
const timerHZ = 100

func ticksToTimeval(ticks uint32) defs.Timeval {
	secs := int64(ticks) / timerHZ
	rem := int64(ticks) % timerHZ
	usec := rem * (1_000_000 / timerHZ)
	return defs.Timeval{Sec: secs, Usec: usec}
}

func timeoutTicks(tv defs.Timeval) uint32 {
	total := tv.Sec*timerHZ + tv.Usec/(1_000_000/timerHZ)
	if total < 0 {
		return 0
	}
	if total > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(total)
}

// Select runs the four phases described in spec.md §4.5 against table.
// Phase 1 (translate) and phase 2 (convert timeout) are pure; phase 3
// (wait) blocks using ctx for cancellation in place of a real scheduler's
// Killnaps mechanism; phase 4 (report) narrows the returned sets to
// currently-ready fds.
func Select(ctx context.Context, table *vfs.Table, req Request) (Response, defs.Err_t) {
	if req.NFDs < 0 || req.NFDs > MaxHandles {
		return Response{}, defs.EINVAL
	}

	type binding struct {
		fd   int
		kind vfs.ReadyKind
	}
	var bindings []binding

	checkSet := func(set *FDSet, kind vfs.ReadyKind) defs.Err_t {
		if set == nil {
			return 0
		}
		for fd := 0; fd < req.NFDs; fd++ {
			if !set.IsSet(fd) {
				continue
			}
			if _, ok := table.Lookup(fd); !ok {
				return defs.EBADF
			}
			bindings = append(bindings, binding{fd: fd, kind: kind})
		}
		return 0
	}
	if err := checkSet(req.Read, vfs.Read); err != 0 {
		return Response{}, err
	}
	if err := checkSet(req.Write, vfs.Write); err != 0 {
		return Response{}, err
	}
	if err := checkSet(req.Except, vfs.Except); err != 0 {
		return Response{}, err
	}

	var timeoutTk uint32
	hasTimeout := req.Timeout != nil
	if hasTimeout {
		timeoutTk = timeoutTicks(*req.Timeout)
	}

	readyCount := countReady(table, req)
	if readyCount > 0 || (hasTimeout && timeoutTk == 0) {
		return buildResponse(table, req, readyCount, hasTimeout, timeoutTk), 0
	}

	condCount := 0
	for _, b := range bindings {
		h, _ := table.Lookup(b.fd)
		if h.Cond(b.kind) != nil {
			condCount++
		}
	}

	if condCount == 0 {
		if timeoutTk == 0 && !hasTimeout {
			// No condition variables and no timeout: nothing can wake
			// this call except ctx, so it blocks until ctx is done and
			// then reports EINTR.
			<-ctx.Done()
			return Response{}, defs.EINTR
		}
		if err := sleepTicks(ctx, timeoutTk); err != nil {
			return Response{}, defs.EINTR
		}
		readyCount = countReady(table, req)
		return buildResponse(table, req, readyCount, hasTimeout, 0), 0
	}

	w := waiter.Allocate(condCount)
	idx := 0
	for _, b := range bindings {
		h, _ := table.Lookup(b.fd)
		cv := h.Cond(b.kind)
		if cv == nil {
			continue
		}
		w.Set(idx, b.kind, cv)
		idx++
	}
	defer w.Free()

	waitCtx := ctx
	cancel := func() {}
	if hasTimeout {
		waitCtx, cancel = context.WithTimeout(ctx, ticksToDuration(timeoutTk))
	}
	defer cancel()

	for {
		_, err := w.SleepOn(waitCtx)
		if err != nil {
			if hasTimeout && waitCtx.Err() != nil && ctx.Err() == nil {
				// Timer expiry: report zeroed timeval per spec.md phase 3.
				return buildResponse(table, req, 0, true, 0), 0
			}
			return Response{}, defs.EINTR
		}
		readyCount = countReady(table, req)
		if readyCount == 0 {
			continue // spurious signal; re-sleep without disarming the timer
		}
		var remaining defs.Timeval
		if hasTimeout {
			if dl, ok := waitCtx.Deadline(); ok {
				remaining = durationToTimeval(time.Until(dl))
			}
		}
		resp := buildResponse(table, req, readyCount, hasTimeout, 0)
		if hasTimeout {
			resp.Remaining = remaining
		}
		return resp, 0
	}
}

func ticksToDuration(ticks uint32) time.Duration {
	return time.Duration(ticks) * time.Second / timerHZ
}

func durationToTimeval(d time.Duration) defs.Timeval {
	if d < 0 {
		d = 0
	}
	return defs.Timeval{Sec: int64(d / time.Second), Usec: int64((d % time.Second) / time.Microsecond)}
}

func sleepTicks(ctx context.Context, ticks uint32) error {
	t := time.NewTimer(ticksToDuration(ticks))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// countReady implements spec.md's count_ready_streams: for every fd still
// set in an input set, ask its handle's Ready predicate for that kind.
func countReady(table *vfs.Table, req Request) int {
	n := 0
	count := func(set *FDSet, kind vfs.ReadyKind) {
		if set == nil {
			return
		}
		for fd := 0; fd < req.NFDs; fd++ {
			if !set.IsSet(fd) {
				continue
			}
			h, ok := table.Lookup(fd)
			if ok && h.Ready(kind) {
				n++
			}
		}
	}
	count(req.Read, vfs.Read)
	count(req.Write, vfs.Write)
	count(req.Except, vfs.Except)
	return n
}

// buildResponse implements phase 4: clear bits whose handle is not
// currently ready and count the remainder as the return value.
func buildResponse(table *vfs.Table, req Request, readyCount int, hasTimeout bool, remainingTicks uint32) Response {
	narrow := func(set *FDSet, kind vfs.ReadyKind) *FDSet {
		if set == nil {
			return nil
		}
		out := NewFDSet(req.NFDs)
		for fd := 0; fd < req.NFDs; fd++ {
			if !set.IsSet(fd) {
				continue
			}
			h, ok := table.Lookup(fd)
			if ok && h.Ready(kind) {
				out.Set(fd)
			}
		}
		return out
	}
	resp := Response{
		Read:   narrow(req.Read, vfs.Read),
		Write:  narrow(req.Write, vfs.Write),
		Except: narrow(req.Except, vfs.Except),
		Ready:  readyCount,
	}
	if hasTimeout {
		resp.Remaining = ticksToTimeval(remainingTicks)
	}
	return resp
}
