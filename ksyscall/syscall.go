// Package ksyscall provides the POSIX-shaped entry points spec.md §6
// describes — gettimeofday, clock_gettime, clock_getres, select — each
// adapting a library-level component (systime.Clock, selectcore.Select)
// to POSIX-shaped arguments. Each returns its result together with a
// defs.Err_t that is 0 on success or the positive errno constant on
// failure; the value is not negated here. This follows the way the teacher's
// sys_gettimeofday/sys_poll adapt proc.Proc_t state to raw syscall
// arguments. Kernel is the thin composition root a real syscall dispatcher
// (out of scope) would hold one of per process. Named ksyscall rather than
// syscall so it does not shadow the standard library package of the same
// name for any importer.
package ksyscall

import (
	"context"

	"github.com/kernelcore/corebus/defs"
	"github.com/kernelcore/corebus/pci"
	"github.com/kernelcore/corebus/selectcore"
	"github.com/kernelcore/corebus/systime"
	"github.com/kernelcore/corebus/vfs"
)

// Kernel aggregates the state a syscall dispatcher would reach into: the
// system clock, the active PCI backend/segments, and the per-process fd
// table selectcore.Select queries.
type Kernel struct {
	Clock   *systime.Clock
	Fds     *vfs.Table
	Backend pci.Backend
	Segments []pci.Segment
}

// NewKernel wires a Kernel around an already-constructed clock and fd
// table; the PCI backend is set separately via SetPCIBackend once boot-time
// MCFG discovery (see the pci/acpi packages) has chosen one.
func NewKernel(clock *systime.Clock, fds *vfs.Table) *Kernel {
	return &Kernel{Clock: clock, Fds: fds}
}

// SetPCIBackend installs the backend selected by boot-time MCFG discovery,
// matching spec.md §4.3's "global pair of function pointers" — generalized
// to the Backend interface per the REDESIGN note in spec.md §9.
func (k *Kernel) SetPCIBackend(b pci.Backend, segments []pci.Segment) {
	k.Backend = b
	k.Segments = segments
}

// Gettimeofday implements spec.md §6's gettimeofday(tv*, tz*): writes
// (sec, usec) derived from the realtime clock. No timezone value is
// returned; this kernel has no concept of timezones.
func (k *Kernel) Gettimeofday() (defs.Timeval, defs.Err_t) {
	ts := k.Clock.RealTimeTimespec()
	return defs.Timeval{Sec: ts.Sec, Usec: ts.Nsec / 1000}, 0
}

// ClockGettime implements clock_gettime(clk_id, tp*): dispatches to the
// clock-specific getter, failing with EINVAL for any id this kernel does
// not recognize, per spec.md §4.1.
func (k *Kernel) ClockGettime(id defs.ClockID) (defs.Timespec, defs.Err_t) {
	if !id.Valid() {
		return defs.Timespec{}, defs.EINVAL
	}
	switch id {
	case defs.CLOCK_REALTIME, defs.CLOCK_REALTIME_COARSE:
		return k.Clock.RealTimeTimespec(), 0
	case defs.CLOCK_MONOTONIC, defs.CLOCK_MONOTONIC_COARSE, defs.CLOCK_MONOTONIC_RAW:
		return k.Clock.MonotonicTimespec(), 0
	case defs.CLOCK_PROCESS_CPUTIME_ID, defs.CLOCK_THREAD_CPUTIME_ID:
		// Per-task tick accounting is an out-of-scope scheduler
		// collaborator; callers needing this clock use
		// systime.Clock.TaskCPUTimespec directly with their own
		// PreemptGate and tick total.
		return defs.Timespec{}, defs.ENOSYS
	default:
		return defs.Timespec{}, defs.EINVAL
	}
}

// ClockGetres implements clock_getres(clk_id, res*): (0, 1e9/TIMER_HZ)
// nanoseconds for every clock id this kernel recognizes, per spec.md §4.1.
func (k *Kernel) ClockGetres(id defs.ClockID) (defs.Timespec, defs.Err_t) {
	if !id.Valid() {
		return defs.Timespec{}, defs.EINVAL
	}
	return k.Clock.Resolution(), 0
}

// Select implements select(nfds, r*, w*, e*, tv*) by adapting
// selectcore.Request/Response to a direct call — "copy_from_user"/
// "copy_to_user" are no-ops here since there is no separate userspace
// address space in this library; a real dispatcher would copy the bitsets
// in and out around this call instead.
func (k *Kernel) Select(ctx context.Context, req selectcore.Request) (selectcore.Response, defs.Err_t) {
	return selectcore.Select(ctx, k.Fds, req)
}
