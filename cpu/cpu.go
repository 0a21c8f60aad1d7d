// Package cpu defines the low-level, hardware-facing collaborators that
// spec.md treats as out of scope: interrupt/preemption disciplines, port
// I/O, memory-mapped I/O, and the hardware real-time clock. Only their
// interfaces are specified here, the same way the teacher's runtime package
// exposes Pushcli/Popcli/Inb/Outb without this repo reimplementing a real
// interrupt controller.
//
// The default implementations in this package are deliberately inert: they
// let the rest of the module be built and tested on an ordinary host without
// ever touching a real port or physical address.
package cpu

import "sync"

// InterruptGate disables and restores interrupts around a critical section
// that reads or writes multi-word time state, excluding the tick handler.
// Pushcli/Popcli on the teacher's runtime package is the model: Disable
// returns an opaque token that must be handed back to Restore, so nested
// disable/enable pairs compose correctly.
type InterruptGate interface {
	Disable() (token uint64)
	Restore(token uint64)
}

// PreemptGate disables and re-enables preemption around a section that must
// observe a consistent multi-read view without the risk of being suspended.
type PreemptGate interface {
	Disable()
	Enable()
}

// PortIO is the legacy CF8/CFC style port I/O primitive used by the PCI
// legacy backend, grounded on the teacher's runtime.Inl/Outl pair.
type PortIO interface {
	Outl(port uint16, val uint32)
	Inl(port uint16) uint32
}

// MMIO is memory-mapped I/O at a width-qualified physical(-ish) address,
// used by the PCI ECAM backend.
type MMIO interface {
	Load8(addr uintptr) uint8
	Load16(addr uintptr) uint16
	Load32(addr uintptr) uint32
	Store8(addr uintptr, v uint8)
	Store16(addr uintptr, v uint16)
	Store32(addr uintptr, v uint32)
}

// HWClock is the hardware real-time clock: a coarse, integer-seconds-only
// time source the drift compensator steers the software clock against.
type HWClock interface {
	Seconds() int64
}

// ACPITableLister is the seam to the out-of-scope ACPI table walker: given
// a four-character signature ("MCFG"), it returns the raw table bytes if
// present.
type ACPITableLister interface {
	Lookup(signature string) ([]byte, bool)
}

// simpleInterruptGate is a single-process stand-in for cli/sti: it owns a
// mutex so "interrupts disabled" means "no other goroutine can run a
// critical section concurrently," which is the only property the rest of
// this module's tests need.
type simpleInterruptGate struct {
	mu sync.Mutex
}

// NewInterruptGate returns a minimal InterruptGate usable outside a real
// kernel: Disable acquires a lock (modeling "the tick handler cannot run"),
// Restore releases it. The token is unused but kept in the signature to
// match the disable/restore discipline real interrupt flags require.
// Disable does not nest: a second Disable before the matching Restore
// blocks.
func NewInterruptGate() InterruptGate {
	return &simpleInterruptGate{}
}

func (g *simpleInterruptGate) Disable() uint64 {
	g.mu.Lock()
	return 0
}

func (g *simpleInterruptGate) Restore(uint64) {
	g.mu.Unlock()
}

type simplePreemptGate struct {
	mu sync.Mutex
}

// NewPreemptGate returns a minimal PreemptGate with the same single-lock
// modeling as NewInterruptGate, for sections that only need to exclude
// concurrent mutation, not a real scheduler quiescence guarantee.
func NewPreemptGate() PreemptGate {
	return &simplePreemptGate{}
}

func (g *simplePreemptGate) Disable() { g.mu.Lock() }
func (g *simplePreemptGate) Enable()  { g.mu.Unlock() }
