package cpu

import "golang.org/x/sys/unix"

// SystemHWClock reads the host's real-time clock through
// golang.org/x/sys/unix, standing in for the hardware RTC register read a
// real kernel would perform. It is the only HWClock implementation in this
// package that touches anything outside the process; tests use a fake one
// instead so drift scenarios are deterministic.
type SystemHWClock struct{}

// Seconds returns CLOCK_REALTIME's integer-seconds value, matching the
// coarse, one-Hz granularity spec.md assumes of the hardware RTC.
func (SystemHWClock) Seconds() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return 0
	}
	return int64(ts.Sec)
}

// FakeHWClock is a test double whose second boundary is advanced explicitly,
// letting drift scenarios control exactly when the simulated hardware RTC
// ticks over.
type FakeHWClock struct {
	sec int64
}

// NewFakeHWClock returns a FakeHWClock starting at the given integer second.
func NewFakeHWClock(startSec int64) *FakeHWClock {
	return &FakeHWClock{sec: startSec}
}

func (f *FakeHWClock) Seconds() int64 { return f.sec }

// Advance moves the fake hardware clock forward by n seconds.
func (f *FakeHWClock) Advance(n int64) { f.sec += n }

// Set pins the fake hardware clock to an absolute second value.
func (f *FakeHWClock) Set(sec int64) { f.sec = sec }
