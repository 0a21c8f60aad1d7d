package systime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kernelcore/corebus/cpu"
)

// DriftConfig carries the steady-state loop delay and the verification
// sleep, both expressed as a tick count so tests can shrink them without
// touching the production default (one hour of ticks, per spec.md §4.2).
type DriftConfig struct {
	SteadyStateDelayTicks uint32
	VerifyDelayTicks      uint32
	TickPeriod            time.Duration
}

// DefaultDriftConfig returns the production cadence: a one-hour
// steady-state recheck and a 20-tick-second verification sleep, assuming a
// one-tick-per-TickPeriod real clock.
func DefaultDriftConfig(cfg Config) DriftConfig {
	return DriftConfig{
		SteadyStateDelayTicks: cfg.TimerHZ * 3600,
		VerifyDelayTicks:      cfg.TimerHZ * 20,
		TickPeriod:            time.Second / time.Duration(cfg.TimerHZ),
	}
}

// roundUpToMultiple rounds v up to the next multiple of m (m > 0).
func roundUpToMultiple(v, m uint64) uint64 {
	if v%m == 0 {
		return v
	}
	return (v/m + 1) * m
}

// RunDriftCompensator runs the three phases of spec.md §4.2 until ctx is
// canceled. Phase A aligns the clock to the hardware RTC's second
// boundary; phase B sleeps and asserts the residual drift is zero; phase C
// loops forever, re-measuring drift every dc.SteadyStateDelayTicks and
// installing a correcting tick adjustment when it has moved.
//
// Phase B's assertion failure is fatal per spec.md and is returned as an
// error rather than a bare panic, so an embedder can decide how "halt"
// looks in their own process; logging the error and os.Exit is the
// in-kernel equivalent.
func (c *Clock) RunDriftCompensator(ctx context.Context, hw cpu.HWClock, sleeper cpu.Sleeper, preempt cpu.PreemptGate, dc DriftConfig, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	if err := c.driftPhaseA(ctx, hw, sleeper, preempt, dc); err != nil {
		return fmt.Errorf("systime: drift phase A: %w", err)
	}
	logger.Printf("systime: boot alignment complete, time_ns=%d", c.GetSysTime())

	if err := sleeper.SleepTicks(ctx, dc.VerifyDelayTicks, dc.TickPeriod); err != nil {
		return fmt.Errorf("systime: drift phase B sleep: %w", err)
	}
	drift := c.GetTimestamp() - hw.Seconds()
	if drift != 0 {
		return fmt.Errorf("systime: fatal assertion failed: residual drift %d seconds after boot alignment", drift)
	}
	logger.Printf("systime: drift verification passed")

	for {
		if err := sleeper.SleepTicks(ctx, dc.SteadyStateDelayTicks, dc.TickPeriod); err != nil {
			return fmt.Errorf("systime: drift phase C sleep: %w", err)
		}
		drift = c.GetTimestamp() - hw.Seconds()
		if drift == 0 {
			continue
		}
		adjVal, adjTicks := computeAdjustment(drift, c.cfg)
		c.InstallAdjustment(adjVal, adjTicks)
		logger.Printf("systime: drift %ds detected, installed adj_val=%d ticks_rem=%d", drift, adjVal, adjTicks)
	}
}

// driftPhaseA implements boot alignment: sleep one second of ticks, then
// spin-yield under preemption-disable until the hardware RTC's integer
// second changes, then push time_ns forward to the next TS_SCALE-aligned
// boundary over roughly ten seconds.
func (c *Clock) driftPhaseA(ctx context.Context, hw cpu.HWClock, sleeper cpu.Sleeper, preempt cpu.PreemptGate, dc DriftConfig) error {
	if err := sleeper.SleepTicks(ctx, c.cfg.TimerHZ, dc.TickPeriod); err != nil {
		return err
	}

	preempt.Disable()
	hwTS := hw.Seconds()
	preempt.Enable()

	for {
		preempted, err := sleeper.Yield(ctx)
		if err != nil {
			return err
		}
		preempt.Disable()
		cur := hw.Seconds()
		if preempted {
			hwTS = cur
		}
		changed := cur != hwTS
		preempt.Enable()
		if changed {
			break
		}
	}

	tok := c.irq.Disable()
	hwTimeNS := roundUpToMultiple(c.timeNS, uint64(c.cfg.TSScale))
	needAdj := hwTimeNS > c.timeNS
	var adjVal int32
	var ticksRem int32
	if needAdj {
		adjVal = int32(c.tickDuration) / 10
		if adjVal == 0 {
			adjVal = 1
		}
		ticksRem = int32((hwTimeNS - c.timeNS) / uint64(adjVal))
	}
	c.irq.Restore(tok)

	if needAdj {
		c.InstallAdjustment(adjVal, ticksRem)
	}
	return nil
}

// computeAdjustment derives the steady-state correction per spec.md §4.2
// phase C: roughly 10% of a tick, in the direction opposing drift, held for
// |drift| * TIMER_HZ * 10 ticks. Positive drift (system ahead of HW) maps
// to a negative adj_val; the sign mapping must be preserved exactly or the
// loop runs away instead of converging.
func computeAdjustment(drift int64, cfg Config) (adjVal int32, ticksRem int32) {
	tenth := int32(cfg.TSScale / cfg.TimerHZ / 10)
	if tenth == 0 {
		tenth = 1
	}
	if drift > 0 {
		adjVal = -tenth
	} else {
		adjVal = tenth
	}
	abs := drift
	if abs < 0 {
		abs = -abs
	}
	ticksRem = int32(abs * int64(cfg.TimerHZ) * 10)
	return adjVal, ticksRem
}
