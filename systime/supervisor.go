package systime

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/kernelcore/corebus/cpu"
)

// StartSupervised launches the drift compensator under an errgroup.Group,
// the idiomatic Go substitute for kthread_create: if the goroutine fails to
// start (here, modeled by hw, sleeper or preempt being nil) the caller simply doesn't
// get a supervisor and the system runs with whatever drift accumulates, per
// spec.md's "absent drift thread" failure semantics. Wait blocks until the
// compensator returns — which, barring cancellation, only happens on the
// phase B fatal assertion.
func (c *Clock) StartSupervised(ctx context.Context, hw cpu.HWClock, sleeper cpu.Sleeper, preempt cpu.PreemptGate, dc DriftConfig, logger *log.Logger) (wait func() error, ok bool) {
	if hw == nil || sleeper == nil || preempt == nil {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("systime: kthread_create equivalent failed, drift compensator absent")
		return nil, false
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.RunDriftCompensator(gctx, hw, sleeper, preempt, dc, logger)
	})
	return g.Wait, true
}
