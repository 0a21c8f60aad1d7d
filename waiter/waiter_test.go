package waiter

import (
	"context"
	"testing"
	"time"
)

func TestSleepOnWakesOnSignal(t *testing.T) {
	cv := NewCondVar()
	w := Allocate(3)
	w.Set(1, KindRead, cv)
	defer w.Free()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		cv.Signal()
	}()

	idx, err := w.SleepOn(ctx)
	if err != nil {
		t.Fatalf("SleepOn: %v", err)
	}
	if idx != 1 {
		t.Fatalf("idx = %d, want 1", idx)
	}
}

func TestSleepOnTimesOut(t *testing.T) {
	cv := NewCondVar()
	w := Allocate(1)
	w.Set(0, KindRead, cv)
	defer w.Free()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.SleepOn(ctx)
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}
}

func TestResetUnbindsSlot(t *testing.T) {
	cv := NewCondVar()
	w := Allocate(1)
	w.Set(0, KindRead, cv)
	w.Reset(0)

	if len(cv.waiters) != 0 {
		t.Fatalf("condvar still has %d registered waiters after Reset", len(cv.waiters))
	}
}

func TestSignalWithNoWaitersDoesNotBlock(t *testing.T) {
	cv := NewCondVar()
	done := make(chan struct{})
	go func() {
		cv.Signal()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Signal blocked with no waiters")
	}
}

func TestMultipleSlotsOneSignals(t *testing.T) {
	cv1 := NewCondVar()
	cv2 := NewCondVar()
	w := Allocate(2)
	w.Set(0, KindRead, cv1)
	w.Set(1, KindWrite, cv2)
	defer w.Free()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		cv2.Signal()
	}()

	idx, err := w.SleepOn(ctx)
	if err != nil {
		t.Fatalf("SleepOn: %v", err)
	}
	if idx != 1 {
		t.Fatalf("idx = %d, want 1", idx)
	}
}
