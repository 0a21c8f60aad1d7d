package vfs

import "github.com/kernelcore/corebus/waiter"

// FakeHandle is a test double implementing Handle: readiness per kind is
// toggled directly, and condition variables installed with SetCond can be
// Signal()ed by tests to simulate a device becoming ready.
type FakeHandle struct {
	ready map[ReadyKind]bool
	conds map[ReadyKind]*waiter.CondVar
}

// NewFakeHandle returns a handle that reports not-ready for every kind and
// has no condition variables until SetCond is called.
func NewFakeHandle() *FakeHandle {
	return &FakeHandle{
		ready: make(map[ReadyKind]bool),
		conds: make(map[ReadyKind]*waiter.CondVar),
	}
}

func (f *FakeHandle) SetReady(kind ReadyKind, v bool) { f.ready[kind] = v }

// SetCond installs a condition variable the handle will offer for kind.
func (f *FakeHandle) SetCond(kind ReadyKind, cv *waiter.CondVar) { f.conds[kind] = cv }

func (f *FakeHandle) Ready(kind ReadyKind) bool { return f.ready[kind] }

func (f *FakeHandle) Cond(kind ReadyKind) *waiter.CondVar { return f.conds[kind] }
