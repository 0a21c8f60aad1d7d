// Package vfs supplies the minimal slice of the VFS handle contract the
// select() core needs: a handle that can report readiness and, optionally,
// a condition variable to wait on for a given readiness kind. This is not
// a filesystem — the real VFS handle table, with its storage, inode
// lookups, and reference counting, remains out of scope per spec.md — it
// is only the seam fdops.Fdops_i.Pollone occupies in the teacher.
package vfs

import "github.com/kernelcore/corebus/waiter"

// ReadyKind mirrors waiter.Kind for the three readiness streams select()
// cares about.
type ReadyKind = waiter.Kind

const (
	Read   = waiter.KindRead
	Write  = waiter.KindWrite
	Except = waiter.KindExcept
)

// Handle is the contract a file-descriptor-backed object provides to
// select(): whether it is ready right now for a given kind, and, if it
// supports notifying waiters for that kind, the condition variable to
// subscribe to. A handle that supports a kind but returns a nil CondVar is
// still polled once at the end of a wait, per spec.md §4.5 phase 1.
type Handle interface {
	Ready(kind ReadyKind) bool
	Cond(kind ReadyKind) *waiter.CondVar
}

// Table is the minimal per-process fd table select() queries: just enough
// to resolve an fd number to a Handle.
type Table struct {
	handles map[int]Handle
}

// NewTable returns an empty fd table.
func NewTable() *Table {
	return &Table{handles: make(map[int]Handle)}
}

// Insert binds fd to h, overwriting any previous binding — the minimal
// equivalent of the real VFS's fd_insert.
func (t *Table) Insert(fd int, h Handle) {
	t.handles[fd] = h
}

// Remove unbinds fd.
func (t *Table) Remove(fd int) {
	delete(t.handles, fd)
}

// Lookup resolves fd to its Handle, or ok=false if no such fd is bound —
// the condition select() reports as EBADF.
func (t *Table) Lookup(fd int) (Handle, bool) {
	h, ok := t.handles[fd]
	return h, ok
}
