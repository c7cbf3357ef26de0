// Package spinlock provides the kernel's mutual-exclusion spin lock.
//
// Ownership is bound to a hart's Core rather than to a goroutine, and every
// acquisition is paired with interrupt masking through Core.PushOff so a
// lock holder can never be interrupted by code that wants the same lock.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Mutex is a spin lock protecting a payload of type T.
type Mutex[T any] struct {
	// locked holds the owning core, nil when free.
	locked atomic.Pointer[Core]
	name   string
	data   T
}

// New returns an unlocked Mutex named name guarding data.
func New[T any](name string, data T) *Mutex[T] {
	m := &Mutex[T]{name: name}
	m.data = data
	return m
}

// Init prepares a zero Mutex in place. It is for payloads that must not
// be copied, such as ones holding atomics.
func (m *Mutex[T]) Init(name string) {
	m.name = name
}

// Name returns the diagnostic name of the lock.
func (m *Mutex[T]) Name() string {
	return m.name
}

// Lock acquires the lock for core c, spinning until it is free.
// Acquiring a lock c already holds is fatal.
func (m *Mutex[T]) Lock(c *Core) *Guard[T] {
	// Disable interrupts to avoid deadlock with an interrupt handler
	// on this hart that wants the same lock.
	c.PushOff()
	if m.Holding(c) {
		panic("acquire: " + m.name + " already held")
	}

	for !m.locked.CompareAndSwap(nil, c) {
		runtime.Gosched()
	}
	return &Guard[T]{m: m, c: c}
}

// Unlock releases the lock held by core c.
func (m *Mutex[T]) Unlock(c *Core) {
	if !m.Holding(c) {
		panic("release: " + m.name + " not held")
	}
	m.locked.Store(nil)
	c.PopOff()
}

// Holding reports whether core c holds the lock.
func (m *Mutex[T]) Holding(c *Core) bool {
	return m.locked.Load() == c
}

// Peek returns the payload without acquiring the lock. Reads through it
// race with the owner; it exists for best-effort diagnostics only.
func (m *Mutex[T]) Peek() *T {
	return &m.data
}

// Releaser is a held lock that a sleeper can drop and later retake.
type Releaser interface {
	// ForceUnlock drops ownership without the holding check.
	ForceUnlock()
	// Relock acquires the lock again for core c.
	Relock(c *Core)
}

// Guard represents ownership of a Mutex by one core.
type Guard[T any] struct {
	m        *Mutex[T]
	c        *Core
	released bool
}

var _ Releaser = (*Guard[struct{}])(nil)

// Data returns the protected payload.
func (g *Guard[T]) Data() *T {
	if g.released {
		panic("guard: " + g.m.name + " used after release")
	}
	return &g.m.data
}

// Core returns the core that owns the lock through g.
func (g *Guard[T]) Core() *Core {
	return g.c
}

// Unlock releases the lock. A guard may only be released once.
func (g *Guard[T]) Unlock() {
	if g.released {
		panic("release: " + g.m.name + " guard already released")
	}
	g.released = true
	g.m.Unlock(g.c)
}

// ForceUnlock clears ownership directly and drops the nesting level taken
// by the matching Lock, so the owning core's depth stays balanced.
func (g *Guard[T]) ForceUnlock() {
	g.released = true
	g.m.locked.Store(nil)
	g.c.PopOff()
}

// Relock re-acquires a released guard's lock for core c through the
// normal Lock path.
func (g *Guard[T]) Relock(c *Core) {
	if !g.released {
		panic("relock: " + g.m.name + " still held")
	}
	g.m.Lock(c)
	g.c = c
	g.released = false
}

// Rebind moves g to core c, which must already own the lock. A lock held
// across a context switch is released by whichever hart the thread
// resumes on.
func (g *Guard[T]) Rebind(c *Core) {
	if !g.m.Holding(c) {
		panic("rebind: " + g.m.name + " not held by new core")
	}
	g.c = c
}
