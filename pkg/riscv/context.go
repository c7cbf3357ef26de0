package riscv

import "runtime"

// Context holds the registers saved across a kernel thread switch.
//
// Only callee-saved registers are kept. The resume channel stands in for
// the ra/sp pair: switching to a Context wakes the goroutine parked on it.
type Context struct {
	RA uint64
	SP uint64

	// callee-saved
	S [12]uint64

	resume chan struct{}
}

// NewContext returns a Context ready to be switched to or from.
func NewContext() *Context {
	c := &Context{}
	c.Reset()
	return c
}

// Reset clears the saved registers and prepares a fresh resume channel.
// It must not be called while a goroutine is parked on c.
func (c *Context) Reset() {
	*c = Context{resume: make(chan struct{}, 1)}
}

// Park blocks the calling goroutine until something switches to c.
func (c *Context) Park() {
	<-c.resume
}

// Swtch saves the current thread in old and resumes new.
// It returns when another thread switches back to old.
func Swtch(old, new *Context) {
	new.resume <- struct{}{}
	<-old.resume
}

// SwtchExit resumes new and terminates the calling goroutine.
// It is the last switch an exiting thread makes.
func SwtchExit(new *Context) {
	new.resume <- struct{}{}
	runtime.Goexit()
}

// TrapFrame is the user register image saved on a trap into the kernel.
// The kernel core stores it per process but never interprets it.
type TrapFrame struct {
	KernelSatp   uint64 // kernel page table
	KernelSP     uint64 // top of process's kernel stack
	KernelTrap   uint64 // usertrap()
	EPC          uint64 // saved user program counter
	KernelHartID uint64 // saved kernel tp
	RA           uint64
	SP           uint64
	GP           uint64
	TP           uint64
	T            [7]uint64
	S            [12]uint64
	A            [8]uint64
}
