package process

import (
	"rvkern/pkg/riscv"
	"rvkern/pkg/spinlock"
)

// Cpu is the per-hart core record. It is only read or written by code
// running on its hart.
type Cpu struct {
	// proc is the process running on this hart, or nil.
	proc *Proc
	// context is switched to in order to enter the scheduler.
	context *riscv.Context
	// core carries the interrupt nesting state and is the lock identity.
	core *spinlock.Core
}

func newCpu(id int) *Cpu {
	return &Cpu{
		context: riscv.NewContext(),
		core:    spinlock.NewCore(riscv.NewHart(id)),
	}
}

// ID returns the hart id.
func (c *Cpu) ID() int {
	return c.core.Hart().ID()
}

// Core returns the hart's nesting record, which is also its lock identity.
func (c *Cpu) Core() *spinlock.Core {
	return c.core
}

// MyProc returns the process running on this hart, or nil.
func (c *Cpu) MyProc() *Proc {
	c.core.PushOff()
	p := c.proc
	c.core.PopOff()
	return p
}
