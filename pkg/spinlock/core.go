package spinlock

import "rvkern/pkg/riscv"

// Core is the interrupt-nesting half of a hart's core record.
//
// PushOff and PopOff are like IntrOff and IntrOn except that they are
// matched: it takes two PopOffs to undo two PushOffs. If interrupts were
// off before the outermost PushOff, the matching PopOff leaves them off.
//
// A Core is only touched by code running on its hart.
type Core struct {
	hart *riscv.Hart
	// noff is the depth of PushOff nesting.
	noff int
	// intena reports whether interrupts were enabled before the outermost PushOff.
	intena bool
}

// NewCore returns the nesting record for hart h.
func NewCore(h *riscv.Hart) *Core {
	return &Core{hart: h}
}

// Hart returns the hart this record belongs to.
func (c *Core) Hart() *riscv.Hart {
	return c.hart
}

// Noff returns the current nesting depth.
func (c *Core) Noff() int {
	return c.noff
}

// Intena returns the interrupt state saved by the outermost PushOff.
func (c *Core) Intena() bool {
	return c.intena
}

// SetIntena overwrites the saved interrupt state. The scheduler handoff
// uses it because intena belongs to the kernel thread, not the hart.
func (c *Core) SetIntena(on bool) {
	c.intena = on
}

// PushOff disables interrupts and records one level of nesting.
func (c *Core) PushOff() {
	old := c.hart.IntrGet()

	c.hart.IntrOff()
	if c.noff == 0 {
		c.intena = old
	}
	c.noff++
}

// PopOff undoes one PushOff. It panics when called with interrupts
// enabled or without a matching PushOff.
func (c *Core) PopOff() {
	if c.hart.IntrGet() {
		panic("pop_off: interruptible")
	}
	if c.noff < 1 {
		panic("pop_off: not pushed")
	}
	c.noff--
	if c.noff == 0 && c.intena {
		c.hart.IntrOn()
	}
}
