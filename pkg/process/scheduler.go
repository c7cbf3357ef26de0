package process

import (
	"context"
	"reflect"
	"runtime"

	"rvkern/pkg/riscv"
	"rvkern/pkg/spinlock"
)

// Scheduler is the per-hart scheduler loop. It repeatedly looks for a
// Runnable process, marks it Running, records it in c and switches to it.
// Control returns here when the process calls sched. Scheduler returns once
// ctx is done and the current scan is finished.
func (t *Table) Scheduler(ctx context.Context, c *Cpu) {
	c.proc = nil
	for ctx.Err() == nil {
		// Make sure devices can interrupt between scans.
		c.core.Hart().IntrOn()

		found := false
		for i := range t.procs {
			p := &t.procs[i]
			g := p.lock.Lock(c.core)
			ctl := g.Data()
			if ctl.State() == Runnable {
				// Switch to the chosen process. It is the process's job
				// to release its lock and then reacquire it before
				// jumping back to us.
				ctl.setState(Running)
				c.proc = p
				p.cpu = c
				riscv.Swtch(c.context, p.context)

				// Process is done running for now.
				c.proc = nil
				found = true

				// Nobody will Wait for an exited orphan.
				if ctl.State() == Zombie && ctl.detached {
					t.logger.Printf("proc: freed orphan pid %d status %d", ctl.PID(), ctl.xstate)
					t.freeproc(p, ctl)
				}
			}
			g.Unlock()
		}
		if !found {
			// wfi
			runtime.Gosched()
		}
	}
}

// checkSched asserts the preconditions for leaving a process: the caller
// holds only its own slot lock and has already moved state off Running.
func checkSched(p *Proc, ctl *Control) *Cpu {
	c := p.cpu
	if !p.lock.Holding(c.core) {
		panic("sched: p.lock not held")
	}
	if c.core.Noff() != 1 {
		panic("sched: locks")
	}
	if ctl.State() == Running {
		panic("sched: running")
	}
	if c.core.Hart().IntrGet() {
		panic("sched: interruptible")
	}
	return c
}

// sched switches to the hart's scheduler. It saves and restores intena
// because intena is a property of this kernel thread, not of the hart.
// On return the process holds its slot lock again, possibly on another
// hart, and g is bound to that hart.
func (t *Table) sched(p *Proc, g *spinlock.Guard[Control]) {
	c := checkSched(p, g.Data())

	intena := c.core.Intena()
	riscv.Swtch(p.context, c.context)

	c = p.cpu
	c.core.SetIntena(intena)
	g.Rebind(c.core)
}

// schedExit is sched for a process that will never run again.
func (t *Table) schedExit(p *Proc, g *spinlock.Guard[Control]) {
	c := checkSched(p, g.Data())
	riscv.SwtchExit(c.context)
}

// Yield gives up the hart for one scheduling round.
func (t *Table) Yield(p *Proc) {
	g := p.lock.Lock(p.cpu.core)
	g.Data().setState(Runnable)
	t.sched(p, g)
	g.Unlock()
}

// Sleep atomically releases lk and sleeps on ch. lk is reacquired when
// the process is woken. The caller must hold lk and no slot lock.
func (t *Table) Sleep(p *Proc, ch Chan, lk spinlock.Releaser) {
	checkChan("sleep", ch)

	// Holding the slot lock guarantees no wakeup is missed (Wakeup locks
	// it too), so it is safe to release lk.
	g := p.lock.Lock(p.cpu.core)
	lk.ForceUnlock()

	// Go to sleep.
	ctl := g.Data()
	ctl.ch = ch
	ctl.setState(Sleeping)

	t.sched(p, g)

	// Tidy up.
	ctl.ch = nil

	// Reacquire original lock.
	g.Unlock()
	lk.Relock(p.cpu.core)
}

// Wakeup makes every process sleeping on ch Runnable, except the one
// running on c. The caller must not hold any slot lock.
func (t *Table) Wakeup(c *Cpu, ch Chan) {
	checkChan("wakeup", ch)

	me := c.MyProc()
	for i := range t.procs {
		p := &t.procs[i]
		if p == me {
			continue
		}
		g := p.lock.Lock(c.core)
		ctl := g.Data()
		if ctl.State() == Sleeping && ctl.ch == ch {
			ctl.setState(Runnable)
		}
		g.Unlock()
	}
}

// checkChan rejects tokens Wakeup could not match. Comparing values of an
// uncomparable type would otherwise panic with a slot lock held.
func checkChan(op string, ch Chan) {
	if ch == nil {
		panic(op + ": nil channel")
	}
	if !reflect.TypeOf(ch).Comparable() {
		panic(op + ": uncomparable channel " + reflect.TypeOf(ch).String())
	}
}
