package process

// SetParent records parent as child's parent. Exit wakes the parent, and
// Wait only reaps children recorded here.
func (t *Table) SetParent(c *Cpu, child, parent *Proc) {
	w := t.waitLock.Lock(c.core)
	child.parent = parent.index
	w.Unlock()
}

// Parent returns the parent of p, or nil.
func (t *Table) Parent(c *Cpu, p *Proc) *Proc {
	w := t.waitLock.Lock(c.core)
	defer w.Unlock()
	if p.parent < 0 {
		return nil
	}
	return &t.procs[p.parent]
}

// reparent orphans p's children. Children that have already exited are
// freed here; the rest are freed by the scheduler when they exit. The
// caller holds the wait lock.
func (t *Table) reparent(c *Cpu, p *Proc) {
	for i := range t.procs {
		pp := &t.procs[i]
		if pp.parent != p.index {
			continue
		}
		pp.parent = -1

		// Locking the child waits out the tail of its Exit.
		g := pp.lock.Lock(c.core)
		if ctl := g.Data(); ctl.State() == Zombie {
			t.logger.Printf("proc: freed orphan pid %d status %d", ctl.PID(), ctl.xstate)
			t.freeproc(pp, ctl)
		}
		g.Unlock()
	}
}

// Exit terminates the current process with status. The process stays a
// Zombie until its parent calls Wait; a process without a parent is freed
// as soon as it has left the hart. Exit does not return.
func (t *Table) Exit(p *Proc, status int) {
	for fd := range p.ofile {
		p.ofile[fd] = nil
	}
	p.cwd = nil

	c := p.cpu
	w := t.waitLock.Lock(c.core)

	t.reparent(c, p)

	// Parent might be sleeping in Wait.
	if p.parent >= 0 {
		t.Wakeup(c, &t.procs[p.parent])
	}

	g := p.lock.Lock(c.core)
	ctl := g.Data()
	ctl.xstate = status
	ctl.detached = p.parent < 0
	ctl.setState(Zombie)

	w.Unlock()

	t.logger.Printf("proc: exit pid %d status %d", ctl.PID(), status)

	// Jump into the scheduler, never to return.
	t.schedExit(p, g)
	panic("zombie exit")
}

// Wait waits for a child of p to exit and returns its pid and exit status.
// It returns ErrNoChildren if p has none, and ErrKilled if p is killed
// while waiting.
func (t *Table) Wait(p *Proc) (pid, status int, err error) {
	w := t.waitLock.Lock(p.cpu.core)

	for {
		// Scan through table looking for exited children.
		havekids := false
		for i := range t.procs {
			pp := &t.procs[i]
			if pp.parent != p.index {
				continue
			}

			// Make sure the child isn't still in Exit or the switch.
			g := pp.lock.Lock(p.cpu.core)
			havekids = true
			ctl := g.Data()
			if ctl.State() == Zombie {
				pid, status = ctl.PID(), ctl.xstate
				t.freeproc(pp, ctl)
				pp.parent = -1
				g.Unlock()
				w.Unlock()

				t.logger.Printf("proc: reaped pid %d status %d", pid, status)
				return pid, status, nil
			}
			g.Unlock()
		}

		if !havekids {
			w.Unlock()
			return -1, 0, ErrNoChildren
		}
		if t.Killed(p.cpu, p) {
			w.Unlock()
			return -1, 0, ErrKilled
		}

		// Wait for a child to exit.
		t.Sleep(p, p, w)
	}
}

// SetKilled marks p as killed. The flag is advisory: a killed process
// keeps running until it checks Killed itself.
func (t *Table) SetKilled(c *Cpu, p *Proc) {
	g := p.lock.Lock(c.core)
	g.Data().killed = true
	g.Unlock()
}

// Killed reports whether p has been killed.
func (t *Table) Killed(c *Cpu, p *Proc) bool {
	g := p.lock.Lock(c.core)
	defer g.Unlock()
	return g.Data().Killed()
}
