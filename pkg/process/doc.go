/*
Package process implements the kernel's process table and the
sleep/wakeup/scheduler handoff that lets processes block and resume across
harts.

The machine is simulated: each hart is a riscv.Hart with its own Cpu
record, and each process runs on its own goroutine. A riscv.Swtch between a
process context and its hart's scheduler context hands the hart from one
goroutine to the other, so at most one goroutine executes per hart.

# Process States

Each slot of the Table moves through:

	Unused -> Used -> Runnable <-> Running -> Sleeping -> Runnable
	                                      \-> Zombie -> Unused

A slot's state, sleep channel, killed flag, exit status and pid live behind
the slot's spin lock. The remaining fields are private to the process, or
to the allocator while the slot is Unused, and are touched without locking.

A Zombie is freed by its parent's Wait. A process exiting without a parent
is freed by the scheduler as soon as it has left the hart, and a parent
that exits frees any children that are already Zombies.

# Lock Ordering

The wait lock, which guards parent links, is always acquired before any
slot lock. A condition lock passed to Sleep is likewise held before the
sleeper's slot lock.

# Usage

Boot a table and run one scheduler per hart:

	t, err := process.NewTable(process.DefaultConfig())
	if err != nil {
		// Handle error
	}
	for i := 0; i < ncpu; i++ {
		go t.Scheduler(ctx, t.Cpu(i))
	}

Create and start a process from a device hart:

	p, err := t.AllocProc(dev, "worker")
	if err != nil {
		// Handle error
	}
	t.Start(dev, p, func(p *process.Proc) {
		g := cond.Lock(p.Core())
		for !g.Data().ready {
			t.Sleep(p, cond, g)
		}
		g.Unlock()
	})

Wake it from any hart once the condition holds:

	t.Wakeup(dev, cond)
*/
package process
