package process

import (
	"io"
	"log"
	"sync/atomic"

	"rvkern/pkg/riscv"
	"rvkern/pkg/spinlock"
)

// Table is the fixed-size process table together with the per-hart core
// records.
type Table struct {
	cfg   Config
	cpus  []*Cpu
	procs []Proc

	// waitLock helps ensure that wakeups of waiting parents are not
	// lost and guards Proc.parent. It must be acquired before any slot lock.
	waitLock *spinlock.Mutex[struct{}]

	nextPID atomic.Int64

	logger  *log.Logger
	console io.Writer
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *log.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}

// WithConsole sets where ProcDump prints its listing.
func WithConsole(w io.Writer) Option {
	return func(t *Table) {
		t.console = w
	}
}

// NewTable creates a table with every slot Unused and one Cpu per hart.
func NewTable(cfg Config, opts ...Option) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Table{
		cfg:      cfg,
		cpus:     make([]*Cpu, cfg.NCPU),
		procs:    make([]Proc, cfg.NPROC),
		waitLock: spinlock.New("wait_lock", struct{}{}),
		logger:   log.New(io.Discard, "", 0),
		console:  io.Discard,
	}
	for _, opt := range opts {
		opt(t)
	}

	for i := range t.cpus {
		t.cpus[i] = newCpu(i)
	}
	for i := range t.procs {
		p := &t.procs[i]
		p.lock.Init("proc")
		p.index = i
		p.parent = -1
		p.kstack = kstackVA(i)
		p.context = riscv.NewContext()
		p.table = t
	}

	return t, nil
}

// Config returns the table configuration.
func (t *Table) Config() Config {
	return t.cfg
}

// Logger returns the table's logger. Drivers built on the table log
// through it too.
func (t *Table) Logger() *log.Logger {
	return t.logger
}

// Cpu returns the core record of hart id.
func (t *Table) Cpu(id int) *Cpu {
	return t.cpus[id]
}

// AllocPID returns a fresh process id. Ids start at 1 and are never reused.
func (t *Table) AllocPID() int {
	return int(t.nextPID.Add(1))
}

// AllocProc looks for an Unused slot and moves it to Used with a fresh pid.
// It returns ErrNoFreeSlot when the table is full.
func (t *Table) AllocProc(c *Cpu, name string) (*Proc, error) {
	for i := range t.procs {
		p := &t.procs[i]
		g := p.lock.Lock(c.core)
		ctl := g.Data()
		if ctl.State() != Unused {
			g.Unlock()
			continue
		}

		p.setName(name)
		p.trapframe = &riscv.TrapFrame{KernelSP: p.kstack + pgSize}
		p.context.Reset()
		p.context.SP = p.kstack + pgSize
		p.ofile = make([]*File, t.cfg.NOFILE)
		p.cwd = nil
		p.entry = nil
		p.cpu = nil

		ctl.pid.Store(int64(t.AllocPID()))
		ctl.ch = nil
		ctl.killed = false
		ctl.xstate = 0
		ctl.detached = false
		ctl.setState(Used)
		g.Unlock()

		t.logger.Printf("proc: alloc pid %d slot %d %q", p.PID(), i, name)
		return p, nil
	}

	t.logger.Printf("proc: alloc %q: %v", name, ErrNoFreeSlot)
	return nil, ErrNoFreeSlot
}

// Start makes a Used process Runnable. entry runs on the process's own
// goroutine once a scheduler picks it; returning from entry exits with
// status 0.
func (t *Table) Start(c *Cpu, p *Proc, entry func(*Proc)) {
	p.entry = entry
	go p.run()

	g := p.lock.Lock(c.core)
	g.Data().setState(Runnable)
	g.Unlock()
}

// FreeProc returns a Used process that was never started to Unused.
func (t *Table) FreeProc(c *Cpu, p *Proc) {
	w := t.waitLock.Lock(c.core)
	g := p.lock.Lock(c.core)
	t.freeproc(p, g.Data())
	p.parent = -1
	g.Unlock()
	w.Unlock()
}

// freeproc clears a slot. The caller holds the slot lock. The parent link
// is left to the caller, which must hold the wait lock to reset it.
func (t *Table) freeproc(p *Proc, ctl *Control) {
	ctl.setState(Unused)
	ctl.pid.Store(0)
	ctl.ch = nil
	ctl.killed = false
	ctl.xstate = 0
	ctl.detached = false

	p.name.Store(nil)
	p.trapframe = nil
	p.pagetable = 0
	p.sz = 0
	p.ofile = nil
	p.cwd = nil
	p.entry = nil
	p.cpu = nil
}
