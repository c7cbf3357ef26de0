package process

import (
	"errors"
	"fmt"
	"sync/atomic"

	"rvkern/pkg/riscv"
	"rvkern/pkg/spinlock"
)

// Process errors.
var (
	ErrNoFreeSlot = errors.New("no unused process slot")
	ErrNoChildren = errors.New("no children to wait for")
	ErrKilled     = errors.New("process killed")
	ErrBadFD      = errors.New("bad file descriptor")
)

const (
	pgSize = 4096
	// maxVA is one beyond the highest Sv39 virtual address.
	maxVA      = 1 << (9 + 9 + 9 + 12 - 1)
	trampoline = maxVA - pgSize
)

// kstackVA returns the virtual address of slot i's kernel stack. Each stack
// sits below the trampoline with an unmapped guard page beneath it.
func kstackVA(i int) uint64 {
	return trampoline - uint64(i+1)*2*pgSize
}

// Chan is an opaque sleep channel. Any comparable value works; the address
// of the structure holding the awaited condition is the usual choice.
type Chan any

// AddrSpace is an opaque user page table handle supplied by the VM layer.
type AddrSpace uintptr

// FileType identifies what an open file refers to.
type FileType int

const (
	FileNone FileType = iota
	FilePipe
	FileInode
	FileDevice
)

// File is an open file.
type File struct {
	Type FileType
}

// Inode is an in-memory inode reference.
type Inode struct {
	Dev  int
	Inum int
	Ref  int
}

// Control is the part of a process guarded by its slot lock.
//
// state and pid are atomics so ProcDump can read them without the lock;
// they are still only written by a holder of the lock.
type Control struct {
	state  atomic.Int32
	pid    atomic.Int64
	ch     Chan // set by Sleep, cleared by the sleeper on resume
	killed bool
	xstate int

	// detached is set by Exit when nobody will Wait for the process; the
	// scheduler frees the slot once the process has left the hart.
	detached bool
}

// State returns the process state.
func (c *Control) State() ProcState {
	return ProcState(c.state.Load())
}

// PID returns the process id.
func (c *Control) PID() int {
	return int(c.pid.Load())
}

// Chan returns the channel the process sleeps on, or nil.
func (c *Control) Chan() Chan {
	return c.ch
}

// Killed reports whether the process has been killed.
func (c *Control) Killed() bool {
	return c.killed
}

// ExitStatus returns the status passed to Exit.
func (c *Control) ExitStatus() int {
	return c.xstate
}

func (c *Control) setState(to ProcState) {
	from := c.State()
	if !IsValidTransition(from, to) {
		panic(fmt.Sprintf("proc: invalid state transition %s -> %s", from, to))
	}
	c.state.Store(int32(to))
}

// Proc is one slot of the process table.
type Proc struct {
	lock spinlock.Mutex[Control]

	// wait lock must be held when using this:
	parent int // slot index of the parent, -1 if none

	// these are private to the process, so lock need not be held.
	index     int
	kstack    uint64
	sz        uint64
	pagetable AddrSpace
	trapframe *riscv.TrapFrame
	context   *riscv.Context
	ofile     []*File
	cwd       *Inode
	entry     func(*Proc)

	// name is read by ProcDump without the slot lock.
	name atomic.Pointer[string]

	// cpu is the hart the process last ran on. The scheduler sets it
	// before switching in, while the process is parked.
	cpu   *Cpu
	table *Table
}

// Index returns the slot index.
func (p *Proc) Index() int {
	return p.index
}

// Name returns the process name.
func (p *Proc) Name() string {
	if s := p.name.Load(); s != nil {
		return *s
	}
	return ""
}

func (p *Proc) setName(name string) {
	p.name.Store(&name)
}

// PID returns the process id without locking.
func (p *Proc) PID() int {
	return p.lock.Peek().PID()
}

// Cpu returns the record of the hart the process is running on.
func (p *Proc) Cpu() *Cpu {
	return p.cpu
}

// Core returns the lock identity of the hart the process is running on.
// Process code passes it to every spin lock it acquires.
func (p *Proc) Core() *spinlock.Core {
	return p.cpu.core
}

// KStack returns the kernel stack address.
func (p *Proc) KStack() uint64 {
	return p.kstack
}

// AddrSpace returns the user page table handle and its size in bytes.
func (p *Proc) AddrSpace() (AddrSpace, uint64) {
	return p.pagetable, p.sz
}

// SetAddrSpace installs the user page table handle supplied by the VM layer.
func (p *Proc) SetAddrSpace(as AddrSpace, sz uint64) {
	p.pagetable = as
	p.sz = sz
}

// TrapFrame returns the saved user registers.
func (p *Proc) TrapFrame() *riscv.TrapFrame {
	return p.trapframe
}

// File returns the open file at fd.
func (p *Proc) File(fd int) (*File, error) {
	if fd < 0 || fd >= len(p.ofile) || p.ofile[fd] == nil {
		return nil, ErrBadFD
	}
	return p.ofile[fd], nil
}

// SetFile installs f at fd.
func (p *Proc) SetFile(fd int, f *File) error {
	if fd < 0 || fd >= len(p.ofile) {
		return ErrBadFD
	}
	p.ofile[fd] = f
	return nil
}

// Cwd returns the current directory.
func (p *Proc) Cwd() *Inode {
	return p.cwd
}

// SetCwd sets the current directory.
func (p *Proc) SetCwd(ip *Inode) {
	p.cwd = ip
}

// run is the body of a process goroutine. The first switch into the
// process lands here with the slot lock held by the scheduler.
func (p *Proc) run() {
	p.context.Park()
	p.lock.Unlock(p.cpu.core)

	p.entry(p)
	p.table.Exit(p, 0)
}
