// Package ipc implements kernel pipes on top of the process table's
// sleep/wakeup protocol.
package ipc

import (
	"errors"

	"rvkern/pkg/process"
	"rvkern/pkg/spinlock"
)

// Pipe errors.
var (
	ErrPipeClosed = errors.New("pipe is closed")
	ErrBrokenPipe = errors.New("pipe is broken")
)

// PipeSize is the capacity of a pipe's ring buffer.
const PipeSize = 512

type pipeState struct {
	data      [PipeSize]byte
	nread     uint // number of bytes read
	nwrite    uint // number of bytes written
	readopen  bool // read fd is still open
	writeopen bool // write fd is still open
}

// Pipe is a bounded byte stream between processes. Readers sleep on the
// read counter while it is empty and writers sleep on the write counter
// while it is full.
type Pipe struct {
	lock  *spinlock.Mutex[pipeState]
	table *process.Table
}

// NewPipe creates a pipe with both ends open.
func NewPipe(t *process.Table) *Pipe {
	return &Pipe{
		lock:  spinlock.New("pipe", pipeState{readopen: true, writeopen: true}),
		table: t,
	}
}

// Close closes one end of the pipe and wakes anyone waiting on the other.
func (pi *Pipe) Close(c *process.Cpu, writable bool) {
	g := pi.lock.Lock(c.Core())
	st := g.Data()
	if writable {
		st.writeopen = false
		pi.table.Wakeup(c, &st.nread)
	} else {
		st.readopen = false
		pi.table.Wakeup(c, &st.nwrite)
	}
	g.Unlock()
}

// Write copies b into the pipe, sleeping while it is full. It fails with
// ErrBrokenPipe once the read end is closed.
func (pi *Pipe) Write(p *process.Proc, b []byte) (int, error) {
	g := pi.lock.Lock(p.Core())
	st := g.Data()

	i := 0
	for i < len(b) {
		if !st.writeopen {
			g.Unlock()
			return i, ErrPipeClosed
		}
		if !st.readopen || pi.table.Killed(p.Cpu(), p) {
			g.Unlock()
			return i, ErrBrokenPipe
		}
		if st.nwrite == st.nread+PipeSize {
			pi.table.Wakeup(p.Cpu(), &st.nread)
			pi.table.Sleep(p, &st.nwrite, g)
			continue
		}
		st.data[st.nwrite%PipeSize] = b[i]
		st.nwrite++
		i++
	}
	pi.table.Wakeup(p.Cpu(), &st.nread)
	g.Unlock()

	return i, nil
}

// Read copies up to len(b) bytes out of the pipe, sleeping while it is
// empty. It returns 0 once the pipe is empty and the write end is closed.
func (pi *Pipe) Read(p *process.Proc, b []byte) (int, error) {
	g := pi.lock.Lock(p.Core())
	st := g.Data()

	for st.nread == st.nwrite && st.writeopen {
		if pi.table.Killed(p.Cpu(), p) {
			g.Unlock()
			return 0, process.ErrKilled
		}
		pi.table.Sleep(p, &st.nread, g)
	}

	n := 0
	for n < len(b) && st.nread != st.nwrite {
		b[n] = st.data[st.nread%PipeSize]
		st.nread++
		n++
	}
	pi.table.Wakeup(p.Cpu(), &st.nwrite)
	g.Unlock()

	return n, nil
}

// ReadBytes reads until the first occurrence of delim or end of stream.
// The delimiter is not included.
func (pi *Pipe) ReadBytes(p *process.Proc, delim byte) ([]byte, error) {
	data := make([]byte, 0, 64)
	buf := make([]byte, 1)
	for {
		n, err := pi.Read(p, buf)
		if err != nil {
			return data, err
		}
		if n == 0 || buf[0] == delim {
			return data, nil
		}
		data = append(data, buf[0])
	}
}
