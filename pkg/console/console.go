// Package console implements the console line discipline. Input arrives
// one character at a time from the UART interrupt handler and is handed to
// readers a line at a time.
//
// Special input characters:
//
//	newline   -- end of line
//	control-h -- backspace
//	control-u -- kill line
//	control-d -- end of file
//	control-p -- print process list
package console

import (
	"io"

	"rvkern/pkg/process"
	"rvkern/pkg/spinlock"
)

// InputBuf is the size of the input ring.
const InputBuf = 128

const backspace = '\b'

func ctrl(b byte) byte {
	return b - '@'
}

type state struct {
	buf [InputBuf]byte
	r   uint // read index
	w   uint // write index
	e   uint // edit index
}

// Console is the line discipline between the UART and readers.
type Console struct {
	lock  *spinlock.Mutex[state]
	table *process.Table
	uart  io.Writer
}

// New returns a console echoing to uart.
func New(t *process.Table, uart io.Writer) *Console {
	return &Console{
		lock:  spinlock.New("cons", state{}),
		table: t,
		uart:  uart,
	}
}

// putc sends one character to the uart. A backspace overwrites the
// previous character with a space. Echo has no caller to report to, so a
// failed write is logged and the input is still processed.
func (cn *Console) putc(b byte) {
	out := []byte{b}
	if b == backspace {
		out = []byte{'\b', ' ', '\b'}
	}
	if _, err := cn.uart.Write(out); err != nil {
		cn.table.Logger().Printf("console: uart write: %v", err)
	}
}

// Write sends b to the uart.
func (cn *Console) Write(b []byte) (int, error) {
	return cn.uart.Write(b)
}

// Intr is the console input interrupt handler, called on hart c for each
// input character. It does erase/kill processing, appends to the buffer,
// and wakes up Read if a whole line has arrived.
func (cn *Console) Intr(c *process.Cpu, b byte) {
	g := cn.lock.Lock(c.Core())
	defer g.Unlock()
	st := g.Data()

	switch {
	case b == ctrl('P'):
		// Print process list.
		cn.table.ProcDump()
	case b == ctrl('U'):
		// Kill line.
		for st.e != st.w && st.buf[(st.e-1)%InputBuf] != '\n' {
			st.e--
			cn.putc(backspace)
		}
	case b == ctrl('H') || b == 0x7f:
		if st.e != st.w {
			st.e--
			cn.putc(backspace)
		}
	default:
		if b == 0 || st.e-st.r >= InputBuf {
			return
		}
		if b == '\r' {
			b = '\n'
		}

		// Echo back to the user.
		cn.putc(b)

		// Store for consumption by Read.
		st.buf[st.e%InputBuf] = b
		st.e++

		if b == '\n' || b == ctrl('D') || st.e == st.r+InputBuf {
			// Wake up Read if a whole line (or end-of-file) has arrived.
			st.w = st.e
			cn.table.Wakeup(c, &st.r)
		}
	}
}

// Read copies up to one whole input line into dst and returns the number
// of bytes copied. A control-d at the start of a read yields 0 (end of
// file). Read fails with process.ErrKilled if p is killed while waiting.
func (cn *Console) Read(p *process.Proc, dst []byte) (int, error) {
	g := cn.lock.Lock(p.Core())
	defer g.Unlock()
	st := g.Data()

	n := 0
	for n < len(dst) {
		// Wait until the interrupt handler has put some input into the buffer.
		for st.r == st.w {
			if cn.table.Killed(p.Cpu(), p) {
				return n, process.ErrKilled
			}
			cn.table.Sleep(p, &st.r, g)
		}

		b := st.buf[st.r%InputBuf]
		st.r++

		if b == ctrl('D') {
			if n > 0 {
				// Save ^D for next time, so the caller gets a 0-byte result.
				st.r--
			}
			break
		}

		dst[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	return n, nil
}
