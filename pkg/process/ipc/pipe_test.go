package ipc

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rvkern/pkg/process"
)

type machine struct {
	t      *process.Table
	dev    *process.Cpu
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func boot(t *testing.T, ncpu, nproc int) *machine {
	t.Helper()
	tbl, err := process.NewTable(process.Config{NCPU: ncpu, NPROC: nproc, NOFILE: 2})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &machine{t: tbl, dev: tbl.Cpu(ncpu - 1), cancel: cancel}
	for i := 0; i < ncpu-1; i++ {
		m.wg.Add(1)
		go func(c *process.Cpu) {
			defer m.wg.Done()
			tbl.Scheduler(ctx, c)
		}(tbl.Cpu(i))
	}
	return m
}

func (m *machine) spawn(t *testing.T, name string, entry func(*process.Proc)) {
	t.Helper()
	p, err := m.t.AllocProc(m.dev, name)
	if err != nil {
		t.Fatalf("AllocProc() error = %v", err)
	}
	m.t.Start(m.dev, p, entry)
}

func (m *machine) halt() {
	m.cancel()
	m.wg.Wait()
}

// TestPipeTransfer tests a transfer larger than the ring, so both the
// reader and the writer have to sleep.
func TestPipeTransfer(t *testing.T) {
	m := boot(t, 3, 2)
	defer m.halt()

	pi := NewPipe(m.t)
	payload := bytes.Repeat([]byte("0123456789abcdef"), 3*PipeSize/16+7)

	got := make(chan []byte, 1)
	errs := make(chan error, 2)

	m.spawn(t, "writer", func(p *process.Proc) {
		n, err := pi.Write(p, payload)
		if err == nil && n != len(payload) {
			err = errors.New("short write")
		}
		errs <- err
		pi.Close(p.Cpu(), true)
	})
	m.spawn(t, "reader", func(p *process.Proc) {
		var out []byte
		buf := make([]byte, 100)
		for {
			n, err := pi.Read(p, buf)
			if err != nil {
				errs <- err
				return
			}
			if n == 0 {
				break
			}
			out = append(out, buf[:n]...)
		}
		errs <- nil
		got <- out
	})

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Fatalf("pipe error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out")
		}
	}
	if out := <-got; !bytes.Equal(out, payload) {
		t.Errorf("read %d bytes, want %d identical bytes", len(out), len(payload))
	}
}

// TestPipeBrokenWrite tests writing after the read end closed.
func TestPipeBrokenWrite(t *testing.T) {
	m := boot(t, 2, 1)
	defer m.halt()

	pi := NewPipe(m.t)
	pi.Close(m.dev, false)

	errs := make(chan error, 1)
	m.spawn(t, "writer", func(p *process.Proc) {
		_, err := pi.Write(p, []byte("x"))
		errs <- err
	})

	select {
	case err := <-errs:
		if !errors.Is(err, ErrBrokenPipe) {
			t.Errorf("Write() error = %v, want ErrBrokenPipe", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
}

// TestPipeReadBytes tests line reads with the writer closing at EOF.
func TestPipeReadBytes(t *testing.T) {
	m := boot(t, 3, 2)
	defer m.halt()

	pi := NewPipe(m.t)
	lines := make(chan string, 3)

	m.spawn(t, "writer", func(p *process.Proc) {
		pi.Write(p, []byte("hello\nworld\ntail"))
		pi.Close(p.Cpu(), true)
	})
	m.spawn(t, "reader", func(p *process.Proc) {
		for i := 0; i < 3; i++ {
			line, _ := pi.ReadBytes(p, '\n')
			lines <- string(line)
		}
	})

	want := []string{"hello", "world", "tail"}
	for _, w := range want {
		select {
		case got := <-lines:
			if got != w {
				t.Errorf("ReadBytes() = %q, want %q", got, w)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("timed out")
		}
	}
}
