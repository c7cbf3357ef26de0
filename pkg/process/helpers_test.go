package process

import (
	"context"
	"sync"
	"testing"
	"time"
)

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}

// machine runs schedulers on the first harts of a table and keeps the last
// hart free to act as a device.
type machine struct {
	t      *Table
	dev    *Cpu
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func boot(t *testing.T, cfg Config) *machine {
	t.Helper()
	tbl, err := NewTable(cfg)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &machine{t: tbl, dev: tbl.Cpu(cfg.NCPU - 1), cancel: cancel}
	for i := 0; i < cfg.NCPU-1; i++ {
		m.wg.Add(1)
		go func(c *Cpu) {
			defer m.wg.Done()
			tbl.Scheduler(ctx, c)
		}(tbl.Cpu(i))
	}
	return m
}

func (m *machine) spawn(t *testing.T, name string, parent *Proc, entry func(*Proc)) *Proc {
	t.Helper()
	p, err := m.t.AllocProc(m.dev, name)
	if err != nil {
		t.Fatalf("AllocProc(%q) error = %v", name, err)
	}
	if parent != nil {
		m.t.SetParent(m.dev, p, parent)
	}
	m.t.Start(m.dev, p, entry)
	return p
}

func (m *machine) halt() {
	m.cancel()
	m.wg.Wait()
}

func waitDone(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// forceState sets a slot's state directly, bypassing the transition checks.
func forceState(p *Proc, s ProcState, ch Chan) {
	ctl := p.lock.Peek()
	ctl.state.Store(int32(s))
	ctl.ch = ch
	if s != Unused && ctl.PID() == 0 {
		ctl.pid.Store(int64(p.table.AllocPID()))
	}
}

func stateOf(p *Proc) ProcState {
	return p.lock.Peek().State()
}
