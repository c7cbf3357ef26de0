package process

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"rvkern/pkg/spinlock"
)

// TestSleepWakeupNoLostWakeup tests that sleepers on distinct channels each
// resume exactly once when every channel is woken once, with the wakeups
// racing the sleeps.
func TestSleepWakeupNoLostWakeup(t *testing.T) {
	const n = 16
	m := boot(t, Config{NCPU: 4, NPROC: n, NOFILE: 1})
	defer m.halt()

	type cond struct {
		ready [n]bool
		woken [n]int
	}
	shared := spinlock.New("cond", cond{})
	chans := make([]int, n)
	var sleeps [n]atomic.Int32

	var finished sync.WaitGroup
	finished.Add(n)
	for i := 0; i < n; i++ {
		m.spawn(t, fmt.Sprintf("sleeper%d", i), nil, func(p *Proc) {
			defer finished.Done()
			g := shared.Lock(p.Core())
			for !g.Data().ready[i] {
				sleeps[i].Add(1)
				m.t.Sleep(p, &chans[i], g)
			}
			g.Data().woken[i]++
			g.Unlock()
		})
	}

	for i := 0; i < n; i++ {
		g := shared.Lock(m.dev.Core())
		g.Data().ready[i] = true
		m.t.Wakeup(m.dev, &chans[i])
		g.Unlock()
		if i%3 == 0 {
			runtime.Gosched()
		}
	}

	done := make(chan struct{})
	go func() {
		finished.Wait()
		close(done)
	}()
	waitDone(t, done, "sleepers")

	g := shared.Lock(m.dev.Core())
	defer g.Unlock()
	for i := 0; i < n; i++ {
		if got := g.Data().woken[i]; got != 1 {
			t.Errorf("sleeper %d resumed %d times, want 1", i, got)
		}
		if got := sleeps[i].Load(); got > 1 {
			t.Errorf("sleeper %d slept %d times, want at most 1", i, got)
		}
	}
}

// TestPingPong tests a strict hand-over between two processes that may
// migrate between harts on every wakeup.
func TestPingPong(t *testing.T) {
	const rounds = 200
	m := boot(t, Config{NCPU: 4, NPROC: 2, NOFILE: 1})
	defer m.halt()

	type court struct {
		turn  int
		count [2]int
	}
	ball := spinlock.New("ball", court{})

	var finished sync.WaitGroup
	finished.Add(2)
	for me := 0; me < 2; me++ {
		m.spawn(t, fmt.Sprintf("player%d", me), nil, func(p *Proc) {
			defer finished.Done()
			for r := 0; r < rounds; r++ {
				g := ball.Lock(p.Core())
				for g.Data().turn != me {
					m.t.Sleep(p, ball, g)
				}
				g.Data().count[me]++
				g.Data().turn = 1 - me
				m.t.Wakeup(p.Cpu(), ball)
				g.Unlock()
			}
		})
	}

	done := make(chan struct{})
	go func() {
		finished.Wait()
		close(done)
	}()
	waitDone(t, done, "players")

	g := ball.Lock(m.dev.Core())
	defer g.Unlock()
	if c := g.Data().count; c[0] != rounds || c[1] != rounds {
		t.Errorf("count = %v, want [%d %d]", c, rounds, rounds)
	}
}

// TestYield tests that yielding processes share a single hart and that the
// hart's nesting state is balanced afterwards.
func TestYield(t *testing.T) {
	const k = 50
	m := boot(t, Config{NCPU: 2, NPROC: 2, NOFILE: 1})

	var total atomic.Int32
	var finished sync.WaitGroup
	finished.Add(2)
	for i := 0; i < 2; i++ {
		m.spawn(t, fmt.Sprintf("yielder%d", i), nil, func(p *Proc) {
			defer finished.Done()
			for j := 0; j < k; j++ {
				total.Add(1)
				m.t.Yield(p)
			}
		})
	}

	done := make(chan struct{})
	go func() {
		finished.Wait()
		close(done)
	}()
	waitDone(t, done, "yielders")
	m.halt()

	if got := total.Load(); got != 2*k {
		t.Errorf("total = %d, want %d", got, 2*k)
	}
	c := m.t.Cpu(0)
	if c.Core().Noff() != 0 {
		t.Errorf("Noff() = %d after halt, want 0", c.Core().Noff())
	}
	if c.MyProc() != nil {
		t.Error("MyProc() != nil after halt")
	}
}

// TestSleepRejectsBadChannel tests that tokens Wakeup could not compare
// are refused before any slot lock is taken.
func TestSleepRejectsBadChannel(t *testing.T) {
	tests := []struct {
		name string
		ch   Chan
	}{
		{"nil", nil},
		{"slice", []int{1}},
		{"map", map[string]int{}},
		{"func", func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTable(t, 1, 2)
			c := tbl.Cpu(0)
			p := &tbl.procs[0]
			p.cpu = c
			forceState(&tbl.procs[1], Sleeping, []int{1})

			lk := spinlock.New("cond", struct{}{})
			g := lk.Lock(c.Core())
			expectPanic(t, "Sleep", func() { tbl.Sleep(p, tt.ch, g) })
			if !lk.Holding(c.Core()) {
				t.Error("condition lock released by rejected Sleep")
			}
			g.Unlock()

			expectPanic(t, "Wakeup", func() { tbl.Wakeup(c, tt.ch) })
			if n := c.Core().Noff(); n != 0 {
				t.Errorf("Noff() = %d after rejected Wakeup, want 0", n)
			}
			for i := range tbl.procs {
				if tbl.procs[i].lock.Holding(c.Core()) {
					t.Errorf("slot %d lock held after rejected Wakeup", i)
				}
			}
			if s := stateOf(&tbl.procs[1]); s != Sleeping {
				t.Errorf("sleeper state = %s, want sleep", s)
			}
		})
	}
}
