// rvkern boots the simulated multi-hart kernel core, runs a few processes
// that block on pipes and the console, and reaps them.
//
// The last hart runs no scheduler; it plays the UART and feeds console
// input, including a control-p process listing.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"rvkern/pkg/console"
	"rvkern/pkg/process"
	"rvkern/pkg/process/ipc"
)

var (
	ncpu    = flag.Int("ncpu", 4, "Number of harts (the last one is the device hart)")
	nproc   = flag.Int("nproc", process.DefaultConfig().NPROC, "Number of process slots")
	rounds  = flag.Int("rounds", 5, "Ping-pong rounds over the pipes")
	verbose = flag.Bool("v", false, "Log process lifecycle events")
)

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", name, err)
	}
	return n
}

func main() {
	flag.Parse()

	cfg := process.DefaultConfig()
	cfg.NCPU = envInt("RVKERN_NCPU", *ncpu)
	cfg.NPROC = envInt("RVKERN_NPROC", *nproc)
	if cfg.NCPU < 2 {
		log.Fatalf("Need at least 2 harts, got %d", cfg.NCPU)
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "rvkern: ", log.Lmicroseconds)
	}

	t, err := process.NewTable(cfg, process.WithLogger(logger), process.WithConsole(os.Stdout))
	if err != nil {
		log.Fatalf("Failed to create process table: %v", err)
	}
	dev := t.Cpu(cfg.NCPU - 1)
	cons := console.New(t, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	var harts sync.WaitGroup
	for i := 0; i < cfg.NCPU-1; i++ {
		harts.Add(1)
		go func(c *process.Cpu) {
			defer harts.Done()
			t.Scheduler(ctx, c)
		}(t.Cpu(i))
	}
	fmt.Printf("rvkern: %d harts, %d slots\n", cfg.NCPU, cfg.NPROC)

	done := make(chan struct{})
	initProc, err := t.AllocProc(dev, "init")
	if err != nil {
		log.Fatalf("Failed to allocate init: %v", err)
	}
	t.Start(dev, initProc, func(p *process.Proc) {
		defer close(done)
		runInit(t, cons, p, *rounds)
	})

	// Let the shell block in its read before typing.
	time.Sleep(50 * time.Millisecond)
	for _, b := range []byte("hello\r\x10world\n\x04") {
		cons.Intr(dev, b)
	}

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.ProcDump()
		log.Fatalf("Timed out waiting for init")
	}

	cancel()
	harts.Wait()
	fmt.Println("rvkern: halted")
}

// runInit starts the demo processes as children of p and reaps them.
func runInit(t *process.Table, cons *console.Console, p *process.Proc, rounds int) {
	ping := ipc.NewPipe(t)
	pong := ipc.NewPipe(t)

	spawn := func(name string, entry func(*process.Proc)) {
		child, err := t.AllocProc(p.Cpu(), name)
		if err != nil {
			fmt.Fprintf(cons, "init: %s: %v\n", name, err)
			return
		}
		t.SetParent(p.Cpu(), child, p)
		t.Start(p.Cpu(), child, entry)
	}

	spawn("ping", func(p *process.Proc) {
		for i := 0; i < rounds; i++ {
			if _, err := ping.Write(p, []byte(fmt.Sprintf("ping %d\n", i))); err != nil {
				t.Exit(p, 1)
			}
			line, err := pong.ReadBytes(p, '\n')
			if err != nil {
				t.Exit(p, 1)
			}
			fmt.Fprintf(cons, "ping: got %q on hart %d\n", line, p.Cpu().ID())
		}
		ping.Close(p.Cpu(), true)
	})

	spawn("pong", func(p *process.Proc) {
		n := 0
		for {
			line, err := ping.ReadBytes(p, '\n')
			if err != nil || len(line) == 0 {
				break
			}
			n++
			if _, err := pong.Write(p, []byte("pong\n")); err != nil {
				break
			}
		}
		pong.Close(p.Cpu(), true)
		t.Exit(p, n)
	})

	spawn("sh", func(p *process.Proc) {
		buf := make([]byte, console.InputBuf)
		for {
			n, err := cons.Read(p, buf)
			if err != nil || n == 0 {
				return
			}
			fmt.Fprintf(cons, "sh: read %q on hart %d\n", buf[:n], p.Cpu().ID())
		}
	})

	for {
		pid, status, err := t.Wait(p)
		if err != nil {
			fmt.Fprintf(cons, "init: %v\n", err)
			return
		}
		fmt.Fprintf(cons, "init: pid %d exited with status %d\n", pid, status)
	}
}
