package process

import "fmt"

// DumpEntry is one line of a process listing.
type DumpEntry struct {
	PID   int
	State ProcState
	Name  string
}

// ProcDump lists every slot that is not Unused and prints the listing to
// the console. It takes no locks, so it never blocks and is safe from
// contexts that must not wait, such as a wedged machine; the result is a
// best-effort snapshot.
func (t *Table) ProcDump() []DumpEntry {
	var entries []DumpEntry

	fmt.Fprintln(t.console)
	for i := range t.procs {
		p := &t.procs[i]
		ctl := p.lock.Peek()
		state := ctl.State()
		if state == Unused {
			continue
		}
		e := DumpEntry{PID: ctl.PID(), State: state, Name: p.Name()}
		entries = append(entries, e)
		fmt.Fprintf(t.console, "%d %-6s %s\n", e.PID, e.State, e.Name)
	}
	return entries
}
