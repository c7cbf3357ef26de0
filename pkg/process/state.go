package process

import "fmt"

// ProcState is the lifecycle state of a process slot.
type ProcState int32

const (
	// Unused slots are free for allocation.
	Unused ProcState = iota
	// Used slots are allocated but not yet runnable.
	Used
	// Sleeping processes wait for a Wakeup on their channel.
	Sleeping
	// Runnable processes wait for a hart.
	Runnable
	// Running processes own a hart.
	Running
	// Zombie processes have exited and wait for their parent.
	Zombie
)

var stateNames = [...]string{
	Unused:   "unused",
	Used:     "used",
	Sleeping: "sleep",
	Runnable: "runble",
	Running:  "run",
	Zombie:   "zombie",
}

// String returns the short name used in process listings.
func (s ProcState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("ProcState(%d)", int32(s))
}

// StateTransition represents a valid state transition.
type StateTransition struct {
	From ProcState
	To   ProcState
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Allocation: Unused -> Used
	{From: Unused, To: Used},
	// Allocation abandoned before start: Used -> Unused
	{From: Used, To: Unused},
	// Start: Used -> Runnable
	{From: Used, To: Runnable},
	// Scheduler picks it: Runnable -> Running
	{From: Runnable, To: Running},
	// Yield: Running -> Runnable
	{From: Running, To: Runnable},
	// Block: Running -> Sleeping
	{From: Running, To: Sleeping},
	// Wakeup: Sleeping -> Runnable
	{From: Sleeping, To: Runnable},
	// Exit: Running -> Zombie
	{From: Running, To: Zombie},
	// Reap: Zombie -> Unused
	{From: Zombie, To: Unused},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to ProcState) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
