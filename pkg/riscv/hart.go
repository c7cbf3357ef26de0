// Package riscv models the per-hart machine state the kernel core relies on:
// the hart id held in tp, the supervisor interrupt-enable bit, and the
// callee-saved register context used for kernel thread switches.
package riscv

// Hart is one simulated hardware thread.
//
// A Hart is only read or written by code executing on it, so its fields
// need no synchronization of their own.
type Hart struct {
	// id is the value a real hart keeps in tp.
	id int
	// sie mirrors sstatus.SIE.
	sie bool
}

// NewHart returns hart id with interrupts disabled, as at reset.
func NewHart(id int) *Hart {
	return &Hart{id: id}
}

// ID returns the hart id (r_tp).
func (h *Hart) ID() int {
	return h.id
}

// IntrOn enables device interrupts.
func (h *Hart) IntrOn() {
	h.sie = true
}

// IntrOff disables device interrupts.
func (h *Hart) IntrOff() {
	h.sie = false
}

// IntrGet reports whether device interrupts are enabled.
func (h *Hart) IntrGet() bool {
	return h.sie
}
