package process

import (
	"errors"
	"fmt"
)

// Config errors.
var (
	ErrInvalidConfig = errors.New("invalid table configuration")
)

// Config sizes the machine and its process table.
type Config struct {
	// NCPU is the number of harts.
	NCPU int
	// NPROC is the number of process slots.
	NPROC int
	// NOFILE is the number of open files per process.
	NOFILE int
}

// DefaultConfig returns the default machine parameters.
func DefaultConfig() Config {
	return Config{
		NCPU:   8,
		NPROC:  64,
		NOFILE: 16,
	}
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	if c.NCPU <= 0 {
		return fmt.Errorf("%w: NCPU %d", ErrInvalidConfig, c.NCPU)
	}
	if c.NPROC <= 0 {
		return fmt.Errorf("%w: NPROC %d", ErrInvalidConfig, c.NPROC)
	}
	if c.NOFILE < 0 {
		return fmt.Errorf("%w: NOFILE %d", ErrInvalidConfig, c.NOFILE)
	}
	return nil
}
