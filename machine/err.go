package machine

import (
	"errors"

	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/translate"
)

var f = translate.From

var (
	// Machine errors
	ErrTrap          = errors.New(f("trap"))
	ErrSnapshotEmpty = errors.New(f("no safe state saved"))
	ErrSnapshotFull  = errors.New(f("safe state stack full"))
)

// ErrRegister is an invalid capability register index.
type ErrRegister int

func (err ErrRegister) Error() string {
	return f("register c%d invalid", int(err))
}

// Trap is a capability exception raised by an instruction.
type Trap struct {
	Cause cause.Code // Sub-code written to xccsr.
	Reg   int        // Faulting register, or -1.
}

func (trap *Trap) Error() string {
	if trap.Reg < 0 {
		return f("trap %v", CauseName(trap.Cause))
	}
	return f("trap %v on c%d", CauseName(trap.Cause), trap.Reg)
}

func (trap *Trap) Is(target error) bool {
	return target == ErrTrap
}
