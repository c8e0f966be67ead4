package harness

import (
	"errors"

	"github.com/ezrec/capencrypt/translate"
)

var f = translate.From

var (
	// Case errors
	ErrFailed       = errors.New(f("test case failed"))
	ErrNoFault      = errors.New(f("expected a fault, none raised"))
	ErrCycleCounter = errors.New(f("cycle counter went backwards"))

	// Configuration errors
	ErrKeyTableSize = errors.New(f("key table size must be positive"))

	// Scenario errors
	ErrScenarioName   = errors.New(f("scenario name missing"))
	ErrScenarioSteps  = errors.New(f("scenario has no steps"))
	ErrOperandMissing = errors.New(f("operand missing"))
)

// ErrFail is the failure of a test case.
type ErrFail struct {
	Case string
	Err  error
}

func (err *ErrFail) Error() string {
	return f("%v: %v", err.Case, err.Err)
}

func (err *ErrFail) Is(target error) bool {
	return target == ErrFailed
}

func (err *ErrFail) Unwrap() error {
	return err.Err
}

// ErrStep indicates the scenario step of an error.
type ErrStep struct {
	Step int
	Op   string
	Err  error
}

func (err *ErrStep) Error() string {
	return f("step %v %v: %v", err.Step, err.Op, err.Err)
}

func (err *ErrStep) Unwrap() error {
	return err.Err
}

// ErrFault is an unexpected fault, by its status word.
type ErrFault uint32

func (err ErrFault) Error() string {
	return f("unexpected fault, status 0x%08x", uint32(err))
}

// ErrOp is an unknown scenario operation.
type ErrOp string

func (err ErrOp) Error() string {
	return f("'%v' is not an operation", string(err))
}

// ErrRegisterName is an unknown capability register name.
type ErrRegisterName string

func (err ErrRegisterName) Error() string {
	return f("'%v' is not a capability register", string(err))
}

// ErrExpression is an expression that does not evaluate to an integer.
type ErrExpression string

func (err ErrExpression) Error() string {
	return f("'%v' is not a valid expression", string(err))
}
