package cause

import (
	"errors"

	"github.com/ezrec/capencrypt/translate"
)

var f = translate.From

var (
	// Classification errors
	ErrClassMismatch     = errors.New(f("not a capability exception"))
	ErrCauseUnrecognized = errors.New(f("unrecognized capability cause"))
	ErrCause             = errors.New(f("unexpected cause"))
)

// ErrClass is the exception class of a fault outside of the capability class.
type ErrClass uint32

func (err ErrClass) Error() string {
	return f("exception class 0x%02x is not a capability exception", uint32(err))
}

func (err ErrClass) Is(target error) bool {
	return target == ErrClassMismatch
}

// ErrCauseUnknown is a capability cause sub-code outside of the classified set.
type ErrCauseUnknown Code

func (err ErrCauseUnknown) Error() string {
	return f("unrecognized capability cause 0x%02x", uint8(err))
}

func (err ErrCauseUnknown) Is(target error) bool {
	return target == ErrCauseUnrecognized
}

// ErrCauseName is an unknown cause name.
type ErrCauseName string

func (err ErrCauseName) Error() string {
	return f("'%v' is not a cause name", string(err))
}

// ErrCauseMismatch reports a fault that did not have the expected cause.
type ErrCauseMismatch struct {
	Want Code
	Got  Code
	Err  error // Classification error, if any.
}

func (err *ErrCauseMismatch) Error() string {
	if err.Err != nil {
		return f("expected %v: %v", err.Want, err.Err)
	}
	return f("expected %v, got %v", err.Want, err.Got)
}

func (err *ErrCauseMismatch) Is(target error) bool {
	return target == ErrCause
}

func (err *ErrCauseMismatch) Unwrap() error {
	return err.Err
}
