// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package harness

import (
	"errors"
	"fmt"
	"log"

	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/counter"
	"github.com/ezrec/capencrypt/machine"
	"github.com/ezrec/capencrypt/perm"
)

// Case is the state of a single running test case.
type Case struct {
	Name    string           // Name of the test case.
	Config  Config           // Configuration the case was built with.
	Machine *machine.Machine // Machine under test.
	Counter *counter.Reader  // Cycle counter of the machine.
	Trace   []string         // Log of the case's actions.

	Step int    // Current scenario step, or 0.
	Op   string // Current scenario operation.

	failure error
}

// NewCase creates a test case on a freshly reset machine, and saves the
// reset state as the safe state.
func NewCase(cfg Config, name string) (tc *Case, err error) {
	err = cfg.Validate()
	if err != nil {
		return
	}

	m := machine.NewMachine(cfg.KeyTableSize, cfg.PerformEncrypt)
	m.Verbose = cfg.Verbose

	err = m.Reset()
	if err != nil {
		return
	}

	err = m.SaveSafeState()
	if err != nil {
		return
	}

	tc = &Case{
		Name:    name,
		Config:  cfg,
		Machine: m,
		Counter: &counter.Reader{Source: m, Verbose: cfg.Verbose},
	}

	return
}

// Tracef appends a line to the case trace.
func (tc *Case) Tracef(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if tc.Step > 0 {
		line = fmt.Sprintf("%d: %v", tc.Step, line)
	}
	if tc.Config.Verbose {
		log.Printf("%v: %v", tc.Name, line)
	}
	tc.Trace = append(tc.Trace, line)
}

// Failed reports whether the case has failed.
func (tc *Case) Failed() bool {
	return tc.failure != nil
}

// Err returns the failure of the case, or nil.
func (tc *Case) Err() error {
	return tc.failure
}

// Fail restores the safe state and fails the case with err.
// Only the first failure is kept; it is returned by every later call.
func (tc *Case) Fail(err error) error {
	if tc.failure != nil {
		return tc.failure
	}

	if tc.Step > 0 {
		err = &ErrStep{Step: tc.Step, Op: tc.Op, Err: err}
	}

	rerr := tc.Machine.RestoreSafeState()
	if rerr != nil {
		err = errors.Join(err, rerr)
	}

	tc.failure = &ErrFail{Case: tc.Name, Err: err}
	tc.Tracef("fail")

	if tc.Config.Verbose {
		log.Printf("%v", tc.failure)
	}

	return tc.failure
}

// AssertEncryptPermitted checks that the encrypt permission of capability
// register reg is set.
func (tc *Case) AssertEncryptPermitted(reg int) error {
	return tc.assertPerm(reg, perm.CheckEncryptSet)
}

// AssertEncryptNotPermitted checks that the encrypt permission of capability
// register reg is clear.
func (tc *Case) AssertEncryptNotPermitted(reg int) error {
	return tc.assertPerm(reg, perm.CheckEncryptUnset)
}

func (tc *Case) assertPerm(reg int, check func(perm.Word) error) (err error) {
	if tc.failure != nil {
		return tc.failure
	}

	word, err := tc.Machine.CGetPerm(reg)
	if err == nil {
		err = check(word)
	}
	if err != nil {
		err = tc.Fail(err)
	}
	return
}

// AssertCause checks that the pending fault has the expected encryption
// cause, and acknowledges it.
//
// When encryption is not enforced the encryption causes are never raised.
// The assertion then passes with no fault pending, and acknowledges a
// pending capability fault outside of the encryption causes, so the same
// case passes with and without encryption.
func (tc *Case) AssertCause(want cause.Code) (err error) {
	if tc.failure != nil {
		return tc.failure
	}

	status := tc.Machine.Status()
	if !tc.Config.PerformEncrypt && want.Known() {
		if !tc.Machine.Faulted() {
			return
		}
		_, cerr := cause.Classify(status)
		if !errors.Is(cerr, cause.ErrCauseUnrecognized) {
			err = tc.Fail(errors.Join(ErrFault(status), cerr))
			return
		}
		tc.Machine.ClearStatus()
		return
	}

	if !tc.Machine.Faulted() {
		err = tc.Fail(errors.Join(ErrNoFault, &cause.ErrCauseMismatch{Want: want}))
		return
	}

	err = cause.Expect(status, want)
	if err != nil {
		err = tc.Fail(err)
		return
	}

	tc.Machine.ClearStatus()
	return
}

// AssertUnrecognized checks that the pending fault is a capability fault
// outside of the encryption causes, and acknowledges it.
func (tc *Case) AssertUnrecognized() (err error) {
	if tc.failure != nil {
		return tc.failure
	}

	if !tc.Machine.Faulted() {
		err = tc.Fail(ErrNoFault)
		return
	}

	status := tc.Machine.Status()
	code, err := cause.Classify(status)
	if !errors.Is(err, cause.ErrCauseUnrecognized) {
		if err == nil {
			err = fmt.Errorf("%w: %v", ErrFault(status), code)
		}
		err = tc.Fail(err)
		return
	}

	err = nil
	tc.Machine.ClearStatus()
	return
}

// AssertNoFault checks that no fault is pending.
func (tc *Case) AssertNoFault() (err error) {
	if tc.failure != nil {
		return tc.failure
	}

	if tc.Machine.Faulted() {
		err = tc.Fail(ErrFault(tc.Machine.Status()))
	}
	return
}

// Cycles reads the machine cycle counter.
func (tc *Case) Cycles() uint64 {
	return tc.Counter.Read()
}

// Elapsed returns the cycles since the previous counter read.
// A counter that went backwards is an ErrCycleCounter.
func (tc *Case) Elapsed() (cycles uint64, err error) {
	last := tc.Counter.Last
	cycles = tc.Counter.Elapsed()
	if tc.Counter.Last < last {
		cycles = 0
		err = ErrCycleCounter
	}
	return
}

// Body is the code of a test case.
type Body func(tc *Case) error

// Result is the outcome of a test case.
type Result struct {
	Name   string   // Name of the test case.
	Pass   bool     // Set if the case passed.
	Err    error    // Failure, if any.
	Cycles uint64   // Cycles spent in the body.
	Ticks  int      // Instructions executed by the body.
	Trace  []string // Trace of the case.
}

// Run runs a test case body on a new case.
//
// An error returned by the body that did not come from a failed assertion
// fails the case too.
func Run(cfg Config, name string, body Body) (result *Result) {
	result = &Result{Name: name}

	tc, err := NewCase(cfg, name)
	if err != nil {
		result.Err = &ErrFail{Case: name, Err: err}
		return
	}

	start := tc.Cycles()
	err = body(tc)
	if err != nil {
		tc.Fail(err)
	}
	result.Cycles = tc.Cycles() - start

	result.Err = tc.Err()
	result.Pass = result.Err == nil
	result.Ticks = tc.Machine.Ticks
	result.Trace = tc.Trace

	return
}
