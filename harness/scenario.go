package harness

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/internal"
	"github.com/ezrec/capencrypt/machine"
	"github.com/ezrec/capencrypt/perm"
)

// Scenario operations.
const (
	OP_CHECK_PERMS_ENCRYPT_SET   = "check_perms_encrypt_set"
	OP_CHECK_PERMS_ENCRYPT_UNSET = "check_perms_encrypt_unset"
	OP_AND_PERM                  = "and_perm"
	OP_CLEAR_TAG                 = "clear_tag"
	OP_MOVE                      = "move"
	OP_SET_OFFSET                = "set_offset"
	OP_SEAL_ENCRYPT              = "seal_encrypt"
	OP_SEAL_ROOT_ENCRYPT         = "seal_root_encrypt"
	OP_CSEAL_ENCRYPT             = "cseal_encrypt"
	OP_UNSEAL_DECRYPT            = "unseal_decrypt"
	OP_CUNSEAL_DECRYPT           = "cunseal_decrypt"
	OP_REVOKE_KEY                = "revoke_key"
	OP_INSTALL_KEY               = "install_key"
	OP_EXPECT_CAUSE              = "expect_cause"
	OP_EXPECT_UNRECOGNIZED       = "expect_unrecognized"
	OP_EXPECT_NO_FAULT           = "expect_no_fault"
	OP_GET_CLK_CYCLES            = "get_clk_cycles"
	OP_SAVE_SAFE_STATE           = "save_safe_state"
	OP_DROP_SAFE_STATE           = "drop_safe_state"
)

// Operations that may follow a trapping step.
var _expect_ops = []string{
	OP_EXPECT_CAUSE,
	OP_EXPECT_UNRECOGNIZED,
	OP_EXPECT_NO_FAULT,
}

var _ops = []string{
	OP_CHECK_PERMS_ENCRYPT_SET,
	OP_CHECK_PERMS_ENCRYPT_UNSET,
	OP_AND_PERM,
	OP_CLEAR_TAG,
	OP_MOVE,
	OP_SET_OFFSET,
	OP_SEAL_ENCRYPT,
	OP_SEAL_ROOT_ENCRYPT,
	OP_CSEAL_ENCRYPT,
	OP_UNSEAL_DECRYPT,
	OP_CUNSEAL_DECRYPT,
	OP_REVOKE_KEY,
	OP_INSTALL_KEY,
	OP_EXPECT_CAUSE,
	OP_EXPECT_UNRECOGNIZED,
	OP_EXPECT_NO_FAULT,
	OP_GET_CLK_CYCLES,
	OP_SAVE_SAFE_STATE,
	OP_DROP_SAFE_STATE,
}

// Ops returns the names of all scenario operations.
func Ops() []string {
	return slices.Clone(_ops)
}

// Scenario is a test case described as a list of machine steps.
type Scenario struct {
	// Name identifies the scenario in results and golden files.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// PerformEncrypt, when set, overrides the configuration.
	PerformEncrypt *bool `yaml:"perform_encrypt,omitempty"`

	// Equates are named expressions, evaluated over the machine constants.
	Equates map[string]string `yaml:"equates,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step is a single scenario operation.
// Register operands are c0 to c31, ROOT or SCRATCH. Numeric operands are
// expressions.
type Step struct {
	Op     string `yaml:"op"`
	Dst    string `yaml:"dst,omitempty"`
	Src    string `yaml:"src,omitempty"`
	Auth   string `yaml:"auth,omitempty"`
	Type   string `yaml:"type,omitempty"`
	Perms  string `yaml:"perms,omitempty"`
	Offset string `yaml:"offset,omitempty"`
	Cause  string `yaml:"cause,omitempty"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (s *Scenario, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	s, err = ParseScenario(data)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
	}
	return
}

// ParseScenario parses and validates a YAML scenario.
func ParseScenario(data []byte) (s *Scenario, err error) {
	s = &Scenario{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(s)
	if err != nil {
		s = nil
		return
	}

	err = s.Validate()
	if err != nil {
		s = nil
	}
	return
}

// Validate checks the scenario structure. Operands are only checked when
// the scenario runs.
func (s *Scenario) Validate() (err error) {
	if s.Name == "" {
		err = ErrScenarioName
		return
	}
	if len(s.Steps) == 0 {
		err = ErrScenarioSteps
		return
	}

	for n, step := range s.Steps {
		if !slices.Contains(_ops, step.Op) {
			err = &ErrStep{Step: n + 1, Op: step.Op, Err: ErrOp(step.Op)}
			return
		}
	}

	return
}

// ParseRegister returns the index of a capability register name.
func ParseRegister(name string) (reg int, err error) {
	switch name {
	case "":
		err = ErrOperandMissing
		return
	case "ROOT":
		reg = machine.CREG_ROOT
		return
	case "SCRATCH":
		reg = machine.CREG_SCRATCH
		return
	}

	digits, ok := strings.CutPrefix(name, "c")
	if ok {
		n, perr := strconv.ParseUint(digits, 10, 8)
		if perr == nil && n < machine.CREG_COUNT {
			reg = int(n)
			return
		}
	}

	err = ErrRegisterName(name)
	return
}

// scenarioRun is the state of a running scenario.
type scenarioRun struct {
	tc      *Case
	equates Equates
	pending error // Trap raised by the previous step.
}

// Run runs the scenario as a test case.
func (s *Scenario) Run(cfg Config) *Result {
	if s.PerformEncrypt != nil {
		cfg.PerformEncrypt = *s.PerformEncrypt
	}

	return Run(cfg, s.Name, func(tc *Case) (err error) {
		sr := &scenarioRun{tc: tc}

		tc.Tracef("scenario %v encrypt %v", s.Name, cfg.PerformEncrypt)

		sr.equates, err = s.evalEquates(tc.Machine)
		if err != nil {
			return
		}

		for n, step := range s.Steps {
			tc.Step = n + 1
			tc.Op = step.Op
			err = sr.step(&step)
			if err != nil {
				return
			}
		}

		if sr.pending != nil {
			err = tc.Fail(sr.pending)
			return
		}

		tc.Step = 0
		tc.Op = ""
		tc.Tracef("pass")
		return
	})
}

// evalEquates evaluates the scenario equates over the machine constants.
// Equates may not refer to each other.
func (s *Scenario) evalEquates(m *machine.Machine) (eq Equates, err error) {
	defines := Equates{}
	defines.Add(m.Defines())

	eq = maps.Clone(defines)
	for key, expr := range internal.IterSeq2Sorted(maps.All(s.Equates)) {
		var value uint32
		value, err = defines.Eval(expr)
		if err != nil {
			err = fmt.Errorf("%v: %w", key, err)
			return
		}
		eq[key] = fmt.Sprintf("%d", value)
	}

	return
}

// step runs one scenario step.
func (sr *scenarioRun) step(step *Step) (err error) {
	tc := sr.tc

	if sr.pending != nil && !slices.Contains(_expect_ops, step.Op) {
		err = tc.Fail(sr.pending)
		return
	}

	switch step.Op {
	case OP_EXPECT_CAUSE:
		var want cause.Code
		want, err = cause.Parse(step.Cause)
		if err != nil {
			return tc.Fail(err)
		}
		err = tc.AssertCause(want)
	case OP_EXPECT_UNRECOGNIZED:
		err = tc.AssertUnrecognized()
	case OP_EXPECT_NO_FAULT:
		err = tc.AssertNoFault()
	case OP_CHECK_PERMS_ENCRYPT_SET, OP_CHECK_PERMS_ENCRYPT_UNSET:
		var src int
		src, err = ParseRegister(step.Src)
		if err != nil {
			return tc.Fail(err)
		}
		if step.Op == OP_CHECK_PERMS_ENCRYPT_SET {
			err = tc.AssertEncryptPermitted(src)
		} else {
			err = tc.AssertEncryptNotPermitted(src)
		}
	case OP_GET_CLK_CYCLES:
		_, err = tc.Elapsed()
		if err != nil {
			return tc.Fail(err)
		}
	case OP_SAVE_SAFE_STATE:
		err = tc.Machine.SaveSafeState()
		if err != nil {
			return tc.Fail(err)
		}
	case OP_DROP_SAFE_STATE:
		err = tc.Machine.DropSafeState()
		if err != nil {
			return tc.Fail(err)
		}
	case OP_REVOKE_KEY, OP_INSTALL_KEY:
		var index uint32
		index, err = sr.equates.Eval(step.Type)
		if err != nil {
			return tc.Fail(err)
		}
		if step.Op == OP_REVOKE_KEY {
			tc.Machine.Keys.Revoke(index)
		} else {
			err = tc.Machine.Rekey(index)
			if err != nil {
				return tc.Fail(err)
			}
		}
	default:
		err = sr.insn(step)
		if errors.Is(err, machine.ErrTrap) {
			var trap *machine.Trap
			errors.As(err, &trap)
			sr.pending = err
			tc.Tracef("%v trap %v", step.Op, machine.CauseName(trap.Cause))
			return nil
		}
		if err != nil {
			return tc.Fail(err)
		}
	}
	if err != nil {
		return
	}

	if slices.Contains(_expect_ops, step.Op) {
		sr.pending = nil
	}

	tc.Tracef("%v ok", step.Op)
	return
}

// insn runs a machine instruction step.
func (sr *scenarioRun) insn(step *Step) (err error) {
	m := sr.tc.Machine

	reg := func(name string) (n int) {
		if err != nil {
			return
		}
		n, err = ParseRegister(name)
		return
	}
	value := func(expr string) (v uint32) {
		if err != nil {
			return
		}
		v, err = sr.equates.Eval(expr)
		return
	}

	switch step.Op {
	case OP_AND_PERM:
		cd, cs, mask := reg(step.Dst), reg(step.Src), value(step.Perms)
		if err == nil {
			err = m.CAndPerm(cd, cs, perm.Word(mask))
		}
	case OP_CLEAR_TAG:
		cd, cs := reg(step.Dst), reg(step.Src)
		if err == nil {
			err = m.CClearTag(cd, cs)
		}
	case OP_MOVE:
		cd, cs := reg(step.Dst), reg(step.Src)
		if err == nil {
			err = m.CMove(cd, cs)
		}
	case OP_SET_OFFSET:
		cd, cs, offset := reg(step.Dst), reg(step.Src), value(step.Offset)
		if err == nil {
			err = m.CSetOffset(cd, cs, offset)
		}
	case OP_SEAL_ENCRYPT:
		cd, cs, otype := reg(step.Dst), reg(step.Src), value(step.Type)
		if err == nil {
			err = m.SealEncryptType(cd, cs, otype)
		}
	case OP_SEAL_ROOT_ENCRYPT:
		cd, otype := reg(step.Dst), value(step.Type)
		if err == nil {
			err = m.SealRootEncryptType(cd, otype)
		}
	case OP_CSEAL_ENCRYPT:
		cd, cs, ct := reg(step.Dst), reg(step.Src), reg(step.Auth)
		if err == nil {
			err = m.CSealEncrypt(cd, cs, ct)
		}
	case OP_UNSEAL_DECRYPT:
		cd, cs, otype := reg(step.Dst), reg(step.Src), value(step.Type)
		if err == nil {
			err = m.UnsealDecryptType(cd, cs, otype)
		}
	case OP_CUNSEAL_DECRYPT:
		cd, cs, ct := reg(step.Dst), reg(step.Src), reg(step.Auth)
		if err == nil {
			err = m.CUnsealDecrypt(cd, cs, ct)
		}
	default:
		err = ErrOp(step.Op)
	}

	return
}
