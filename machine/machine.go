// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package machine

import (
	"crypto/rand"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/capencrypt/capability"
	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/counter"
	"github.com/ezrec/capencrypt/internal"
	"github.com/ezrec/capencrypt/perm"
	"github.com/ezrec/capencrypt/seal"
)

const (
	CREG_COUNT   = 32 // Number of capability registers.
	CREG_SCRATCH = 29 // Object type carrier for seals.
	CREG_ROOT    = 31 // Root capability after reset.

	KEY_TABLE_SIZE = 64 // Default number of key table slots.

	CYCLE_COST_OP    = 1  // Cost of a register instruction.
	CYCLE_COST_CRYPT = 24 // Additional cost of an encrypt or decrypt.
)

// Capability causes raised by the machine outside of the encryption set.
const (
	CAUSE_LENGTH_VIOLATION        = cause.Code(0x01)
	CAUSE_TAG_VIOLATION           = cause.Code(0x02)
	CAUSE_SEAL_VIOLATION          = cause.Code(0x03)
	CAUSE_TYPE_VIOLATION          = cause.Code(0x04)
	CAUSE_PERMIT_SEAL_VIOLATION   = cause.Code(0x17)
	CAUSE_PERMIT_UNSEAL_VIOLATION = cause.Code(0x19)
)

var _machine_cause_names = map[cause.Code]string{
	CAUSE_LENGTH_VIOLATION:        "LengthViolation",
	CAUSE_TAG_VIOLATION:           "TagViolation",
	CAUSE_SEAL_VIOLATION:          "SealViolation",
	CAUSE_TYPE_VIOLATION:          "TypeViolation",
	CAUSE_PERMIT_SEAL_VIOLATION:   "PermitSealViolation",
	CAUSE_PERMIT_UNSEAL_VIOLATION: "PermitUnsealViolation",
}

var _machine_defines = map[string]string{
	"ROOT":                          fmt.Sprintf("%d", CREG_ROOT),
	"SCRATCH":                       fmt.Sprintf("%d", CREG_SCRATCH),
	"KEY_TABLE_SIZE":                fmt.Sprintf("%d", KEY_TABLE_SIZE),
	"ENC_GRANULE":                   fmt.Sprintf("%d", capability.ENC_GRANULE),
	"CAUSE_Length_Violation":        fmt.Sprintf("0x%02x", uint8(CAUSE_LENGTH_VIOLATION)),
	"CAUSE_Tag_Violation":           fmt.Sprintf("0x%02x", uint8(CAUSE_TAG_VIOLATION)),
	"CAUSE_Seal_Violation":          fmt.Sprintf("0x%02x", uint8(CAUSE_SEAL_VIOLATION)),
	"CAUSE_Type_Violation":          fmt.Sprintf("0x%02x", uint8(CAUSE_TYPE_VIOLATION)),
	"CAUSE_Permit_Seal_Violation":   fmt.Sprintf("0x%02x", uint8(CAUSE_PERMIT_SEAL_VIOLATION)),
	"CAUSE_Permit_Unseal_Violation": fmt.Sprintf("0x%02x", uint8(CAUSE_PERMIT_UNSEAL_VIOLATION)),
}

// CauseName names any cause the machine can raise.
func CauseName(code cause.Code) string {
	if name, ok := _machine_cause_names[code]; ok {
		return name
	}
	return code.String()
}

// Machine is the simulation context of the capability hardware.
type Machine struct {
	Verbose bool // Set to enable verbose logging.
	Encrypt bool // Set to enforce sealing with encryption.

	Cap  [CREG_COUNT]capability.Capability // Capability register file.
	Keys *capability.KeyTable              // Key table, indexed by object type.
	Rand io.Reader                         // Key and nonce source.

	Mcause uint32 // Exception class of the last fault.
	Xccsr  uint32 // Capability cause of the last fault.

	Cycles uint64 // Free-running cycle counter.
	Ticks  int    // Instructions executed.

	safe Snapshots // Saved safe states.
}

var _ counter.Halves = (*Machine)(nil)
var _ seal.Primitive = (*Machine)(nil)

// NewMachine creates a machine with a key table of keys slots.
func NewMachine(keys int, encrypt bool) (m *Machine) {
	m = &Machine{
		Encrypt: encrypt,
		Keys:    capability.NewKeyTable(keys),
		Rand:    rand.Reader,
	}

	return
}

// Defines returns the machine, permission and cause constants.
func (m *Machine) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_machine_defines),
		perm.Defines(),
		cause.Defines(),
	)
}

// String returns the non-null registers and the status as a string.
func (m *Machine) String() (text string) {
	text += fmt.Sprintf("%8s: %016x\n", "cycles", m.Cycles)
	text += fmt.Sprintf("%8s: %02x\n", "mcause", m.Mcause)
	text += fmt.Sprintf("%8s: %06x\n", "xccsr", m.Xccsr)
	for n, c := range m.Cap {
		if !c.Tag && !c.Sealed && c.Length == 0 && c.Cipher == nil {
			continue
		}
		text += fmt.Sprintf("%8s: %v\n", fmt.Sprintf("c%d", n), c)
	}

	return
}

// Reset the machine state.
//   - Clears the registers and status.
//   - Installs ROOT in c31.
//   - Generates a new key for every key table slot.
//   - Zeros the cycle counter and tick counter.
//   - Discards all saved safe states.
func (m *Machine) Reset() (err error) {
	if m.Verbose {
		log.Printf("machine: reset, encrypt %v", m.Encrypt)
	}

	clear(m.Cap[:])
	m.Cap[CREG_ROOT] = capability.Root()
	m.Mcause = 0
	m.Xccsr = 0
	m.Cycles = 0
	m.Ticks = 0
	m.safe.Reset()

	err = m.Keys.Generate(m.Rand)
	return
}

// Status returns the packed mcause/xccsr status word.
func (m *Machine) Status() uint32 {
	return cause.Pack(m.Mcause, m.Xccsr)
}

// Faulted reports whether a fault is pending in the status registers.
func (m *Machine) Faulted() bool {
	return m.Mcause != 0
}

// ClearStatus acknowledges a fault.
func (m *Machine) ClearStatus() {
	m.Mcause = 0
	m.Xccsr = 0
}

// Low is rdcycle.
func (m *Machine) Low() uint32 {
	value := m.Cycles
	m.Cycles += CYCLE_COST_OP
	return uint32(value)
}

// High is rdcycleh.
func (m *Machine) High() uint32 {
	value := m.Cycles
	m.Cycles += CYCLE_COST_OP
	return uint32(value >> 32)
}

// SaveSafeState pushes the register file and status as the safe state.
func (m *Machine) SaveSafeState() (err error) {
	if m.safe.Full() {
		err = ErrSnapshotFull
		return
	}

	m.safe.Push(Snapshot{Cap: m.Cap, Mcause: m.Mcause, Xccsr: m.Xccsr})
	return
}

// RestoreSafeState restores the most recently saved safe state.
// The safe state stays saved, so it may be restored again.
func (m *Machine) RestoreSafeState() (err error) {
	snap, ok := m.safe.Peek()
	if !ok {
		err = ErrSnapshotEmpty
		return
	}

	if m.Verbose {
		log.Printf("machine: restore safe state")
	}

	m.Cap = snap.Cap
	m.Mcause = snap.Mcause
	m.Xccsr = snap.Xccsr
	return
}

// DropSafeState discards the most recently saved safe state.
func (m *Machine) DropSafeState() (err error) {
	_, ok := m.safe.Pop()
	if !ok {
		err = ErrSnapshotEmpty
	}
	return
}

// Rekey installs a fresh key from Rand for otype. Capabilities sealed
// under the previous key no longer decrypt.
func (m *Machine) Rekey(otype uint32) (err error) {
	key := make([]byte, capability.KEY_SIZE)
	_, err = io.ReadFull(m.Rand, key)
	if err != nil {
		return
	}

	err = m.Keys.Install(otype, key)
	if err != nil {
		return
	}

	if m.Verbose {
		log.Printf("machine: rekey %d", otype)
	}
	return
}

func (m *Machine) tick(cost uint64) {
	m.Ticks++
	m.Cycles += cost
}

// trap records a capability fault in the status registers.
func (m *Machine) trap(code cause.Code, reg int) error {
	xccsr := (uint32(code) << cause.CAUSE_SHIFT) & cause.CAUSE_FIELD
	if reg >= 0 {
		xccsr |= (uint32(reg) << cause.REG_SHIFT) & cause.REG_FIELD
	}
	m.Mcause = cause.CHERI_CAUSE
	m.Xccsr = xccsr

	trap := &Trap{Cause: code, Reg: reg}
	if m.Verbose {
		log.Printf("machine: %v", trap)
	}

	return trap
}

// reg returns the capability in register n.
func (m *Machine) reg(n int) (c capability.Capability, err error) {
	if n < 0 || n >= CREG_COUNT {
		err = ErrRegister(n)
		return
	}
	c = m.Cap[n]
	return
}

// set writes a capability register.
func (m *Machine) set(n int, c capability.Capability) (err error) {
	if n < 0 || n >= CREG_COUNT {
		err = ErrRegister(n)
		return
	}
	if m.Verbose {
		log.Printf("machine: c%d <- %v", n, c)
	}
	m.Cap[n] = c
	return
}

// Get returns a copy of capability register n.
func (m *Machine) Get(n int) (c capability.Capability, err error) {
	c, err = m.reg(n)
	c = c.Clone()
	return
}

// Set writes a copy of c into capability register n.
func (m *Machine) Set(n int, c capability.Capability) (err error) {
	return m.set(n, c.Clone())
}
