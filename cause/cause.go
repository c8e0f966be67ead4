// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package cause classifies encryption extension faults.
//
// A fault is described by two registers: mcause, holding the exception class,
// and xccsr, holding the capability cause sub-code and the faulting register.
// The packed status word used throughout the harness keeps the class in bits
// [31:24] and xccsr in bits [23:0].
//
// Only the four encryption causes are classified. Every other sub-code of
// the capability class is reported as ErrCauseUnknown, and every other class
// as ErrClassMismatch.
package cause

import (
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Code is an encryption fault cause.
type Code uint8

// Encryption causes:
//   - PermitEncryptionViolation: operation contradicts PERMIT_ENCRYPT.
//   - EncKeyTableViolation: invalid key table reference.
//   - EncCapLenViolation: encrypted capability length invalid.
//   - EncTagViolation: encrypted capability tag check failed.
//
//go:generate go tool stringer -linecomment -type=Code
const (
	PermitEncryptionViolation = Code(0x1d) // PermitEncryptionViolation
	EncKeyTableViolation      = Code(0x1e) // EncKeyTableViolation
	EncCapLenViolation        = Code(0x0b) // EncCapLenViolation
	EncTagViolation           = Code(0x1f) // EncTagViolation
)

// Status register layout.
const (
	CHERI_CAUSE = 0x0A // mcause class of capability exceptions.

	CAUSE_FIELD = 0x3e0 // xccsr cause sub-field.
	CAUSE_SHIFT = 5

	REG_FIELD = 0xfc00 // xccsr faulting register index.
	REG_SHIFT = 10

	CLASS_FIELD = 0xff00_0000 // Packed status class field.
	CLASS_SHIFT = 24
	CCSR_FIELD  = 0x00ff_ffff // Packed status xccsr field.
)

var _cause_defines = map[string]string{
	"CHERI_CAUSE":                       fmt.Sprintf("0x%02x", CHERI_CAUSE),
	"CAUSE_FIELD":                       fmt.Sprintf("0x%x", CAUSE_FIELD),
	"CAUSE_Permit_Encryption_Violation": fmt.Sprintf("0x%02x", uint8(PermitEncryptionViolation)),
	"CAUSE_EncKeyTable_Violation":       fmt.Sprintf("0x%02x", uint8(EncKeyTableViolation)),
	"CAUSE_EncCapLen_Violation":         fmt.Sprintf("0x%02x", uint8(EncCapLenViolation)),
	"CAUSE_EncTag_Violation":            fmt.Sprintf("0x%02x", uint8(EncTagViolation)),
}

// Defines returns the cause constants, for use in test expressions.
func Defines() iter.Seq2[string, string] {
	return maps.All(_cause_defines)
}

// Codes returns all of the classified cause codes.
func Codes() []Code {
	return []Code{
		EncCapLenViolation,
		PermitEncryptionViolation,
		EncKeyTableViolation,
		EncTagViolation,
	}
}

// Known reports whether the code is one of the classified causes.
func (code Code) Known() bool {
	return slices.Contains(Codes(), code)
}

// Parse returns the cause code for a name.
func Parse(name string) (code Code, err error) {
	for _, c := range Codes() {
		if c.String() == name {
			code = c
			return
		}
	}

	err = ErrCauseName(name)
	return
}

// Pack combines mcause and xccsr into a status word.
func Pack(mcause uint32, xccsr uint32) uint32 {
	return ((mcause << CLASS_SHIFT) & CLASS_FIELD) | (xccsr & CCSR_FIELD)
}

// Unpack splits a status word into mcause and xccsr.
func Unpack(status uint32) (mcause uint32, xccsr uint32) {
	mcause = (status & CLASS_FIELD) >> CLASS_SHIFT
	xccsr = status & CCSR_FIELD
	return
}

// Encode returns the status word the hardware reports for a cause.
func Encode(code Code) uint32 {
	xccsr := (uint32(code) << CAUSE_SHIFT) & CAUSE_FIELD
	return Pack(CHERI_CAUSE, xccsr)
}

// ClassifyRegisters classifies a fault from its mcause and xccsr registers.
func ClassifyRegisters(mcause uint32, xccsr uint32) (code Code, err error) {
	if mcause != CHERI_CAUSE {
		err = ErrClass(mcause)
		return
	}

	sub := Code((xccsr & CAUSE_FIELD) >> CAUSE_SHIFT)
	if !sub.Known() {
		err = ErrCauseUnknown(sub)
		return
	}

	code = sub
	return
}

// Classify classifies a packed status word.
//
// Exactly one of the following is returned:
//   - a classified Code and a nil error
//   - an ErrClass, which matches ErrClassMismatch
//   - an ErrCauseUnknown, which matches ErrCauseUnrecognized
func Classify(status uint32) (code Code, err error) {
	mcause, xccsr := Unpack(status)
	return ClassifyRegisters(mcause, xccsr)
}

// Expect classifies the status word and checks it against the wanted cause.
func Expect(status uint32, want Code) (err error) {
	got, err := Classify(status)
	if err != nil || got != want {
		err = &ErrCauseMismatch{Want: want, Got: got, Err: err}
	}
	return
}
