// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package perm decodes the permission word of a capability.
//
// The encryption extension adds PERMIT_ENCRYPT (bit 12) to the standard
// capability permissions. The bit position is part of the hardware ABI; the
// simulator and the tests must agree on it.
package perm

import (
	"fmt"
	"iter"
	"maps"
	"strings"
)

// Word is the permission bit-field of a capability.
type Word uint32

// Permission bit indexes.
const (
	PERMIT_GLOBAL          = 0
	PERMIT_EXECUTE         = 1
	PERMIT_LOAD            = 2
	PERMIT_STORE           = 3
	PERMIT_LOAD_CAP        = 4
	PERMIT_STORE_CAP       = 5
	PERMIT_STORE_LOCAL_CAP = 6
	PERMIT_SEAL            = 7
	PERMIT_CINVOKE         = 8
	PERMIT_UNSEAL          = 9
	PERMIT_ACCESS_SYS_REGS = 10
	PERMIT_SET_CID         = 11
	PERMIT_ENCRYPT         = 12 // Encryption permission.

	PERMIT_COUNT = 13 // Number of defined permission bits.
)

// ALL has every defined permission bit set.
const ALL = Word(1<<PERMIT_COUNT) - 1

// ENCRYPT_MASK selects the encryption permission bit.
const ENCRYPT_MASK = Word(1 << PERMIT_ENCRYPT)

var _perm_letters = [PERMIT_COUNT]byte{
	PERMIT_GLOBAL:          'G',
	PERMIT_EXECUTE:         'X',
	PERMIT_LOAD:            'R',
	PERMIT_STORE:           'W',
	PERMIT_LOAD_CAP:        'r',
	PERMIT_STORE_CAP:       'w',
	PERMIT_STORE_LOCAL_CAP: 'l',
	PERMIT_SEAL:            'S',
	PERMIT_CINVOKE:         'I',
	PERMIT_UNSEAL:          'U',
	PERMIT_ACCESS_SYS_REGS: 'Y',
	PERMIT_SET_CID:         'C',
	PERMIT_ENCRYPT:         'E',
}

var _perm_defines = map[string]string{
	"PERM_PERMIT_GLOBAL":          fmt.Sprintf("%d", PERMIT_GLOBAL),
	"PERM_PERMIT_EXECUTE":         fmt.Sprintf("%d", PERMIT_EXECUTE),
	"PERM_PERMIT_LOAD":            fmt.Sprintf("%d", PERMIT_LOAD),
	"PERM_PERMIT_STORE":           fmt.Sprintf("%d", PERMIT_STORE),
	"PERM_PERMIT_LOAD_CAP":        fmt.Sprintf("%d", PERMIT_LOAD_CAP),
	"PERM_PERMIT_STORE_CAP":       fmt.Sprintf("%d", PERMIT_STORE_CAP),
	"PERM_PERMIT_STORE_LOCAL_CAP": fmt.Sprintf("%d", PERMIT_STORE_LOCAL_CAP),
	"PERM_PERMIT_SEAL":            fmt.Sprintf("%d", PERMIT_SEAL),
	"PERM_PERMIT_CINVOKE":         fmt.Sprintf("%d", PERMIT_CINVOKE),
	"PERM_PERMIT_UNSEAL":          fmt.Sprintf("%d", PERMIT_UNSEAL),
	"PERM_PERMIT_ACCESS_SYS_REGS": fmt.Sprintf("%d", PERMIT_ACCESS_SYS_REGS),
	"PERM_PERMIT_SET_CID":         fmt.Sprintf("%d", PERMIT_SET_CID),
	"PERM_PERMIT_ENCRYPT":         fmt.Sprintf("%d", PERMIT_ENCRYPT),
	"PERM_ALL":                    fmt.Sprintf("0x%x", uint32(ALL)),
}

// Defines returns the permission bit names, for use in test expressions.
func Defines() iter.Seq2[string, string] {
	return maps.All(_perm_defines)
}

// Has reports whether permission bit is set.
func (w Word) Has(bit uint) bool {
	mask := Word(1) << bit
	return (w & mask) == mask
}

// String returns one letter per permission, with '-' for cleared bits,
// highest bit first.
func (w Word) String() string {
	var sb strings.Builder
	for bit := PERMIT_COUNT - 1; bit >= 0; bit-- {
		if w.Has(uint(bit)) {
			sb.WriteByte(_perm_letters[bit])
		} else {
			sb.WriteByte('-')
		}
	}
	if extra := w &^ ALL; extra != 0 {
		fmt.Fprintf(&sb, "+0x%x", uint32(extra))
	}

	return sb.String()
}

// IsEncryptPermitted returns true iff PERMIT_ENCRYPT is set in word.
// Neighbouring bits never affect the result.
func IsEncryptPermitted(word Word) bool {
	return (word & ENCRYPT_MASK) == ENCRYPT_MASK
}

// CheckEncryptSet returns nil if the encrypt permission is set, and
// an ErrPermMismatch otherwise.
func CheckEncryptSet(word Word) (err error) {
	if (word & ENCRYPT_MASK) != ENCRYPT_MASK {
		err = ErrPermMismatch{Word: word, Want: true}
	}
	return
}

// CheckEncryptUnset returns nil if the encrypt permission is clear, and
// an ErrPermMismatch otherwise.
func CheckEncryptUnset(word Word) (err error) {
	if (word & ENCRYPT_MASK) != 0 {
		err = ErrPermMismatch{Word: word, Want: false}
	}
	return
}
