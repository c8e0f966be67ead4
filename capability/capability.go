// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package capability models a 32-bit capability and its encrypted form.
//
// Capabilities are values: every derivation returns a new Capability and
// leaves its source untouched.
package capability

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/ezrec/capencrypt/perm"
)

const (
	ADDRESS_SPACE = uint64(1) << 32 // Length of the root capability.
)

// Capability is an unforgeable reference with bounds, permissions and a
// sealed object type.
type Capability struct {
	Tag       bool      // Validity tag.
	Perms     perm.Word // Permission word.
	Sealed    bool      // Sealed with OType.
	OType     uint32    // Object type, valid when Sealed.
	Encrypted bool      // Address and bounds are held in Cipher.
	Base      uint32    // Lower bound.
	Length    uint64    // Length of the region.
	Offset    uint32    // Cursor, relative to Base.
	Cipher    []byte    // Nonce and ciphertext of an encrypted capability.
}

// Root returns the full-permission capability over the whole address space.
func Root() Capability {
	return Capability{
		Tag:    true,
		Perms:  perm.ALL,
		Length: ADDRESS_SPACE,
	}
}

// Address returns the cursor address.
func (c Capability) Address() uint32 {
	return c.Base + c.Offset
}

// InBounds reports whether addr is within the capability bounds.
func (c Capability) InBounds(addr uint32) bool {
	a := uint64(addr)
	base := uint64(c.Base)
	return a >= base && a < base+c.Length
}

// Clone returns a copy that shares no storage with c.
func (c Capability) Clone() Capability {
	c.Cipher = slices.Clone(c.Cipher)
	return c
}

// WithOffset returns the capability with a new offset.
// Changing the offset of a sealed capability clears its tag.
func (c Capability) WithOffset(offset uint32) Capability {
	n := c.Clone()
	n.Offset = offset
	if n.Sealed {
		n.Tag = false
	}
	return n
}

// WithPerms returns the capability with its permissions masked by mask.
// Changing the permissions of a sealed capability clears its tag.
func (c Capability) WithPerms(mask perm.Word) Capability {
	n := c.Clone()
	n.Perms &= mask
	if n.Sealed {
		n.Tag = false
	}
	return n
}

// WithoutTag returns the capability with its tag cleared.
func (c Capability) WithoutTag() Capability {
	n := c.Clone()
	n.Tag = false
	return n
}

// Seal returns the capability sealed with otype.
func (c Capability) Seal(otype uint32) Capability {
	n := c.Clone()
	n.Sealed = true
	n.OType = otype
	return n
}

// Unseal returns the capability with its seal removed.
func (c Capability) Unseal() Capability {
	n := c.Clone()
	n.Sealed = false
	n.OType = 0
	return n
}

// Equal reports whether two capabilities are identical, including their
// encrypted representation.
func (c Capability) Equal(o Capability) bool {
	return c.Tag == o.Tag &&
		c.Perms == o.Perms &&
		c.Sealed == o.Sealed &&
		c.OType == o.OType &&
		c.Encrypted == o.Encrypted &&
		c.Base == o.Base &&
		c.Length == o.Length &&
		c.Offset == o.Offset &&
		bytes.Equal(c.Cipher, o.Cipher)
}

func (c Capability) String() string {
	tag := "v"
	if !c.Tag {
		tag = "-"
	}
	seal := "-"
	if c.Sealed {
		seal = "s"
	}
	if c.Encrypted {
		return fmt.Sprintf("%v%ve perms:%v otype:0x%x cipher:%d", tag, seal, c.Perms, c.OType, len(c.Cipher))
	}
	return fmt.Sprintf("%v%v- perms:%v otype:0x%x base:0x%08x len:0x%x offset:0x%x",
		tag, seal, c.Perms, c.OType, c.Base, c.Length, c.Offset)
}
