// Package seal derives sealed, encrypted capabilities.
//
// Sealing with encryption is a two step protocol. A scratch capability is
// derived from the sealing authority with its offset set to the object type,
// then the seal-and-encrypt primitive is applied to the capability and the
// scratch capability. Faults raised by the primitive are returned unchanged,
// to be classified by package cause.
package seal

import (
	"github.com/ezrec/capencrypt/capability"
)

// Primitive is the hardware seal-and-encrypt operation.
type Primitive interface {
	// SealEncrypt seals cs with the object type at the address of ct.
	SealEncrypt(cs, ct capability.Capability) (capability.Capability, error)
}

// Scratch returns the type-carrying capability derived from root.
func Scratch(root capability.Capability, objectType uint32) capability.Capability {
	return root.WithOffset(objectType)
}

// SealEncrypt seals and encrypts cs with objectType, using root as the
// sealing authority. Neither root nor cs is modified.
func SealEncrypt(p Primitive, root, cs capability.Capability, objectType uint32) (capability.Capability, error) {
	return p.SealEncrypt(cs, Scratch(root, objectType))
}

// SealRootEncrypt seals and encrypts root itself with objectType.
func SealRootEncrypt(p Primitive, root capability.Capability, objectType uint32) (capability.Capability, error) {
	return SealEncrypt(p, root, root, objectType)
}
