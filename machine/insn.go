package machine

import (
	"log"

	"github.com/ezrec/capencrypt/capability"
	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/perm"
	"github.com/ezrec/capencrypt/seal"
)

// CGetPerm returns the permission word of cs.
func (m *Machine) CGetPerm(cs int) (word perm.Word, err error) {
	c, err := m.reg(cs)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	word = c.Perms
	return
}

// CMove copies cs to cd.
func (m *Machine) CMove(cd, cs int) (err error) {
	c, err := m.reg(cs)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	err = m.set(cd, c.Clone())
	return
}

// CAndPerm writes cs, with its permissions masked, to cd.
func (m *Machine) CAndPerm(cd, cs int, mask perm.Word) (err error) {
	c, err := m.reg(cs)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	if !c.Tag {
		return m.trap(CAUSE_TAG_VIOLATION, cs)
	}
	if c.Sealed {
		return m.trap(CAUSE_SEAL_VIOLATION, cs)
	}

	err = m.set(cd, c.WithPerms(mask))
	return
}

// CClearTag writes cs, with its tag cleared, to cd.
func (m *Machine) CClearTag(cd, cs int) (err error) {
	c, err := m.reg(cs)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	err = m.set(cd, c.WithoutTag())
	return
}

// CSetOffset writes cs, with a new offset, to cd.
func (m *Machine) CSetOffset(cd, cs int, offset uint32) (err error) {
	c, err := m.reg(cs)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	err = m.set(cd, c.WithOffset(offset))
	return
}

// CSealEncrypt seals cs with the object type at the address of ct, and
// writes the result to cd.
func (m *Machine) CSealEncrypt(cd, cs, ct int) (err error) {
	src, err := m.reg(cs)
	if err != nil {
		return
	}
	auth, err := m.reg(ct)
	if err != nil {
		return
	}

	out, err := m.sealEncrypt(src, auth, cs, ct)
	if err != nil {
		return
	}

	err = m.set(cd, out)
	return
}

// CUnsealDecrypt unseals cs with the object type at the address of ct, and
// writes the result to cd.
func (m *Machine) CUnsealDecrypt(cd, cs, ct int) (err error) {
	src, err := m.reg(cs)
	if err != nil {
		return
	}
	auth, err := m.reg(ct)
	if err != nil {
		return
	}

	out, err := m.unsealDecrypt(src, auth, cs, ct)
	if err != nil {
		return
	}

	err = m.set(cd, out)
	return
}

// SealEncrypt is the seal-and-encrypt primitive on capability values.
// Faults are reported with no register index.
func (m *Machine) SealEncrypt(cs, ct capability.Capability) (capability.Capability, error) {
	return m.sealEncrypt(cs, ct, -1, -1)
}

// regPrimitive is the seal-and-encrypt primitive on operands read from
// registers cs and ct. Faults report those registers.
type regPrimitive struct {
	m  *Machine
	cs int
	ct int
}

func (p regPrimitive) SealEncrypt(cs, ct capability.Capability) (capability.Capability, error) {
	return p.m.sealEncrypt(cs, ct, p.cs, p.ct)
}

// SealEncryptType seals cs with otype into cd, using ROOT as the sealing
// authority and c29 to carry the object type.
// cs is read before c29 is written.
func (m *Machine) SealEncryptType(cd, cs int, otype uint32) (err error) {
	root, err := m.reg(CREG_ROOT)
	if err != nil {
		return
	}
	src, err := m.reg(cs)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	err = m.set(CREG_SCRATCH, seal.Scratch(root, otype))
	if err != nil {
		return
	}

	out, err := seal.SealEncrypt(regPrimitive{m: m, cs: cs, ct: CREG_SCRATCH}, root, src, otype)
	if err != nil {
		return
	}

	err = m.set(cd, out)
	return
}

// SealRootEncryptType seals ROOT itself with otype into cd.
func (m *Machine) SealRootEncryptType(cd int, otype uint32) (err error) {
	root, err := m.reg(CREG_ROOT)
	if err != nil {
		return
	}
	m.tick(CYCLE_COST_OP)

	err = m.set(CREG_SCRATCH, seal.Scratch(root, otype))
	if err != nil {
		return
	}

	out, err := seal.SealRootEncrypt(regPrimitive{m: m, cs: CREG_ROOT, ct: CREG_SCRATCH}, root, otype)
	if err != nil {
		return
	}

	err = m.set(cd, out)
	return
}

// UnsealDecryptType unseals cs with otype into cd, using ROOT as the
// unsealing authority and c29 to carry the object type.
func (m *Machine) UnsealDecryptType(cd, cs int, otype uint32) (err error) {
	err = m.CSetOffset(CREG_SCRATCH, CREG_ROOT, otype)
	if err != nil {
		return
	}

	err = m.CUnsealDecrypt(cd, cs, CREG_SCRATCH)
	return
}

func (m *Machine) sealEncrypt(cs, ct capability.Capability, cs_reg, ct_reg int) (out capability.Capability, err error) {
	m.tick(CYCLE_COST_OP)

	switch {
	case !cs.Tag:
		err = m.trap(CAUSE_TAG_VIOLATION, cs_reg)
	case !ct.Tag:
		err = m.trap(CAUSE_TAG_VIOLATION, ct_reg)
	case cs.Sealed:
		err = m.trap(CAUSE_SEAL_VIOLATION, cs_reg)
	case ct.Sealed:
		err = m.trap(CAUSE_SEAL_VIOLATION, ct_reg)
	case !ct.Perms.Has(perm.PERMIT_SEAL):
		err = m.trap(CAUSE_PERMIT_SEAL_VIOLATION, ct_reg)
	case !ct.InBounds(ct.Address()):
		err = m.trap(CAUSE_LENGTH_VIOLATION, ct_reg)
	}
	if err != nil {
		return
	}

	otype := ct.Address()
	sealed := cs.Seal(otype)
	if !m.Encrypt {
		out = sealed
		return
	}

	if !perm.IsEncryptPermitted(ct.Perms) {
		err = m.trap(cause.PermitEncryptionViolation, ct_reg)
		return
	}
	key, ok := m.Keys.Key(otype)
	if !ok {
		err = m.trap(cause.EncKeyTableViolation, ct_reg)
		return
	}
	if !capability.ValidLength(cs.Length) {
		err = m.trap(cause.EncCapLenViolation, cs_reg)
		return
	}

	m.tick(CYCLE_COST_CRYPT)
	out, err = capability.Encrypt(key, sealed, m.Rand)
	if err != nil {
		return
	}

	if m.Verbose {
		log.Printf("machine: sealed with key %d", otype)
	}

	return
}

func (m *Machine) unsealDecrypt(cs, ct capability.Capability, cs_reg, ct_reg int) (out capability.Capability, err error) {
	m.tick(CYCLE_COST_OP)

	switch {
	case !cs.Tag && cs.Encrypted:
		err = m.trap(cause.EncTagViolation, cs_reg)
	case !cs.Tag:
		err = m.trap(CAUSE_TAG_VIOLATION, cs_reg)
	case !ct.Tag:
		err = m.trap(CAUSE_TAG_VIOLATION, ct_reg)
	case !cs.Sealed:
		err = m.trap(CAUSE_SEAL_VIOLATION, cs_reg)
	case ct.Sealed:
		err = m.trap(CAUSE_SEAL_VIOLATION, ct_reg)
	case !ct.Perms.Has(perm.PERMIT_UNSEAL):
		err = m.trap(CAUSE_PERMIT_UNSEAL_VIOLATION, ct_reg)
	case !ct.InBounds(ct.Address()):
		err = m.trap(CAUSE_LENGTH_VIOLATION, ct_reg)
	case ct.Address() != cs.OType:
		err = m.trap(CAUSE_TYPE_VIOLATION, ct_reg)
	}
	if err != nil {
		return
	}

	if !cs.Encrypted {
		if m.Encrypt {
			err = m.trap(cause.EncTagViolation, cs_reg)
			return
		}
		out = cs.Unseal()
		return
	}

	key, ok := m.Keys.Key(cs.OType)
	if !ok {
		err = m.trap(cause.EncKeyTableViolation, ct_reg)
		return
	}

	m.tick(CYCLE_COST_CRYPT)
	dec, err := capability.Decrypt(key, cs)
	if err != nil {
		err = m.trap(cause.EncTagViolation, cs_reg)
		return
	}
	if !capability.ValidLength(dec.Length) {
		err = m.trap(cause.EncCapLenViolation, cs_reg)
		return
	}

	out = dec.Unseal()
	return
}
