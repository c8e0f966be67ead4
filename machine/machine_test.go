package machine

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/capencrypt/capability"
	"github.com/ezrec/capencrypt/cause"
	"github.com/ezrec/capencrypt/counter"
	"github.com/ezrec/capencrypt/perm"
)

func newMachine(t *testing.T, encrypt bool) *Machine {
	m := NewMachine(KEY_TABLE_SIZE, encrypt)
	if err := m.Reset(); err != nil {
		t.Fatal(err)
	}
	return m
}

func assertTrap(assert *assert.Assertions, m *Machine, err error, code cause.Code) {
	var trap *Trap
	if assert.True(errors.As(err, &trap), "%v is not a trap", err) {
		assert.Equal(code, trap.Cause, "got %v, want %v", CauseName(trap.Cause), CauseName(code))
	}
	assert.True(m.Faulted())
	assert.Equal(uint32(cause.CHERI_CAUSE), m.Mcause)
	assert.Equal(uint32(code), (m.Xccsr&cause.CAUSE_FIELD)>>cause.CAUSE_SHIFT)
}

func TestMachine_Reset(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	root, err := m.Get(CREG_ROOT)
	assert.NoError(err)
	assert.True(root.Equal(capability.Root()))
	assert.False(m.Faulted())
	assert.Equal(uint64(0), m.Cycles)

	_, ok := m.Keys.Key(KEY_TABLE_SIZE - 1)
	assert.True(ok)

	_, err = m.Get(CREG_COUNT)
	assert.Equal(ErrRegister(CREG_COUNT), err)
}

func TestMachine_Defines(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	defs := map[string]string{}
	for k, v := range m.Defines() {
		defs[k] = v
	}

	assert.Equal("31", defs["ROOT"])
	assert.Equal("12", defs["PERM_PERMIT_ENCRYPT"])
	assert.Equal("0x0a", defs["CHERI_CAUSE"])
	assert.Equal("0x1d", defs["CAUSE_Permit_Encryption_Violation"])
}

func TestMachine_CGetPerm(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	word, err := m.CGetPerm(CREG_ROOT)
	assert.NoError(err)
	assert.True(perm.IsEncryptPermitted(word))

	assert.NoError(m.CAndPerm(1, CREG_ROOT, ^perm.ENCRYPT_MASK))
	word, err = m.CGetPerm(1)
	assert.NoError(err)
	assert.False(perm.IsEncryptPermitted(word))

	// Source register is untouched.
	word, err = m.CGetPerm(CREG_ROOT)
	assert.NoError(err)
	assert.Equal(perm.ALL, word)
}

func TestMachine_CAndPerm_Faults(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	err := m.CAndPerm(1, 2, perm.ALL)
	assertTrap(assert, m, err, CAUSE_TAG_VIOLATION)

	m.ClearStatus()
	assert.NoError(m.SealRootEncryptType(2, 5))
	err = m.CAndPerm(1, 2, perm.ALL)
	assertTrap(assert, m, err, CAUSE_SEAL_VIOLATION)
}

func TestMachine_SealUnseal_RoundTrip(t *testing.T) {
	for _, encrypt := range []bool{true, false} {
		assert := assert.New(t)

		m := newMachine(t, encrypt)
		assert.NoError(m.CSetOffset(1, CREG_ROOT, 0x100))

		assert.NoError(m.SealEncryptType(2, 1, 0x10))
		sealed, err := m.Get(2)
		assert.NoError(err)
		assert.True(sealed.Tag)
		assert.True(sealed.Sealed)
		assert.Equal(uint32(0x10), sealed.OType)
		assert.Equal(encrypt, sealed.Encrypted)

		assert.NoError(m.UnsealDecryptType(3, 2, 0x10))
		plain, err := m.Get(3)
		assert.NoError(err)
		orig, err := m.Get(1)
		assert.NoError(err)
		assert.True(plain.Equal(orig), "%v != %v", plain, orig)
		assert.False(m.Faulted())
	}
}

func TestMachine_SealEncrypt_Faults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		setup func(m *Machine) error
		otype uint32
		code  cause.Code
	}){
		{"untagged_source", func(m *Machine) error { return m.CClearTag(1, CREG_ROOT) }, 4, CAUSE_TAG_VIOLATION},
		{"sealed_source", func(m *Machine) error { return m.SealRootEncryptType(1, 3) }, 4, CAUSE_SEAL_VIOLATION},
		{"no_permit_encrypt", func(m *Machine) error {
			return m.CAndPerm(CREG_ROOT, CREG_ROOT, ^perm.ENCRYPT_MASK)
		}, 4, cause.PermitEncryptionViolation},
		{"no_permit_seal", func(m *Machine) error {
			return m.CAndPerm(CREG_ROOT, CREG_ROOT, ^perm.Word(1<<perm.PERMIT_SEAL))
		}, 4, CAUSE_PERMIT_SEAL_VIOLATION},
		{"key_out_of_table", nil, KEY_TABLE_SIZE, cause.EncKeyTableViolation},
		{"key_revoked", func(m *Machine) error { m.Keys.Revoke(4); return nil }, 4, cause.EncKeyTableViolation},
		{"bad_length", func(m *Machine) error {
			return m.Set(1, capability.Capability{Tag: true, Perms: perm.ALL, Base: 0x1000, Length: 0x18})
		}, 4, cause.EncCapLenViolation},
		{"out_of_bounds_type", func(m *Machine) error {
			return m.Set(CREG_ROOT, capability.Capability{Tag: true, Perms: perm.ALL, Base: 0, Length: 0x10})
		}, 0x20, CAUSE_LENGTH_VIOLATION},
	}

	for _, entry := range table {
		m := newMachine(t, true)
		assert.NoError(m.CMove(1, CREG_ROOT), entry.name)
		if entry.setup != nil {
			assert.NoError(entry.setup(m), entry.name)
		}
		before, _ := m.Get(2)
		err := m.SealEncryptType(2, 1, entry.otype)
		assertTrap(assert, m, err, entry.code)

		// Destination is not written on a fault.
		after, _ := m.Get(2)
		assert.True(before.Equal(after), entry.name)
	}
}

func TestMachine_SealEncrypt_Disabled(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, false)
	assert.NoError(m.CAndPerm(CREG_ROOT, CREG_ROOT, ^perm.ENCRYPT_MASK))
	m.Keys.Revoke(4)

	// None of the encryption checks apply.
	assert.NoError(m.SealRootEncryptType(2, 4))
	sealed, err := m.Get(2)
	assert.NoError(err)
	assert.False(sealed.Encrypted)
	assert.Nil(sealed.Cipher)
	assert.False(m.Faulted())
}

func TestMachine_UnsealDecrypt_Faults(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	assert.NoError(m.SealRootEncryptType(2, 7))
	assert.NoError(m.SaveSafeState())

	// Untagged encrypted capability.
	assert.NoError(m.CClearTag(3, 2))
	err := m.UnsealDecryptType(4, 3, 7)
	assertTrap(assert, m, err, cause.EncTagViolation)
	assert.NoError(m.RestoreSafeState())

	// Tampered ciphertext.
	c, _ := m.Get(2)
	c.Cipher[len(c.Cipher)-1] ^= 0x80
	assert.NoError(m.Set(3, c))
	err = m.UnsealDecryptType(4, 3, 7)
	assertTrap(assert, m, err, cause.EncTagViolation)
	assert.NoError(m.RestoreSafeState())

	// Wrong type.
	err = m.UnsealDecryptType(4, 2, 8)
	assertTrap(assert, m, err, CAUSE_TYPE_VIOLATION)
	assert.NoError(m.RestoreSafeState())

	// Revoked key.
	m.Keys.Revoke(7)
	err = m.UnsealDecryptType(4, 2, 7)
	assertTrap(assert, m, err, cause.EncKeyTableViolation)
	assert.NoError(m.RestoreSafeState())

	// Not sealed.
	err = m.UnsealDecryptType(4, CREG_ROOT, 7)
	assertTrap(assert, m, err, CAUSE_SEAL_VIOLATION)
	assert.NoError(m.RestoreSafeState())

	// Sealed without encryption.
	assert.NoError(m.Set(3, capability.Root().Seal(7)))
	err = m.UnsealDecryptType(4, 3, 7)
	assertTrap(assert, m, err, cause.EncTagViolation)
	assert.Equal(uint32(3), (m.Xccsr&cause.REG_FIELD)>>cause.REG_SHIFT)
	c4, _ := m.Get(4)
	assert.False(c4.Tag)
}

func TestMachine_UnsealDecrypt_Disabled(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, false)
	assert.NoError(m.Set(3, capability.Root().Seal(7)))
	assert.NoError(m.UnsealDecryptType(4, 3, 7))
	c4, _ := m.Get(4)
	assert.True(c4.Equal(capability.Root()))
}

func TestMachine_SealEncryptType_Scratch(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	assert.NoError(m.CSetOffset(CREG_SCRATCH, CREG_ROOT, 0x40))

	// The source is read before the object type is written to c29.
	assert.NoError(m.SealEncryptType(2, CREG_SCRATCH, 5))
	assert.NoError(m.UnsealDecryptType(3, 2, 5))
	c3, _ := m.Get(3)
	assert.Equal(uint32(0x40), c3.Offset)

	scratch, _ := m.Get(CREG_SCRATCH)
	assert.Equal(uint32(5), scratch.Offset)

	// Faults in the primitive report the operand registers.
	assert.NoError(m.CClearTag(1, CREG_ROOT))
	err := m.SealEncryptType(2, 1, 5)
	assertTrap(assert, m, err, CAUSE_TAG_VIOLATION)
	assert.Equal(uint32(1), (m.Xccsr&cause.REG_FIELD)>>cause.REG_SHIFT)

	m.ClearStatus()
	m.Keys.Revoke(5)
	err = m.SealRootEncryptType(2, 5)
	assertTrap(assert, m, err, cause.EncKeyTableViolation)
	assert.Equal(uint32(CREG_SCRATCH), (m.Xccsr&cause.REG_FIELD)>>cause.REG_SHIFT)
}

func TestMachine_TrapRegister(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	assert.NoError(m.CAndPerm(5, CREG_ROOT, ^perm.ENCRYPT_MASK))
	assert.NoError(m.CSetOffset(6, 5, 3))
	err := m.CSealEncrypt(7, CREG_ROOT, 6)
	assertTrap(assert, m, err, cause.PermitEncryptionViolation)
	assert.Equal(uint32(6), (m.Xccsr&cause.REG_FIELD)>>cause.REG_SHIFT)

	code, err := cause.Classify(m.Status())
	assert.NoError(err)
	assert.Equal(cause.PermitEncryptionViolation, code)
}

func TestMachine_SafeState(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	assert.Equal(ErrSnapshotEmpty, m.RestoreSafeState())

	assert.NoError(m.SaveSafeState())
	assert.NoError(m.CClearTag(CREG_ROOT, CREG_ROOT))
	_ = m.CAndPerm(1, CREG_ROOT, 0)
	assert.True(m.Faulted())

	assert.NoError(m.RestoreSafeState())
	root, _ := m.Get(CREG_ROOT)
	assert.True(root.Tag)
	assert.False(m.Faulted())

	// The safe state may be restored again.
	assert.NoError(m.CClearTag(CREG_ROOT, CREG_ROOT))
	assert.NoError(m.RestoreSafeState())
	root, _ = m.Get(CREG_ROOT)
	assert.True(root.Tag)

	assert.NoError(m.DropSafeState())
	assert.Equal(ErrSnapshotEmpty, m.DropSafeState())

	for range SNAPSHOT_LIMIT {
		assert.NoError(m.SaveSafeState())
	}
	assert.Equal(ErrSnapshotFull, m.SaveSafeState())
}

func TestMachine_Rekey(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	assert.NoError(m.SealRootEncryptType(2, 6))
	assert.NoError(m.Rekey(6))

	// The old ciphertext no longer authenticates.
	err := m.UnsealDecryptType(3, 2, 6)
	assertTrap(assert, m, err, cause.EncTagViolation)
	m.ClearStatus()

	// A revoked slot is usable again after a rekey.
	m.Keys.Revoke(8)
	assert.NoError(m.Rekey(8))
	assert.NoError(m.SealRootEncryptType(2, 8))
	assert.NoError(m.UnsealDecryptType(3, 2, 8))

	assert.Equal(capability.ErrKeyIndex(KEY_TABLE_SIZE), m.Rekey(KEY_TABLE_SIZE))

	m.Rand = bytes.NewReader(nil)
	assert.ErrorIs(m.Rekey(1), io.EOF)
	_, ok := m.Keys.Key(1)
	assert.True(ok)
}

func TestMachine_Counter(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	m.Cycles = 0xffff_fffe

	rd := &counter.Reader{Source: m}
	value := rd.Read()
	assert.Equal(uint64(0x1_0000_0002), value)
	assert.Equal(1, rd.Retries)

	last := value
	for range 16 {
		assert.NoError(m.SealRootEncryptType(2, 1))
		value = rd.Read()
		assert.Greater(value, last)
		last = value
	}
}

func TestMachine_String(t *testing.T) {
	assert := assert.New(t)

	m := newMachine(t, true)
	text := m.String()
	assert.Contains(text, "c31: v-- perms:ECYUISlwrWRXG")
	assert.Contains(text, "mcause: 00")
}
