package capability

import (
	"crypto/cipher"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KEY_SIZE    = chacha20poly1305.KeySize // Bytes per key table entry.
	ENC_GRANULE = 16                       // Encrypted capability length granule.
)

// KeyTable is the per-object-type encryption key table.
// A nil entry is an empty (or revoked) slot.
type KeyTable struct {
	Keys [][]byte
}

// NewKeyTable creates an empty key table with size slots.
func NewKeyTable(size int) (kt *KeyTable) {
	kt = &KeyTable{
		Keys: make([][]byte, size),
	}
	return
}

// Size returns the number of slots.
func (kt *KeyTable) Size() int {
	return len(kt.Keys)
}

// Generate fills every slot with a fresh key from rnd.
func (kt *KeyTable) Generate(rnd io.Reader) (err error) {
	for n := range kt.Keys {
		key := make([]byte, KEY_SIZE)
		_, err = io.ReadFull(rnd, key)
		if err != nil {
			return
		}
		kt.Keys[n] = key
	}
	return
}

// Install sets the key for a slot.
func (kt *KeyTable) Install(index uint32, key []byte) (err error) {
	if uint64(index) >= uint64(len(kt.Keys)) {
		err = ErrKeyIndex(index)
		return
	}
	if len(key) != KEY_SIZE {
		err = ErrKeySize
		return
	}

	kt.Keys[index] = append([]byte(nil), key...)
	return
}

// Revoke empties a slot.
func (kt *KeyTable) Revoke(index uint32) {
	if uint64(index) < uint64(len(kt.Keys)) {
		kt.Keys[index] = nil
	}
}

// Key returns the key in a slot.
func (kt *KeyTable) Key(index uint32) (key []byte, ok bool) {
	if uint64(index) >= uint64(len(kt.Keys)) {
		return
	}
	key = kt.Keys[index]
	ok = key != nil
	return
}

// ValidLength reports whether length is acceptable for an encrypted
// capability.
func ValidLength(length uint64) bool {
	return length != 0 && (length%ENC_GRANULE) == 0
}

// additionalData binds the visible metadata to the ciphertext.
func additionalData(c Capability) []byte {
	ad := make([]byte, 0, 8)
	ad = binary.LittleEndian.AppendUint32(ad, uint32(c.Perms))
	ad = binary.LittleEndian.AppendUint32(ad, c.OType)
	return ad
}

func newAead(key []byte) (aead cipher.AEAD, err error) {
	aead, err = chacha20poly1305.NewX(key)
	if err != nil {
		err = ErrKeySize
	}
	return
}

// Encrypt hides the address and bounds of c under key.
// A fresh nonce is read from rnd for every call.
func Encrypt(key []byte, c Capability, rnd io.Reader) (enc Capability, err error) {
	aead, err := newAead(key)
	if err != nil {
		return
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+16+aead.Overhead())
	_, err = io.ReadFull(rnd, nonce)
	if err != nil {
		return
	}

	plain := make([]byte, 0, 16)
	plain = binary.LittleEndian.AppendUint32(plain, c.Base)
	plain = binary.LittleEndian.AppendUint64(plain, c.Length)
	plain = binary.LittleEndian.AppendUint32(plain, c.Offset)

	enc = c.Clone()
	enc.Encrypted = true
	enc.Base = 0
	enc.Length = 0
	enc.Offset = 0
	enc.Cipher = aead.Seal(nonce, nonce, plain, additionalData(c))

	return
}

// Decrypt recovers the address and bounds of an encrypted capability.
func Decrypt(key []byte, c Capability) (dec Capability, err error) {
	aead, err := newAead(key)
	if err != nil {
		return
	}

	if len(c.Cipher) < aead.NonceSize()+aead.Overhead() {
		err = ErrAuthentication
		return
	}

	nonce, text := c.Cipher[:aead.NonceSize()], c.Cipher[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, text, additionalData(c))
	if err != nil || len(plain) != 16 {
		err = ErrAuthentication
		return
	}

	dec = c.Clone()
	dec.Encrypted = false
	dec.Cipher = nil
	dec.Base = binary.LittleEndian.Uint32(plain[0:4])
	dec.Length = binary.LittleEndian.Uint64(plain[4:12])
	dec.Offset = binary.LittleEndian.Uint32(plain[12:16])

	return
}
