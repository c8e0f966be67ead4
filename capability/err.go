package capability

import (
	"errors"

	"github.com/ezrec/capencrypt/translate"
)

var f = translate.From

var (
	// Key table errors
	ErrKeySize = errors.New(f("key size invalid"))

	// Encryption errors
	ErrAuthentication = errors.New(f("encrypted capability failed authentication"))
)

// ErrKeyIndex is a key table index outside of the table.
type ErrKeyIndex uint32

func (err ErrKeyIndex) Error() string {
	return f("key index 0x%x out of range", uint32(err))
}
