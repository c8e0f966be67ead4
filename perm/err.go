package perm

import (
	"errors"

	"github.com/ezrec/capencrypt/translate"
)

var f = translate.From

var (
	// Permission errors
	ErrPermission = errors.New(f("permission mismatch"))
)

// ErrPermMismatch reports an encrypt permission that did not have the
// expected state.
type ErrPermMismatch struct {
	Word Word // Observed permission word.
	Want bool // Expected state of PERMIT_ENCRYPT.
}

func (err ErrPermMismatch) Error() string {
	want := "unset"
	if err.Want {
		want = "set"
	}
	return f("encrypt permission not %v in 0x%04x (%v)", want, uint32(err.Word), err.Word.String())
}

func (err ErrPermMismatch) Is(target error) bool {
	return target == ErrPermission
}
