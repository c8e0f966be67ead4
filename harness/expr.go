package harness

import (
	"iter"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Equates is a set of named integer values for expressions.
type Equates map[string]string

// Add adds all of the integer-valued defines to the equates.
// Defines that are not integers are ignored.
func (eq Equates) Add(defines iter.Seq2[string, string]) {
	for key, str := range defines {
		if _, err := parseInt(str); err != nil {
			continue
		}
		eq[key] = str
	}
}

func parseInt(str string) (value int64, err error) {
	value, err = strconv.ParseInt(str, 0, 64)
	if err != nil {
		err = ErrExpression(str)
	}
	return
}

// Eval evaluates an integer expression over the equates.
// The result must fit in 32 bits, signed or unsigned.
func (eq Equates) Eval(expr string) (value uint32, err error) {
	if expr == "" {
		err = ErrOperandMissing
		return
	}

	// Plain numbers skip the interpreter.
	if v64, perr := strconv.ParseInt(expr, 0, 64); perr == nil {
		return toUint32(expr, v64)
	}

	thread := starlark.Thread{Name: "expr"}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range eq {
		v64, perr := parseInt(str)
		if perr != nil {
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrExpression(expr)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrExpression(expr)
		return
	}

	return toUint32(expr, st_int64)
}

func toUint32(expr string, v64 int64) (value uint32, err error) {
	if v64 > 0xffffffff || v64 < -int64(0x80000000) {
		err = ErrExpression(expr)
		return
	}

	value = uint32(v64)
	return
}
