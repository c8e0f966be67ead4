package main

import (
	"errors"

	"github.com/ezrec/capencrypt/translate"
)

var f = translate.From

const (
	EXIT_FAILURE       = 1 // One or more scenarios failed.
	EXIT_COMMAND_ERROR = 2 // Bad arguments or unreadable files.
)

var (
	ErrScenariosFailed = errors.New(f("scenarios failed"))
)

// ErrNumber is a command argument that is not a number.
type ErrNumber string

func (err ErrNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

// ExitCode returns the process exit code for a command error.
func ExitCode(err error) int {
	if errors.Is(err, ErrScenariosFailed) {
		return EXIT_FAILURE
	}
	return EXIT_COMMAND_ERROR
}
