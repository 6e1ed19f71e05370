package main

import (
	"errors"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK               = 0
	exitGeneral          = 1
	exitHeaderValidation = 2
	exitConnectionLost   = 3
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// runError attaches the exit code matching a failed import.
func runError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrConnectionLost):
		return withCode(exitConnectionLost, err)
	case errors.Is(err, core.ErrHeaderValidation):
		return withCode(exitHeaderValidation, err)
	default:
		return withCode(exitGeneral, err)
	}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitGeneral
}
