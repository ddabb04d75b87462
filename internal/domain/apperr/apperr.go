package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation       Code = "validation"
	CodeTransientNetwork Code = "transient_network"
	CodeTimeout          Code = "timeout"
	CodeConflict         Code = "conflict"
)

// Sentinels for errors.Is; any E with the same Code matches.
var (
	ErrValidation       = E{Code: CodeValidation}
	ErrTransientNetwork = E{Code: CodeTransientNetwork}
	ErrTimeout          = E{Code: CodeTimeout}
	ErrConflict         = E{Code: CodeConflict}
)

type E struct {
	Code    Code
	Message string
	Err     error
}

func (e E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e E) Unwrap() error {
	return e.Err
}

func (e E) Is(target error) bool {
	t, ok := target.(E)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

func Wrap(code Code, msg string, err error) error {
	return E{Code: code, Message: msg, Err: err}
}

func Validation(msg string) error {
	return E{Code: CodeValidation, Message: msg}
}

func Conflict(msg string) error {
	return E{Code: CodeConflict, Message: msg}
}

func Transient(msg string, err error) error {
	return E{Code: CodeTransientNetwork, Message: msg, Err: err}
}

func Timeout(msg string) error {
	return E{Code: CodeTimeout, Message: msg}
}

// Message returns the operator-facing text of err.
func Message(err error) string {
	var e E
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
