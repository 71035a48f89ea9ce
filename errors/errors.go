// Package errors defines the interpreter's panic taxonomy. The numeric
// codes are a wire contract between emitters, the loader, and host
// diagnostics; they double as the process exit code.
package errors

import (
	stderrors "errors"
	"fmt"
)

// PanicCode enumerates every non-recoverable interpreter failure.
type PanicCode uint32

const (
	NoError PanicCode = iota
	PanicFile
	PanicOOB
	PanicNoHalt
	PanicBadMagic
	PanicUnsupportedVersion
	PanicEmptyProgram
	PanicProgramTooBig
	PanicOOM
	PanicTruncatedCode
	PanicConstRead
	PanicGlobalRead
	PanicRegLimit
	PanicStackOverflow
	PanicStackUnderflow
	PanicInvalidCallable
	PanicCallFailed
	PanicTypeMismatch
	PanicInvalidOpcode

	panicCodeCount
)

// messages line up with the panic codes by index.
var messages = [panicCodeCount]string{
	"",
	"File IO error",
	"Out of bounds",
	"No halt",
	"Bad magic",
	"Unsupported version",
	"Empty program",
	"Program too large",
	"Out of memory",
	"Truncated code",
	"Const pool read failed",
	"Globals read failed",
	"Register limit exceeded",
	"Stack overflow",
	"Stack underflow",
	"Invalid callable",
	"Call failed",
	"Type mismatch",
	"Invalid opcode",
}

// Message returns the human text for a code. Codes outside the taxonomy
// (a PANIC instruction can carry any byte) get a generic rendering.
func (c PanicCode) Message() string {
	if c < panicCodeCount {
		return messages[c]
	}
	return fmt.Sprintf("Panic %d", uint32(c))
}

func (c PanicCode) String() string {
	return c.Message()
}

// PanicError carries a panic code up through the loader or the run loop.
// The VM never recovers from one; it is frozen with the code set.
type PanicError struct {
	Code   PanicCode
	Detail string
}

func (e *PanicError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code.Message(), e.Detail)
	}
	return e.Code.Message()
}

// Is matches two PanicErrors by code, so errors.Is works against the
// bare sentinels produced by New.
func (e *PanicError) Is(target error) bool {
	other, ok := target.(*PanicError)
	return ok && other.Code == e.Code
}

// New builds a PanicError with an optional formatted detail.
func New(code PanicCode, format string, args ...interface{}) *PanicError {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return &PanicError{Code: code, Detail: detail}
}

// CodeOf extracts the panic code from an error chain. A nil error is
// NoError; a foreign error maps to PanicCallFailed so the process still
// exits nonzero.
func CodeOf(err error) PanicCode {
	if err == nil {
		return NoError
	}
	var pe *PanicError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return PanicCallFailed
}
