package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// The numeric codes are a wire contract: emitters embed them in PANIC
// instructions and diagnostics key off the process exit code.
func TestPanicCodeWireValues(t *testing.T) {
	tests := []struct {
		code    PanicCode
		want    uint32
		message string
	}{
		{NoError, 0, ""},
		{PanicFile, 1, "File IO error"},
		{PanicOOB, 2, "Out of bounds"},
		{PanicNoHalt, 3, "No halt"},
		{PanicBadMagic, 4, "Bad magic"},
		{PanicUnsupportedVersion, 5, "Unsupported version"},
		{PanicEmptyProgram, 6, "Empty program"},
		{PanicProgramTooBig, 7, "Program too large"},
		{PanicOOM, 8, "Out of memory"},
		{PanicTruncatedCode, 9, "Truncated code"},
		{PanicConstRead, 10, "Const pool read failed"},
		{PanicGlobalRead, 11, "Globals read failed"},
		{PanicRegLimit, 12, "Register limit exceeded"},
		{PanicStackOverflow, 13, "Stack overflow"},
		{PanicStackUnderflow, 14, "Stack underflow"},
		{PanicInvalidCallable, 15, "Invalid callable"},
		{PanicCallFailed, 16, "Call failed"},
		{PanicTypeMismatch, 17, "Type mismatch"},
		{PanicInvalidOpcode, 18, "Invalid opcode"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, uint32(tt.code))
		assert.Equal(t, tt.message, tt.code.Message())
	}
}

func TestMessageOutsideTaxonomy(t *testing.T) {
	assert.Equal(t, "Panic 42", PanicCode(42).Message())
}

func TestPanicErrorFormatting(t *testing.T) {
	assert.Equal(t, "Bad magic", New(PanicBadMagic, "").Error())
	assert.Equal(t, "Bad magic: got \"STIX\"", New(PanicBadMagic, "got %q", "STIX").Error())
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := New(PanicTypeMismatch, "register 4 holds NUL")
	assert.True(t, stderrors.Is(err, &PanicError{Code: PanicTypeMismatch}))
	assert.False(t, stderrors.Is(err, &PanicError{Code: PanicOOB}))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, NoError, CodeOf(nil))
	assert.Equal(t, PanicStackOverflow, CodeOf(New(PanicStackOverflow, "")))
	assert.Equal(t, PanicCallFailed, CodeOf(stderrors.New("some host failure")))
}
