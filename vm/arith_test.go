package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/stick/errors"
	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
)

// runBinop loads two constants, applies one binary op, and returns the
// result register.
func runBinop(t *testing.T, op opcodes.Opcode, left, right values.Value) values.Value {
	t.Helper()
	machine := loadProgram(t, []opcodes.Instruction{
		pack(opcodes.OP_LOADC, 0, 0, 0),
		pack(opcodes.OP_LOADC, 1, 1, 0),
		pack(op, 2, 0, 1),
		pack(opcodes.OP_HALT, 0, 0, 0),
	}, []values.Value{left, right}, nil)
	require.NoError(t, machine.Run())
	return machine.Register(2)
}

func runBinopErr(t *testing.T, op opcodes.Opcode, left, right values.Value) error {
	t.Helper()
	machine := loadProgram(t, []opcodes.Instruction{
		pack(opcodes.OP_LOADC, 0, 0, 0),
		pack(opcodes.OP_LOADC, 1, 1, 0),
		pack(op, 2, 0, 1),
		pack(opcodes.OP_HALT, 0, 0, 0),
	}, []values.Value{left, right}, nil)
	return machine.Run()
}

func TestI64Arithmetic(t *testing.T) {
	tests := []struct {
		op   opcodes.Opcode
		l, r int64
		want int64
	}{
		{opcodes.OP_ADD, 5, -2, 3},
		{opcodes.OP_SUB, 5, 7, -2},
		{opcodes.OP_MUL, -3, 4, -12},
		{opcodes.OP_DIV, -9, 2, -4},
		{opcodes.OP_MOD, -9, 2, -1},
		{opcodes.OP_AND, 0b1100, 0b1010, 0b1000},
		{opcodes.OP_OR, 0b1100, 0b1010, 0b1110},
		{opcodes.OP_XOR, 0b1100, 0b1010, 0b0110},
		{opcodes.OP_SHL, 1, 4, 16},
		{opcodes.OP_SHR, -1, 60, 15},
		{opcodes.OP_SAR, -16, 2, -4},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got := runBinop(t, tt.op, values.NewI64(tt.l), values.NewI64(tt.r))
			assert.True(t, got.Equal(values.NewI64(tt.want)), "got %s", got)
		})
	}
}

func TestI64Comparisons(t *testing.T) {
	tests := []struct {
		op   opcodes.Opcode
		l, r int64
		want bool
	}{
		{opcodes.OP_EQ, 3, 3, true},
		{opcodes.OP_NEQ, 3, 3, false},
		{opcodes.OP_GT, -1, -2, true},
		{opcodes.OP_GE, -2, -2, true},
		{opcodes.OP_LT, -3, -2, true},
		{opcodes.OP_LE, 2, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got := runBinop(t, tt.op, values.NewI64(tt.l), values.NewI64(tt.r))
			assert.True(t, got.Equal(values.NewBool(tt.want)), "got %s", got)
		})
	}
}

func TestU64Operations(t *testing.T) {
	max := uint64(math.MaxUint64)
	tests := []struct {
		op   opcodes.Opcode
		l, r uint64
		want values.Value
	}{
		{opcodes.OP_ADD_U, max, 1, values.NewU64(0)}, // wraps
		{opcodes.OP_SUB_U, 3, 5, values.NewU64(max - 1)},
		{opcodes.OP_MUL_U, 1 << 32, 1 << 32, values.NewU64(0)},
		{opcodes.OP_DIV_U, max, 2, values.NewU64(max / 2)},
		{opcodes.OP_MOD_U, 7, 4, values.NewU64(3)},
		{opcodes.OP_AND_U, 0xF0, 0xFF, values.NewU64(0xF0)},
		{opcodes.OP_OR_U, 0xF0, 0x0F, values.NewU64(0xFF)},
		{opcodes.OP_XOR_U, 0xFF, 0x0F, values.NewU64(0xF0)},
		{opcodes.OP_SHL_U, 1, 63, values.NewU64(1 << 63)},
		{opcodes.OP_SHR_U, 1 << 63, 63, values.NewU64(1)},
		{opcodes.OP_GT_U, max, 0, values.NewBool(true)},
		{opcodes.OP_LT_U, max, 0, values.NewBool(false)}, // unsigned, not -1
		{opcodes.OP_EQ_U, 9, 9, values.NewBool(true)},
		{opcodes.OP_NEQ_U, 9, 8, values.NewBool(true)},
		{opcodes.OP_GE_U, 8, 9, values.NewBool(false)},
		{opcodes.OP_LE_U, 8, 9, values.NewBool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got := runBinop(t, tt.op, values.NewU64(tt.l), values.NewU64(tt.r))
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestFloatOperations(t *testing.T) {
	got := runBinop(t, opcodes.OP_ADD_F, values.NewFloat(1.5), values.NewFloat(2.25))
	assert.True(t, got.Equal(values.NewFloat(3.75)))

	got = runBinop(t, opcodes.OP_MUL_F, values.NewFloat(-2), values.NewFloat(0.5))
	assert.True(t, got.Equal(values.NewFloat(-1)))

	// IEEE semantics: dividing by zero is an infinity, not a panic
	got = runBinop(t, opcodes.OP_DIV_F, values.NewFloat(1), values.NewFloat(0))
	assert.True(t, math.IsInf(float64(got.AsFloat()), 1))

	got = runBinop(t, opcodes.OP_LT_F, values.NewFloat(1), values.NewFloat(2))
	assert.True(t, got.Equal(values.NewBool(true)))
}

func TestDoubleOperations(t *testing.T) {
	got := runBinop(t, opcodes.OP_SUB_D, values.NewDouble(1e100), values.NewDouble(1e100))
	assert.True(t, got.Equal(values.NewDouble(0)))

	got = runBinop(t, opcodes.OP_DIV_D, values.NewDouble(-1), values.NewDouble(0))
	assert.True(t, math.IsInf(got.AsDouble(), -1))

	got = runBinop(t, opcodes.OP_GE_D, values.NewDouble(2.5), values.NewDouble(2.5))
	assert.True(t, got.Equal(values.NewBool(true)))

	// NaN compares false with everything, including itself
	got = runBinop(t, opcodes.OP_EQ_D, values.NewDouble(math.NaN()), values.NewDouble(math.NaN()))
	assert.True(t, got.Equal(values.NewBool(false)))
}

func TestIntegerDivisionByZeroPanics(t *testing.T) {
	for _, op := range []opcodes.Opcode{opcodes.OP_DIV, opcodes.OP_MOD} {
		err := runBinopErr(t, op, values.NewI64(1), values.NewI64(0))
		requirePanic(t, err, errors.PanicTypeMismatch)
	}
	for _, op := range []opcodes.Opcode{opcodes.OP_DIV_U, opcodes.OP_MOD_U} {
		err := runBinopErr(t, op, values.NewU64(1), values.NewU64(0))
		requirePanic(t, err, errors.PanicTypeMismatch)
	}
}

func TestBinopDomainMismatch(t *testing.T) {
	// ADD is the I64 op; a U64 operand is a type mismatch
	err := runBinopErr(t, opcodes.OP_ADD, values.NewI64(1), values.NewU64(2))
	requirePanic(t, err, errors.PanicTypeMismatch)

	err = runBinopErr(t, opcodes.OP_ADD_D, values.NewFloat(1), values.NewDouble(2))
	requirePanic(t, err, errors.PanicTypeMismatch)
}

func runUnary(t *testing.T, op opcodes.Opcode, in values.Value) (values.Value, error) {
	t.Helper()
	machine := loadProgram(t, []opcodes.Instruction{
		pack(opcodes.OP_LOADC, 0, 0, 0),
		pack(op, 0, 0, 0),
		pack(opcodes.OP_HALT, 0, 0, 0),
	}, []values.Value{in}, nil)
	err := machine.Run()
	return machine.Register(0), err
}

func TestUnaryOperations(t *testing.T) {
	got, err := runUnary(t, opcodes.OP_NEG, values.NewI64(5))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewI64(-5)))

	got, err = runUnary(t, opcodes.OP_BNOT, values.NewI64(0))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewI64(-1)))

	got, err = runUnary(t, opcodes.OP_NEG_U, values.NewU64(1))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewU64(math.MaxUint64)))

	got, err = runUnary(t, opcodes.OP_BNOT_U, values.NewU64(0xFF))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewU64(^uint64(0xFF))))

	got, err = runUnary(t, opcodes.OP_NEG_F, values.NewFloat(2.5))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewFloat(-2.5)))

	got, err = runUnary(t, opcodes.OP_NEG_D, values.NewDouble(-4))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewDouble(4)))
}

func TestLogicalNot(t *testing.T) {
	got, err := runUnary(t, opcodes.OP_LNOT, values.NewBool(true))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewBool(false)))

	got, err = runUnary(t, opcodes.OP_LNOT, values.NewBool(false))
	require.NoError(t, err)
	assert.True(t, got.Equal(values.NewBool(true)))

	// LNOT is strict: only BOOL registers qualify
	_, err = runUnary(t, opcodes.OP_LNOT, values.NewI64(0))
	requirePanic(t, err, errors.PanicTypeMismatch)
}

func runCast(t *testing.T, op opcodes.Opcode, in values.Value) (values.Value, error) {
	t.Helper()
	machine := loadProgram(t, []opcodes.Instruction{
		pack(opcodes.OP_LOADC, 1, 0, 0),
		pack(op, 0, 1, 0),
		pack(opcodes.OP_HALT, 0, 0, 0),
	}, []values.Value{in}, nil)
	err := machine.Run()
	return machine.Register(0), err
}

func TestCasts(t *testing.T) {
	tests := []struct {
		op   opcodes.Opcode
		in   values.Value
		want values.Value
	}{
		{opcodes.OP_I2D, values.NewI64(-7), values.NewDouble(-7)},
		{opcodes.OP_I2F, values.NewI64(3), values.NewFloat(3)},
		{opcodes.OP_D2I, values.NewDouble(2.9), values.NewI64(2)},   // truncates toward zero
		{opcodes.OP_F2I, values.NewFloat(-2.9), values.NewI64(-2)},
		{opcodes.OP_I2U, values.NewI64(-1), values.NewU64(math.MaxUint64)},
		{opcodes.OP_U2I, values.NewU64(math.MaxUint64), values.NewI64(-1)},
		{opcodes.OP_U2D, values.NewU64(1 << 32), values.NewDouble(float64(uint64(1) << 32))},
		{opcodes.OP_U2F, values.NewU64(8), values.NewFloat(8)},
		{opcodes.OP_D2U, values.NewDouble(255.75), values.NewU64(255)},
		{opcodes.OP_F2U, values.NewFloat(16), values.NewU64(16)},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got, err := runCast(t, tt.op, tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestCastSourceTagMismatch(t *testing.T) {
	_, err := runCast(t, opcodes.OP_I2D, values.NewDouble(1))
	requirePanic(t, err, errors.PanicTypeMismatch)

	_, err = runCast(t, opcodes.OP_D2U, values.NewFloat(1))
	requirePanic(t, err, errors.PanicTypeMismatch)
}
