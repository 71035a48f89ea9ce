package vm

import (
	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
)

// execCast converts register b into register a. The source tag must
// match the cast's source domain; float-to-int truncates, int-to-int
// reinterprets the bits.
func (vm *VM) execCast(ins opcodes.Instruction) error {
	dest, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	src, err := vm.absReg(ins.B())
	if err != nil {
		return err
	}

	var from values.ValueType
	switch ins.Op() {
	case opcodes.OP_I2D, opcodes.OP_I2F, opcodes.OP_I2U:
		from = values.TypeI64
	case opcodes.OP_U2I, opcodes.OP_U2D, opcodes.OP_U2F:
		from = values.TypeU64
	case opcodes.OP_D2I, opcodes.OP_D2U:
		from = values.TypeDouble
	case opcodes.OP_F2I, opcodes.OP_F2U:
		from = values.TypeFloat
	}
	if err := vm.regs.RequireType(src, from); err != nil {
		return err
	}

	in := vm.regs.Get(src)
	var out values.Value
	switch ins.Op() {
	case opcodes.OP_I2D:
		out = values.NewDouble(float64(in.AsI64()))
	case opcodes.OP_I2F:
		out = values.NewFloat(float32(in.AsI64()))
	case opcodes.OP_D2I:
		out = values.NewI64(int64(in.AsDouble()))
	case opcodes.OP_F2I:
		out = values.NewI64(int64(in.AsFloat()))
	case opcodes.OP_I2U:
		out = values.NewU64(uint64(in.AsI64()))
	case opcodes.OP_U2I:
		out = values.NewI64(int64(in.AsU64()))
	case opcodes.OP_U2D:
		out = values.NewDouble(float64(in.AsU64()))
	case opcodes.OP_U2F:
		out = values.NewFloat(float32(in.AsU64()))
	case opcodes.OP_D2U:
		out = values.NewU64(uint64(in.AsDouble()))
	case opcodes.OP_F2U:
		out = values.NewU64(uint64(in.AsFloat()))
	}
	vm.regs.Set(dest, out)
	return nil
}
