package vm

import (
	"github.com/wudi/stick/errors"
	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
)

// The typed operation matrix. Every binop reads its operands from the
// frame-local registers b and c, requires both tags to match the op's
// domain, and writes register a with the domain tag (BOOL for compares).

// binopRegs resolves the three register operands of a binary op.
func (vm *VM) binopRegs(ins opcodes.Instruction) (dest, left, right uint32, err error) {
	if dest, err = vm.absReg(ins.A()); err != nil {
		return
	}
	if left, err = vm.absReg(ins.B()); err != nil {
		return
	}
	right, err = vm.absReg(ins.C())
	return
}

// readPair fetches both operand payloads after checking their tags
// against the op's domain.
func (vm *VM) readPair(left, right uint32, domain values.ValueType) (uint64, uint64, error) {
	if err := vm.regs.RequireType(left, domain); err != nil {
		return 0, 0, err
	}
	if err := vm.regs.RequireType(right, domain); err != nil {
		return 0, 0, err
	}
	return vm.regs.payloads[left], vm.regs.payloads[right], nil
}

func divisorZero(op opcodes.Opcode) error {
	return errors.New(errors.PanicTypeMismatch, "%s by zero", op)
}

func (vm *VM) execBinI64(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	lp, rp, err := vm.readPair(left, right, values.TypeI64)
	if err != nil {
		return err
	}
	l, r := int64(lp), int64(rp)

	var out int64
	switch ins.Op() {
	case opcodes.OP_ADD:
		out = l + r
	case opcodes.OP_SUB:
		out = l - r
	case opcodes.OP_MUL:
		out = l * r
	case opcodes.OP_DIV:
		if r == 0 {
			return divisorZero(ins.Op())
		}
		out = l / r
	case opcodes.OP_MOD:
		if r == 0 {
			return divisorZero(ins.Op())
		}
		out = l % r
	case opcodes.OP_AND:
		out = l & r
	case opcodes.OP_OR:
		out = l | r
	case opcodes.OP_XOR:
		out = l ^ r
	case opcodes.OP_SHL:
		out = l << (uint64(rp) & 63)
	case opcodes.OP_SHR:
		// logical shift of the bit pattern
		out = int64(uint64(lp) >> (uint64(rp) & 63))
	case opcodes.OP_SAR:
		out = l >> (uint64(rp) & 63)
	}
	vm.regs.Set(dest, values.NewI64(out))
	return nil
}

func (vm *VM) execCmpI64(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	lp, rp, err := vm.readPair(left, right, values.TypeI64)
	if err != nil {
		return err
	}
	l, r := int64(lp), int64(rp)

	var out bool
	switch ins.Op() {
	case opcodes.OP_EQ:
		out = l == r
	case opcodes.OP_NEQ:
		out = l != r
	case opcodes.OP_GT:
		out = l > r
	case opcodes.OP_GE:
		out = l >= r
	case opcodes.OP_LT:
		out = l < r
	case opcodes.OP_LE:
		out = l <= r
	}
	vm.regs.Set(dest, values.NewBool(out))
	return nil
}

func (vm *VM) execBinU64(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	l, r, err := vm.readPair(left, right, values.TypeU64)
	if err != nil {
		return err
	}

	var out uint64
	switch ins.Op() {
	case opcodes.OP_ADD_U:
		out = l + r
	case opcodes.OP_SUB_U:
		out = l - r
	case opcodes.OP_MUL_U:
		out = l * r
	case opcodes.OP_DIV_U:
		if r == 0 {
			return divisorZero(ins.Op())
		}
		out = l / r
	case opcodes.OP_MOD_U:
		if r == 0 {
			return divisorZero(ins.Op())
		}
		out = l % r
	case opcodes.OP_AND_U:
		out = l & r
	case opcodes.OP_OR_U:
		out = l | r
	case opcodes.OP_XOR_U:
		out = l ^ r
	case opcodes.OP_SHL_U:
		out = l << (r & 63)
	case opcodes.OP_SHR_U:
		out = l >> (r & 63)
	}
	vm.regs.Set(dest, values.NewU64(out))
	return nil
}

func (vm *VM) execCmpU64(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	l, r, err := vm.readPair(left, right, values.TypeU64)
	if err != nil {
		return err
	}

	var out bool
	switch ins.Op() {
	case opcodes.OP_EQ_U:
		out = l == r
	case opcodes.OP_NEQ_U:
		out = l != r
	case opcodes.OP_GT_U:
		out = l > r
	case opcodes.OP_GE_U:
		out = l >= r
	case opcodes.OP_LT_U:
		out = l < r
	case opcodes.OP_LE_U:
		out = l <= r
	}
	vm.regs.Set(dest, values.NewBool(out))
	return nil
}

func (vm *VM) execBinFloat(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	lp, rp, err := vm.readPair(left, right, values.TypeFloat)
	if err != nil {
		return err
	}
	l := values.Value{Type: values.TypeFloat, Payload: lp}.AsFloat()
	r := values.Value{Type: values.TypeFloat, Payload: rp}.AsFloat()

	var out float32
	switch ins.Op() {
	case opcodes.OP_ADD_F:
		out = l + r
	case opcodes.OP_SUB_F:
		out = l - r
	case opcodes.OP_MUL_F:
		out = l * r
	case opcodes.OP_DIV_F:
		// IEEE: divide by zero yields an infinity or NaN
		out = l / r
	}
	vm.regs.Set(dest, values.NewFloat(out))
	return nil
}

func (vm *VM) execCmpFloat(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	lp, rp, err := vm.readPair(left, right, values.TypeFloat)
	if err != nil {
		return err
	}
	l := values.Value{Type: values.TypeFloat, Payload: lp}.AsFloat()
	r := values.Value{Type: values.TypeFloat, Payload: rp}.AsFloat()

	var out bool
	switch ins.Op() {
	case opcodes.OP_EQ_F:
		out = l == r
	case opcodes.OP_NEQ_F:
		out = l != r
	case opcodes.OP_GT_F:
		out = l > r
	case opcodes.OP_GE_F:
		out = l >= r
	case opcodes.OP_LT_F:
		out = l < r
	case opcodes.OP_LE_F:
		out = l <= r
	}
	vm.regs.Set(dest, values.NewBool(out))
	return nil
}

func (vm *VM) execBinDouble(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	lp, rp, err := vm.readPair(left, right, values.TypeDouble)
	if err != nil {
		return err
	}
	l := values.Value{Type: values.TypeDouble, Payload: lp}.AsDouble()
	r := values.Value{Type: values.TypeDouble, Payload: rp}.AsDouble()

	var out float64
	switch ins.Op() {
	case opcodes.OP_ADD_D:
		out = l + r
	case opcodes.OP_SUB_D:
		out = l - r
	case opcodes.OP_MUL_D:
		out = l * r
	case opcodes.OP_DIV_D:
		out = l / r
	}
	vm.regs.Set(dest, values.NewDouble(out))
	return nil
}

func (vm *VM) execCmpDouble(ins opcodes.Instruction) error {
	dest, left, right, err := vm.binopRegs(ins)
	if err != nil {
		return err
	}
	lp, rp, err := vm.readPair(left, right, values.TypeDouble)
	if err != nil {
		return err
	}
	l := values.Value{Type: values.TypeDouble, Payload: lp}.AsDouble()
	r := values.Value{Type: values.TypeDouble, Payload: rp}.AsDouble()

	var out bool
	switch ins.Op() {
	case opcodes.OP_EQ_D:
		out = l == r
	case opcodes.OP_NEQ_D:
		out = l != r
	case opcodes.OP_GT_D:
		out = l > r
	case opcodes.OP_GE_D:
		out = l >= r
	case opcodes.OP_LT_D:
		out = l < r
	case opcodes.OP_LE_D:
		out = l <= r
	}
	vm.regs.Set(dest, values.NewBool(out))
	return nil
}

// execUnary negates or complements register a in place.
func (vm *VM) execUnary(ins opcodes.Instruction) error {
	abs, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}

	switch ins.Op() {
	case opcodes.OP_NEG:
		if err := vm.regs.RequireType(abs, values.TypeI64); err != nil {
			return err
		}
		vm.regs.payloads[abs] = uint64(-int64(vm.regs.payloads[abs]))
	case opcodes.OP_BNOT:
		if err := vm.regs.RequireType(abs, values.TypeI64); err != nil {
			return err
		}
		vm.regs.payloads[abs] = uint64(^int64(vm.regs.payloads[abs]))
	case opcodes.OP_NEG_U:
		if err := vm.regs.RequireType(abs, values.TypeU64); err != nil {
			return err
		}
		vm.regs.payloads[abs] = -vm.regs.payloads[abs]
	case opcodes.OP_BNOT_U:
		if err := vm.regs.RequireType(abs, values.TypeU64); err != nil {
			return err
		}
		vm.regs.payloads[abs] = ^vm.regs.payloads[abs]
	case opcodes.OP_NEG_F:
		if err := vm.regs.RequireType(abs, values.TypeFloat); err != nil {
			return err
		}
		f := vm.regs.Get(abs).AsFloat()
		vm.regs.Set(abs, values.NewFloat(-f))
	case opcodes.OP_NEG_D:
		if err := vm.regs.RequireType(abs, values.TypeDouble); err != nil {
			return err
		}
		d := vm.regs.Get(abs).AsDouble()
		vm.regs.Set(abs, values.NewDouble(-d))
	}
	return nil
}

// execLogicalNot flips a BOOL register in place; any other tag is a
// type mismatch.
func (vm *VM) execLogicalNot(ins opcodes.Instruction) error {
	abs, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	if err := vm.regs.RequireType(abs, values.TypeBool); err != nil {
		return err
	}
	if vm.regs.payloads[abs] == 0 {
		vm.regs.payloads[abs] = 1
	} else {
		vm.regs.payloads[abs] = 0
	}
	return nil
}
