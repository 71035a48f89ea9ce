package vm

import (
	stderrors "errors"

	"github.com/wudi/stick/errors"
	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
)

// resolveCallable reads the Func behind a CALLABLE register. The payload
// is a function-table index written by callable patching; a slot that
// was never patched or registered is a dead callable.
func (vm *VM) resolveCallable(abs uint32) (*Func, error) {
	if err := vm.regs.RequireType(abs, values.TypeCallable); err != nil {
		return nil, errors.New(errors.PanicInvalidCallable, "register %d is not callable", abs)
	}
	index := vm.regs.payloads[abs]
	if index >= uint64(len(vm.funcs)) || vm.funcs[index] == nil {
		return nil, errors.New(errors.PanicInvalidCallable, "function table slot %d", index)
	}
	return vm.funcs[index], nil
}

// execCall handles CALL and TAILCALL: a is the callable register, b the
// argument count, c the caller-local register receiving the result.
// Arguments sit in the caller's registers a+1..a+argc and are copied into
// the first argc slots of the callee window, so the contract with the
// emitter does not depend on where the callable register was allocated.
func (vm *VM) execCall(ins opcodes.Instruction, tail bool) error {
	abs, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	argc := uint16(ins.B())

	fn, err := vm.resolveCallable(abs)
	if err != nil {
		return err
	}

	if argc != fn.Argc {
		return errors.New(errors.PanicCallFailed, "callable wants %d args, got %d", fn.Argc, argc)
	}
	if err := vm.regs.Ensure(abs + 1 + uint32(argc)); err != nil {
		return err
	}

	switch fn.Kind {
	case FuncNative:
		if fn.Native == nil {
			return errors.New(errors.PanicInvalidCallable, "native hook is nil")
		}
		dest, err := vm.absReg(ins.C())
		if err != nil {
			return err
		}
		if err := fn.Native(vm, abs+1, argc, dest); err != nil {
			var pe *errors.PanicError
			if stderrors.As(err, &pe) {
				return pe
			}
			return errors.New(errors.PanicCallFailed, "native: %v", err)
		}
		return nil

	case FuncBytecode:
		if fn.Argc > fn.Regc {
			return errors.New(errors.PanicCallFailed, "callable declares %d args in a %d register frame", fn.Argc, fn.Regc)
		}
		if tail {
			return vm.enterTail(fn, abs, argc)
		}
		return vm.enterCall(fn, abs, argc, ins.C())

	default:
		return errors.New(errors.PanicInvalidCallable, "unknown callable kind %d", fn.Kind)
	}
}

// enterCall pushes a fresh frame directly above the caller's window and
// jumps to the callee entry.
func (vm *VM) enterCall(fn *Func, callableAbs uint32, argc uint16, destReg byte) error {
	caller := vm.frames.current()
	newBase := uint32(caller.Base) + uint32(caller.Regc)
	if newBase >= MaxRegisters {
		return errors.New(errors.PanicRegLimit, "no window above register %d", newBase)
	}
	if err := vm.regs.Ensure(newBase + uint32(fn.Regc)); err != nil {
		return err
	}

	// Argument slots: caller a+1..a+argc become callee 0..argc-1. The
	// source range may run past the caller's window into the callee's,
	// so the copy uses the built-in copy, which handles overlap.
	src := callableAbs + 1
	n := uint32(argc)
	copy(vm.regs.types[newBase:newBase+n], vm.regs.types[src:src+n])
	copy(vm.regs.payloads[newBase:newBase+n], vm.regs.payloads[src:src+n])

	frame := Frame{
		Jump:   vm.ip,
		Base:   uint16(newBase),
		Regc:   fn.Regc,
		Reg:    uint16(destReg),
		Callee: fn,
	}
	if err := vm.frames.push(frame); err != nil {
		return err
	}
	vm.ip = fn.Entry
	return nil
}

// enterTail replaces the body of the current frame: same window base,
// same return linkage, new callee. Arguments slide down to the front of
// the window; the source range starts above the destination, so a
// forward copy is safe.
func (vm *VM) enterTail(fn *Func, callableAbs uint32, argc uint16) error {
	current := vm.frames.current()
	base := uint32(current.Base)
	if err := vm.regs.Ensure(base + uint32(fn.Regc)); err != nil {
		return err
	}

	for i := uint32(0); i < uint32(argc); i++ {
		vm.regs.types[base+i] = vm.regs.types[callableAbs+1+i]
		vm.regs.payloads[base+i] = vm.regs.payloads[callableAbs+1+i]
	}

	current.Regc = fn.Regc
	current.Callee = fn
	vm.ip = fn.Entry
	return nil
}

// execRet reads the return value from the frame-local register a, pops
// the frame, and lands the value in the slot the caller named at CALL
// time. Popping the entry frame ends execution successfully.
func (vm *VM) execRet(ins opcodes.Instruction) (bool, error) {
	current := vm.frames.current()
	abs := uint32(ins.A()) + uint32(current.Base)

	returned := values.NewNull()
	if abs < MaxRegisters {
		returned = vm.regs.Get(abs)
	}

	var popped Frame
	if err := vm.frames.pop(&popped); err != nil {
		return false, err
	}

	if vm.frames.depth() == 0 {
		vm.result = returned
		vm.retSet = true
		vm.ip = popped.Jump
		return true, nil
	}

	vm.ip = popped.Jump
	caller := vm.frames.current()
	dest := uint32(caller.Base) + uint32(popped.Reg)
	if err := vm.regs.Ensure(dest + 1); err != nil {
		return false, err
	}
	vm.regs.Set(dest, returned)
	return false, nil
}
