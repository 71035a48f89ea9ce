// Package vm implements the stick register machine: a flat register
// file carved into per-call windows, a growable frame stack, and a
// fetch-decode-execute loop over packed 32-bit instructions.
package vm

import (
	"github.com/wudi/stick/errors"
	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
)

// VM owns everything a loaded program needs: the instruction stream, the
// constant pool, globals, the function table, the register file, and the
// frame stack. A VM is populated exactly once by Load or LoadFile, driven
// by Run, and is not reusable across programs.
type VM struct {
	code    []opcodes.Instruction
	consts  []values.Value
	globals []values.Value
	funcs   []*Func

	regs   *Registers
	frames *frameStack

	ip        uint32
	panicCode errors.PanicCode

	started bool
	result  values.Value
	retSet  bool

	tracer Tracer
	seq    uint64
}

// New returns an empty VM with safe defaults. Load must run before Run.
func New() *VM {
	return &VM{
		regs:   newRegisters(),
		frames: newFrameStack(),
	}
}

// Load installs a compiled chunk. The VM takes ownership of all three
// slices; callers must not retain them. CALLABLE constants are patched
// into the function table, with their payloads rewritten to table
// indices.
func (vm *VM) Load(code []opcodes.Instruction, consts []values.Value, globals []values.Value) error {
	if len(code) == 0 {
		return vm.fail(errors.New(errors.PanicEmptyProgram, ""))
	}
	vm.code = code
	vm.consts = consts
	vm.globals = globals
	vm.ip = 0
	vm.panicCode = errors.NoError
	vm.patchCallables()
	return nil
}

// patchCallables resolves every CALLABLE constant once at load time so
// the call site pays a table lookup instead of a decode. The table is
// aligned with const-pool indices and owned by the VM, so teardown can
// release it even if the pool is later trimmed.
func (vm *VM) patchCallables() {
	vm.funcs = make([]*Func, len(vm.consts))
	for i, c := range vm.consts {
		if c.Type != values.TypeCallable {
			continue
		}
		vm.funcs[i] = newBytecodeFunc(values.DecodeFuncInfo(c.Payload))
		vm.consts[i].Payload = uint64(i)
	}
}

// RegisterNative binds a host function into the function-table slot of a
// CALLABLE constant. The emitter and the host agree on slot indices; the
// loader has already allocated the slot during patching.
func (vm *VM) RegisterNative(index uint32, fn NativeFn, argc uint16) error {
	if index >= uint32(len(vm.funcs)) || vm.funcs[index] == nil {
		return errors.New(errors.PanicInvalidCallable, "const slot %d is not callable", index)
	}
	vm.funcs[index] = &Func{Kind: FuncNative, Argc: argc, Native: fn}
	return nil
}

// SetTracer installs a per-instruction tracer. Pass nil to disable.
func (vm *VM) SetTracer(t Tracer) {
	vm.tracer = t
}

// PanicCode reports the frozen error state, NoError while healthy.
func (vm *VM) PanicCode() errors.PanicCode {
	return vm.panicCode
}

// Result returns the value a RET delivered off the entry frame, if any.
func (vm *VM) Result() (values.Value, bool) {
	return vm.result, vm.retSet
}

// Register exposes one absolute register slot, for hosts and tests.
func (vm *VM) Register(idx uint32) values.Value {
	return vm.regs.Get(idx)
}

// SetRegister writes an absolute register slot. Native callables use it
// to deliver their result into the destination register.
func (vm *VM) SetRegister(idx uint32, v values.Value) error {
	if err := vm.regs.Ensure(idx + 1); err != nil {
		return err
	}
	vm.regs.Set(idx, v)
	return nil
}

// Global exposes one global slot.
func (vm *VM) Global(idx uint32) values.Value {
	return vm.globals[idx]
}

// IP reports the index of the next instruction to fetch.
func (vm *VM) IP() uint32 {
	return vm.ip
}

// Code exposes the loaded instruction stream for disassembly. Callers
// must not mutate it.
func (vm *VM) Code() []opcodes.Instruction {
	return vm.code
}

// Frames returns a copy of the active call frames, bottom first.
func (vm *VM) Frames() []Frame {
	out := make([]Frame, len(vm.frames.frames))
	copy(out, vm.frames.frames)
	return out
}

// Roots walks every live OBJ payload -- active register windows and
// globals -- so an external collector can treat the VM as a root source.
func (vm *VM) Roots(visit func(ptr uint64)) {
	for _, frame := range vm.frames.frames {
		top := uint32(frame.Base) + uint32(frame.Regc)
		for i := uint32(frame.Base); i < top; i++ {
			if values.ValueType(vm.regs.types[i]) == values.TypeObject && vm.regs.payloads[i] != 0 {
				visit(vm.regs.payloads[i])
			}
		}
	}
	for _, g := range vm.globals {
		if g.Type == values.TypeObject && g.Payload != 0 {
			visit(g.Payload)
		}
	}
}

// Close releases the VM's owned state and shuts the tracer down. The VM
// must not run afterwards.
func (vm *VM) Close() error {
	vm.code = nil
	vm.consts = nil
	vm.globals = nil
	vm.funcs = nil
	vm.regs = nil
	vm.frames = nil
	if vm.tracer != nil {
		err := vm.tracer.Close()
		vm.tracer = nil
		return err
	}
	return nil
}

// Start readies execution: reserves the base register window and pushes
// the entry frame, whose Jump marks the end of the stream so a RET off
// it terminates cleanly.
func (vm *VM) Start() error {
	if len(vm.code) == 0 {
		return vm.fail(errors.New(errors.PanicEmptyProgram, "no program loaded"))
	}
	vm.panicCode = errors.NoError
	if err := vm.regs.Ensure(BaseRegisters); err != nil {
		return vm.fail(err)
	}
	entry := Frame{
		Jump: uint32(len(vm.code)),
		Base: 0,
		Regc: BaseRegisters,
	}
	if err := vm.frames.push(entry); err != nil {
		return vm.fail(err)
	}
	vm.started = true
	return nil
}

// Run executes until HALT, a RET off the entry frame, or a panic. On
// failure the returned error carries the panic code and the VM stays
// frozen with the same code set.
func (vm *VM) Run() error {
	if !vm.started {
		if err := vm.Start(); err != nil {
			return err
		}
	}
	for {
		done, err := vm.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Step fetches, decodes, and executes a single instruction. It reports
// done=true on clean termination. Errors freeze the VM.
func (vm *VM) Step() (bool, error) {
	if vm.ip >= uint32(len(vm.code)) {
		return false, vm.fail(errors.New(errors.PanicNoHalt, "ip %d past end of stream", vm.ip))
	}
	ins := vm.code[vm.ip]
	vm.ip++

	if vm.tracer != nil {
		vm.seq++
		vm.tracer.Trace(vm.seq, vm.ip-1, ins, vm.frames.depth())
	}

	done, err := vm.execute(ins)
	if err != nil {
		return false, vm.fail(err)
	}
	return done, nil
}

func (vm *VM) fail(err error) error {
	vm.panicCode = errors.CodeOf(err)
	return err
}

func (vm *VM) execute(ins opcodes.Instruction) (bool, error) {
	switch ins.Op() {
	case opcodes.OP_HALT:
		return true, nil

	case opcodes.OP_PANIC:
		return false, &errors.PanicError{Code: errors.PanicCode(ins.A())}

	case opcodes.OP_JMP:
		return false, vm.jumpRel(ins.Simm24())

	case opcodes.OP_JMPIF:
		return false, vm.execCondJump(ins, false)

	case opcodes.OP_JMPIFZ:
		return false, vm.execCondJump(ins, true)

	case opcodes.OP_COPY:
		return false, vm.execCopy(ins, false)

	case opcodes.OP_MOVE:
		return false, vm.execCopy(ins, true)

	case opcodes.OP_LOADI:
		return false, vm.execLoadI(ins)

	case opcodes.OP_LOADC:
		return false, vm.execLoadC(ins)

	case opcodes.OP_LOADG:
		return false, vm.execLoadG(ins)

	case opcodes.OP_STOREG:
		return false, vm.execStoreG(ins)

	case opcodes.OP_CALL:
		return false, vm.execCall(ins, false)

	case opcodes.OP_TAILCALL:
		return false, vm.execCall(ins, true)

	case opcodes.OP_RET:
		return vm.execRet(ins)

	case opcodes.OP_AND, opcodes.OP_OR, opcodes.OP_XOR, opcodes.OP_SHL, opcodes.OP_SHR, opcodes.OP_SAR,
		opcodes.OP_ADD, opcodes.OP_SUB, opcodes.OP_MUL, opcodes.OP_DIV, opcodes.OP_MOD:
		return false, vm.execBinI64(ins)

	case opcodes.OP_EQ, opcodes.OP_NEQ, opcodes.OP_GT, opcodes.OP_GE, opcodes.OP_LT, opcodes.OP_LE:
		return false, vm.execCmpI64(ins)

	case opcodes.OP_ADD_U, opcodes.OP_SUB_U, opcodes.OP_MUL_U, opcodes.OP_DIV_U, opcodes.OP_MOD_U,
		opcodes.OP_AND_U, opcodes.OP_OR_U, opcodes.OP_XOR_U, opcodes.OP_SHL_U, opcodes.OP_SHR_U:
		return false, vm.execBinU64(ins)

	case opcodes.OP_EQ_U, opcodes.OP_NEQ_U, opcodes.OP_GT_U, opcodes.OP_GE_U, opcodes.OP_LT_U, opcodes.OP_LE_U:
		return false, vm.execCmpU64(ins)

	case opcodes.OP_ADD_F, opcodes.OP_SUB_F, opcodes.OP_MUL_F, opcodes.OP_DIV_F:
		return false, vm.execBinFloat(ins)

	case opcodes.OP_EQ_F, opcodes.OP_NEQ_F, opcodes.OP_GT_F, opcodes.OP_GE_F, opcodes.OP_LT_F, opcodes.OP_LE_F:
		return false, vm.execCmpFloat(ins)

	case opcodes.OP_ADD_D, opcodes.OP_SUB_D, opcodes.OP_MUL_D, opcodes.OP_DIV_D:
		return false, vm.execBinDouble(ins)

	case opcodes.OP_EQ_D, opcodes.OP_NEQ_D, opcodes.OP_GT_D, opcodes.OP_GE_D, opcodes.OP_LT_D, opcodes.OP_LE_D:
		return false, vm.execCmpDouble(ins)

	case opcodes.OP_NEG, opcodes.OP_BNOT, opcodes.OP_NEG_U, opcodes.OP_BNOT_U,
		opcodes.OP_NEG_F, opcodes.OP_NEG_D:
		return false, vm.execUnary(ins)

	case opcodes.OP_LNOT:
		return false, vm.execLogicalNot(ins)

	case opcodes.OP_I2D, opcodes.OP_I2F, opcodes.OP_D2I, opcodes.OP_F2I, opcodes.OP_I2U,
		opcodes.OP_U2I, opcodes.OP_U2D, opcodes.OP_U2F, opcodes.OP_D2U, opcodes.OP_F2U:
		return false, vm.execCast(ins)

	default:
		return false, errors.New(errors.PanicInvalidOpcode, "opcode %d at ip %d", byte(ins.Op()), vm.ip-1)
	}
}

// absReg translates a frame-local register index to an absolute one and
// checks it stays inside the file.
func (vm *VM) absReg(local byte) (uint32, error) {
	abs := uint32(local) + uint32(vm.frames.current().Base)
	if err := vm.regs.Ensure(abs + 1); err != nil {
		return 0, err
	}
	return abs, nil
}

// jumpRel moves the IP by a signed offset relative to the instruction
// already fetched. Landing outside the stream panics.
func (vm *VM) jumpRel(off int32) error {
	next := int64(vm.ip) + int64(off)
	if next < 0 || next >= int64(len(vm.code)) {
		return errors.New(errors.PanicOOB, "jump to %d, stream length %d", next, len(vm.code))
	}
	vm.ip = uint32(next)
	return nil
}

func (vm *VM) execCondJump(ins opcodes.Instruction, whenFalsy bool) error {
	src, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	falsy := values.Falsy(values.ValueType(vm.regs.types[src]), vm.regs.payloads[src])
	if falsy == whenFalsy {
		return vm.jumpRel(ins.Simm16())
	}
	return nil
}

func (vm *VM) execCopy(ins opcodes.Instruction, nullSource bool) error {
	dest, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	src, err := vm.absReg(ins.B())
	if err != nil {
		return err
	}
	vm.regs.types[dest] = vm.regs.types[src]
	vm.regs.payloads[dest] = vm.regs.payloads[src]
	if nullSource {
		vm.regs.clear(src)
	}
	return nil
}

func (vm *VM) execLoadI(ins opcodes.Instruction) error {
	dest, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	vm.regs.Set(dest, values.NewI64(int64(ins.Simm16())))
	return nil
}

func (vm *VM) execLoadC(ins opcodes.Instruction) error {
	index := uint32(ins.B())
	if index >= uint32(len(vm.consts)) {
		return errors.New(errors.PanicOOB, "constant %d, pool size %d", index, len(vm.consts))
	}
	dest, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	vm.regs.Set(dest, vm.consts[index])
	return nil
}

func (vm *VM) execLoadG(ins opcodes.Instruction) error {
	index := uint32(ins.B())
	if index >= uint32(len(vm.globals)) {
		return errors.New(errors.PanicOOB, "global %d, table size %d", index, len(vm.globals))
	}
	dest, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	vm.regs.Set(dest, vm.globals[index])
	return nil
}

func (vm *VM) execStoreG(ins opcodes.Instruction) error {
	index := uint32(ins.B())
	if index >= uint32(len(vm.globals)) {
		return errors.New(errors.PanicOOB, "global %d, table size %d", index, len(vm.globals))
	}
	src, err := vm.absReg(ins.A())
	if err != nil {
		return err
	}
	vm.globals[index] = vm.regs.Get(src)
	return nil
}
