package vm

import "github.com/wudi/stick/values"

// FuncKind distinguishes callables that push a frame from callables that
// run inside the host.
type FuncKind int

const (
	FuncBytecode FuncKind = iota
	FuncNative
)

// NativeFn is a host function bound into the function table. argsBase is
// the absolute register index of the first argument; dest is the
// absolute register the result must be written to.
type NativeFn func(vm *VM, argsBase uint32, argc uint16, dest uint32) error

// Func describes one callable. Bytecode callables carry their entry
// point and frame geometry; native callables carry the host hook. Every
// Func is owned by the VM's function table, allocated during callable
// patching or RegisterNative.
type Func struct {
	Kind   FuncKind
	Entry  uint32 // bytecode: instruction index where the body starts
	Argc   uint16
	Regc   uint16 // bytecode: registers the call reserves
	Native NativeFn
}

func newBytecodeFunc(info values.FuncInfo) *Func {
	return &Func{
		Kind:  FuncBytecode,
		Entry: info.Entry,
		Argc:  info.Argc,
		Regc:  info.Regc,
	}
}
