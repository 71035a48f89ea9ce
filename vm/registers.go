package vm

import (
	"github.com/wudi/stick/errors"
	"github.com/wudi/stick/values"
)

// Register-file geometry. Every frame carves its window out of one flat
// allocation, so these bound the whole machine, not a single call.
const (
	BaseRegisters = 16
	MaxRegisters  = 65536
)

// Registers is the flat register file shared by all frames. Tags and
// payloads live in parallel arrays so the payload array stays naturally
// 8-byte aligned and no per-value padding is paid.
type Registers struct {
	types    []byte
	payloads []uint64
}

func newRegisters() *Registers {
	return &Registers{
		types:    make([]byte, MaxRegisters),
		payloads: make([]uint64, MaxRegisters),
	}
}

// Ensure fails when a frame would need slots past the end of the file.
// The file itself is pre-sized, so success requires no allocation.
func (r *Registers) Ensure(need uint32) error {
	if need > MaxRegisters {
		return errors.New(errors.PanicRegLimit, "need %d registers, limit %d", need, MaxRegisters)
	}
	return nil
}

// RequireType checks the tag at an absolute index before a typed op
// touches the payload.
func (r *Registers) RequireType(idx uint32, want values.ValueType) error {
	if got := values.ValueType(r.types[idx]); got != want {
		return errors.New(errors.PanicTypeMismatch, "register %d holds %s, want %s", idx, got, want)
	}
	return nil
}

// Get reads the slot at an absolute index as a Value.
func (r *Registers) Get(idx uint32) values.Value {
	return values.Value{Type: values.ValueType(r.types[idx]), Payload: r.payloads[idx]}
}

// Set writes a Value into the slot at an absolute index.
func (r *Registers) Set(idx uint32, v values.Value) {
	r.types[idx] = byte(v.Type)
	r.payloads[idx] = v.Payload
}

func (r *Registers) clear(idx uint32) {
	r.types[idx] = 0
	r.payloads[idx] = 0
}
