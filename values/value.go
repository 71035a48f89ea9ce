package values

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueType is the tag byte of a runtime value. The numeric values are the
// wire tags stored in .stk containers and must not be reordered.
type ValueType byte

const (
	TypeNull ValueType = iota
	TypeBool
	TypeU64
	TypeI64
	TypeFloat
	TypeDouble
	TypeObject
	TypeCallable
)

// Size is the canonical at-rest footprint of one value: a tag byte
// followed by an 8-byte little-endian payload.
const Size = 9

// Value is the tag-plus-payload container passed by slot between
// registers, globals, and the constant pool. Payload semantics depend on
// the tag: integer bits for BOOL/U64/I64, IEEE-754 bits in the low 4
// bytes for FLOAT, IEEE-754 double bits for DOUBLE, an opaque heap
// pointer for OBJ, and a function-table index for CALLABLE once loaded.
type Value struct {
	Type    ValueType
	Payload uint64
}

func NewNull() Value {
	return Value{Type: TypeNull}
}

func NewBool(b bool) Value {
	v := Value{Type: TypeBool}
	if b {
		v.Payload = 1
	}
	return v
}

func NewU64(u uint64) Value {
	return Value{Type: TypeU64, Payload: u}
}

func NewI64(i int64) Value {
	return Value{Type: TypeI64, Payload: uint64(i)}
}

func NewFloat(f float32) Value {
	return Value{Type: TypeFloat, Payload: uint64(math.Float32bits(f))}
}

func NewDouble(d float64) Value {
	return Value{Type: TypeDouble, Payload: math.Float64bits(d)}
}

// NewObject wraps an opaque heap pointer owned by the external collector.
func NewObject(ptr uint64) Value {
	return Value{Type: TypeObject, Payload: ptr}
}

// NewCallable references a slot in the VM's function table.
func NewCallable(index uint32) Value {
	return Value{Type: TypeCallable, Payload: uint64(index)}
}

func (v Value) AsBool() bool      { return v.Payload != 0 }
func (v Value) AsU64() uint64     { return v.Payload }
func (v Value) AsI64() int64      { return int64(v.Payload) }
func (v Value) AsFloat() float32  { return math.Float32frombits(uint32(v.Payload)) }
func (v Value) AsDouble() float64 { return math.Float64frombits(v.Payload) }

func (v Value) IsNull() bool     { return v.Type == TypeNull }
func (v Value) IsCallable() bool { return v.Type == TypeCallable }

// Falsy reports whether the value fails the conditional-jump predicate:
// NUL is always falsy; BOOL/I64/U64 are falsy on zero payload bits; FLOAT
// and DOUBLE compare against +0.0 (so -0.0 is falsy too); OBJ is falsy
// only when the heap pointer is nil. CALLABLE is never falsy by value --
// a dead function-table slot is caught at the call site instead.
func (v Value) Falsy() bool {
	switch v.Type {
	case TypeNull:
		return true
	case TypeBool, TypeU64, TypeI64:
		return v.Payload == 0
	case TypeFloat:
		return v.AsFloat() == 0.0
	case TypeDouble:
		return v.AsDouble() == 0.0
	case TypeObject:
		return v.Payload == 0
	default:
		return false
	}
}

// Falsy applies the same predicate to a raw register slot given as a tag
// and a payload.
func Falsy(tag ValueType, payload uint64) bool {
	return Value{Type: tag, Payload: payload}.Falsy()
}

// Equal compares tag and payload bits. Two NaN doubles are equal under
// this comparison; it is a storage identity, not a numeric one.
func (v Value) Equal(other Value) bool {
	return v.Type == other.Type && v.Payload == other.Payload
}

// Decode reads one canonical 9-byte slot.
func Decode(b []byte) Value {
	return Value{
		Type:    ValueType(b[0]),
		Payload: binary.LittleEndian.Uint64(b[1:Size]),
	}
}

// Encode writes the canonical 9-byte representation into b.
func (v Value) Encode(b []byte) {
	b[0] = byte(v.Type)
	binary.LittleEndian.PutUint64(b[1:Size], v.Payload)
}

// FuncInfo is the at-rest payload of a CALLABLE constant: where the
// function starts and how much frame it needs.
type FuncInfo struct {
	Entry uint32
	Argc  uint16
	Regc  uint16
}

// DecodeFuncInfo unpacks entry_ip:u32 | argc:u16 | regc:u16 from a
// CALLABLE payload.
func DecodeFuncInfo(payload uint64) FuncInfo {
	return FuncInfo{
		Entry: uint32(payload),
		Argc:  uint16(payload >> 32),
		Regc:  uint16(payload >> 48),
	}
}

// EncodeFuncInfo packs the callable descriptor into its payload form.
func (fi FuncInfo) EncodeFuncInfo() uint64 {
	return uint64(fi.Entry) | uint64(fi.Argc)<<32 | uint64(fi.Regc)<<48
}

var typeNames = map[ValueType]string{
	TypeNull:     "NUL",
	TypeBool:     "BOOL",
	TypeU64:      "U64",
	TypeI64:      "I64",
	TypeFloat:    "FLOAT",
	TypeDouble:   "DOUBLE",
	TypeObject:   "OBJ",
	TypeCallable: "CALLABLE",
}

func (t ValueType) String() string {
	if name, exists := typeNames[t]; exists {
		return name
	}
	return fmt.Sprintf("TYPE(%d)", byte(t))
}

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "nul"
	case TypeBool:
		if v.Payload != 0 {
			return "true"
		}
		return "false"
	case TypeU64:
		return fmt.Sprintf("%du", v.Payload)
	case TypeI64:
		return fmt.Sprintf("%d", v.AsI64())
	case TypeFloat:
		return fmt.Sprintf("%gf", v.AsFloat())
	case TypeDouble:
		return fmt.Sprintf("%g", v.AsDouble())
	case TypeObject:
		return fmt.Sprintf("obj@%#x", v.Payload)
	case TypeCallable:
		return fmt.Sprintf("fn#%d", v.Payload)
	default:
		return fmt.Sprintf("%s(%#x)", v.Type, v.Payload)
	}
}
