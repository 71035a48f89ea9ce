// Package stkfile emits .stk containers. Emitters and test harnesses use
// it to produce files the VM loader accepts; the layout is the loader's
// mirror image: a 20-byte little-endian header, packed instruction
// words, then 9-byte constant and global slots.
package stkfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
)

// Magic opens every container.
const Magic = "STIK"

// Program is one compilation unit ready to be serialized.
type Program struct {
	Version uint16
	Flags   uint16
	Code    []opcodes.Instruction
	Consts  []values.Value
	Globals []values.Value
}

// Callable builds the at-rest constant for a bytecode function, with its
// descriptor packed into the payload the way the loader expects.
func Callable(entry uint32, argc, regc uint16) values.Value {
	return values.Value{
		Type:    values.TypeCallable,
		Payload: values.FuncInfo{Entry: entry, Argc: argc, Regc: regc}.EncodeFuncInfo(),
	}
}

// Write serializes the program. An empty instruction stream is refused
// here rather than left for the loader to reject.
func (p *Program) Write(w io.Writer) error {
	if len(p.Code) == 0 {
		return fmt.Errorf("stkfile: refusing to write an empty program")
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(Magic)

	var u16 [2]byte
	var u32 [4]byte
	binary.LittleEndian.PutUint16(u16[:], p.Version)
	bw.Write(u16[:])
	binary.LittleEndian.PutUint16(u16[:], p.Flags)
	bw.Write(u16[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(len(p.Code)))
	bw.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(len(p.Consts)))
	bw.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], uint32(len(p.Globals)))
	bw.Write(u32[:])

	var word [4]byte
	for _, ins := range p.Code {
		ins.EncodeWord(word[:])
		bw.Write(word[:])
	}

	var slot [values.Size]byte
	for _, v := range p.Consts {
		v.Encode(slot[:])
		bw.Write(slot[:])
	}
	for _, v := range p.Globals {
		v.Encode(slot[:])
		bw.Write(slot[:])
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("stkfile: write: %w", err)
	}
	return nil
}

// WriteFile serializes the program to a file.
func (p *Program) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stkfile: create: %w", err)
	}
	if err := p.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stkfile: close: %w", err)
	}
	return nil
}
