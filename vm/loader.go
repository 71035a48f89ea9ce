package vm

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/wudi/stick/errors"
	"github.com/wudi/stick/opcodes"
	"github.com/wudi/stick/values"
	"github.com/wudi/stick/version"
)

// Magic opens every .stk container.
const Magic = "STIK"

const headerSize = 20

// LoadFile reads a compiled .stk container from disk. On any failure the
// VM keeps no partial state: only the panic code is observable.
func (vm *VM) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return vm.fail(errors.New(errors.PanicFile, "%v", err))
	}
	defer f.Close()
	return vm.LoadReader(bufio.NewReader(f))
}

// LoadReader parses the container from a stream. All sections are read
// into local storage first; the VM is populated only when every section
// validated, so a failing load is transactional.
func (vm *VM) LoadReader(r io.Reader) error {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		// a header short enough to be unreadable cannot prove its magic
		return vm.fail(errors.New(errors.PanicBadMagic, "short header"))
	}
	if string(header[0:4]) != Magic {
		return vm.fail(errors.New(errors.PanicBadMagic, "got %q", header[0:4]))
	}

	fileVersion := binary.LittleEndian.Uint16(header[4:6])
	_ = binary.LittleEndian.Uint16(header[6:8]) // flags, reserved
	icount := binary.LittleEndian.Uint32(header[8:12])
	ccount := binary.LittleEndian.Uint32(header[12:16])
	gcount := binary.LittleEndian.Uint32(header[16:20])

	if fileVersion > version.Runtime {
		return vm.fail(errors.New(errors.PanicUnsupportedVersion, "file version %d, runtime %d", fileVersion, version.Runtime))
	}
	if icount == 0 {
		return vm.fail(errors.New(errors.PanicEmptyProgram, ""))
	}
	if icount > math.MaxUint32/4 {
		return vm.fail(errors.New(errors.PanicProgramTooBig, "%d instructions", icount))
	}

	code, err := readCode(r, icount)
	if err != nil {
		return vm.fail(err)
	}
	consts, err := readValues(r, ccount, errors.PanicConstRead)
	if err != nil {
		return vm.fail(err)
	}
	globals, err := readValues(r, gcount, errors.PanicGlobalRead)
	if err != nil {
		return vm.fail(err)
	}

	return vm.Load(code, consts, globals)
}

func readCode(r io.Reader, icount uint32) ([]opcodes.Instruction, error) {
	buf := make([]byte, icount*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.New(errors.PanicTruncatedCode, "want %d instructions", icount)
	}
	code := make([]opcodes.Instruction, icount)
	for i := range code {
		code[i] = opcodes.DecodeWord(buf[i*4:])
	}
	return code, nil
}

func readValues(r io.Reader, count uint32, short errors.PanicCode) ([]values.Value, error) {
	if count == 0 {
		return nil, nil
	}
	buf := make([]byte, uint64(count)*values.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.New(short, "want %d values", count)
	}
	out := make([]values.Value, count)
	for i := range out {
		out[i] = values.Decode(buf[i*values.Size:])
	}
	return out, nil
}
