package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/wudi/stick/vm"
)

const debugHelp = `Commands:
  s, step          execute one instruction
  c, continue      run until a breakpoint, termination, or panic
  b <ip>           toggle a breakpoint at an instruction index
  regs [n]         print the first n registers of the current frame (default 8)
  frames           print the active call frames
  list             disassemble around the current instruction
  q, quit          leave the debugger`

// runDebugger drives the VM one instruction at a time from a readline
// shell. Panics leave the machine frozen but the shell alive, so its
// registers can still be inspected.
func runDebugger(machine *vm.VM) error {
	rl, err := readline.New("(stick) ")
	if err != nil {
		return err
	}
	defer rl.Close()

	if err := machine.Start(); err != nil {
		return err
	}

	breakpoints := make(map[uint32]struct{})
	finished := false

	fmt.Println("stick debugger, type 'help' for commands")
	printLocation(machine)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			fmt.Println(debugHelp)

		case "s", "step":
			if finished {
				fmt.Println("execution finished")
				continue
			}
			finished = stepOnce(machine)

		case "c", "continue":
			for !finished {
				finished = stepOnce(machine)
				if _, hit := breakpoints[machine.IP()]; hit && !finished {
					fmt.Printf("breakpoint at %d\n", machine.IP())
					printLocation(machine)
					break
				}
			}

		case "b":
			if len(fields) < 2 {
				fmt.Println("usage: b <ip>")
				continue
			}
			ip, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				fmt.Printf("bad instruction index %q\n", fields[1])
				continue
			}
			target := uint32(ip)
			if _, ok := breakpoints[target]; ok {
				delete(breakpoints, target)
				fmt.Printf("breakpoint at %d cleared\n", target)
			} else {
				breakpoints[target] = struct{}{}
				fmt.Printf("breakpoint at %d set\n", target)
			}

		case "regs":
			n := 8
			if len(fields) > 1 {
				if parsed, err := strconv.Atoi(fields[1]); err == nil && parsed > 0 {
					n = parsed
				}
			}
			printRegisters(machine, n)

		case "frames":
			for i, frame := range machine.Frames() {
				name := "entry"
				if frame.Callee != nil {
					name = fmt.Sprintf("fn@%d", frame.Callee.Entry)
				}
				fmt.Printf("#%d %s base=%d regc=%d jump=%d\n", i, name, frame.Base, frame.Regc, frame.Jump)
			}

		case "list":
			listAround(machine)

		case "q", "quit":
			return nil

		default:
			fmt.Printf("unknown command %q, type 'help'\n", fields[0])
		}
	}
}

// stepOnce executes one instruction and reports whether execution is
// over, either cleanly or by panic.
func stepOnce(machine *vm.VM) bool {
	done, err := machine.Step()
	if err != nil {
		fmt.Printf("panic: %v\n", err)
		return true
	}
	if done {
		fmt.Println("program terminated")
		return true
	}
	printLocation(machine)
	return false
}

func printLocation(machine *vm.VM) {
	code := machine.Code()
	ip := machine.IP()
	if ip < uint32(len(code)) {
		fmt.Printf("=> %4d  %s\n", ip, code[ip])
	}
}

func printRegisters(machine *vm.VM, n int) {
	frames := machine.Frames()
	if len(frames) == 0 {
		fmt.Println("no active frame")
		return
	}
	top := frames[len(frames)-1]
	for i := 0; i < n && i < int(top.Regc); i++ {
		v := machine.Register(uint32(top.Base) + uint32(i))
		fmt.Printf("r%-3d %s = %s\n", i, v.Type, v)
	}
}

func listAround(machine *vm.VM) {
	code := machine.Code()
	ip := int(machine.IP())
	start := ip - 4
	if start < 0 {
		start = 0
	}
	end := ip + 5
	if end > len(code) {
		end = len(code)
	}
	for i := start; i < end; i++ {
		marker := "  "
		if i == ip {
			marker = "=>"
		}
		fmt.Printf("%s %4d  0x%08X  %s\n", marker, i, uint32(code[i]), code[i])
	}
}
