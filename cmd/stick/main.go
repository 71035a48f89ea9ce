package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	stickerrors "github.com/wudi/stick/errors"
	"github.com/wudi/stick/pkg/tracestore"
	"github.com/wudi/stick/version"
	"github.com/wudi/stick/vm"
)

func main() {
	app := &cli.Command{
		Name:      "stick",
		Usage:     "A register bytecode virtual machine written in Go",
		ArgsUsage: "<program.stk>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "disasm",
				Local: true,
				Usage: "Print the loaded instruction stream instead of running",
			},
			&cli.StringFlag{
				Name:  "trace-db",
				Local: true,
				Usage: "Log every executed instruction into a SQLite database at <path>",
			},
			&cli.BoolFlag{
				Name:  "a",
				Local: true,
				Usage: "Run as interactive debugger",
			},
			&cli.StringFlag{
				Name:    "version",
				Local:   true,
				Aliases: []string{"v"},
				Usage:   "Show version",
				Action: func(ctx context.Context, cmd *cli.Command, s string) error {
					fmt.Println(version.Version())
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("provide a compiled .stk file to run", 1)
			}
			return execute(cmd.Args().First(), cmd.String("trace-db"), cmd.Bool("disasm"), cmd.Bool("a"))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		reportAndExit(err)
	}
}

// execute loads the container and either disassembles, debugs, or runs
// it to completion.
func execute(path, traceDB string, disasm, interactive bool) error {
	machine := vm.New()
	if err := machine.LoadFile(path); err != nil {
		return err
	}

	if disasm {
		for i, ins := range machine.Code() {
			fmt.Printf("%4d  0x%08X  %s\n", i, uint32(ins), ins)
		}
		return machine.Close()
	}

	if traceDB != "" {
		store, err := tracestore.Open(traceDB)
		if err != nil {
			return err
		}
		machine.SetTracer(store)
	}

	var err error
	if interactive {
		err = runDebugger(machine)
	} else {
		err = machine.Run()
	}

	// Close flushes the trace store; a run panic outranks a flush error.
	if cerr := machine.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// reportAndExit maps a failure onto the process contract: panics print a
// red diagnostic and exit with their code, anything else exits 1.
func reportAndExit(err error) {
	var pe *stickerrors.PanicError
	if errors.As(err, &pe) {
		code := pe.Code
		color.New(color.FgRed).Fprintf(os.Stderr, "[ERROR] Code %d: %s\n", uint32(code), code.Message())
		os.Exit(int(code))
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
