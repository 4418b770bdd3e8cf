package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"uvm/vm"
)

func newRunCommand() *cobra.Command {
	var (
		binary    bool
		batched   bool
		step      bool
		showDebug bool
	)

	cmd := &cobra.Command{
		Use:   "run <program_path>",
		Short: "Assemble (or load) and execute a UVM program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(args[0], binary, batched, step, showDebug)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&binary, "binary", "b", false, "load a binary produced by `uvm asm` instead of source text")
	flags.BoolVarP(&batched, "batched-output", "o", false, "buffer debug output and print it once after HALT")
	flags.BoolVarP(&step, "step", "s", false, "run under the interactive stepping debugger")
	flags.BoolVarP(&showDebug, "debug", "d", false, "pretty-print the instruction stream and trace each instruction as it executes")

	return cmd
}

func runProgram(path string, binary, batched, step, showDebug bool) error {
	cfg := vm.DefaultConfig()
	vm.SetDebugLogging(showDebug)

	var code []vm.Atom
	var err error
	if binary {
		code, err = vm.DisassembleFile(cfg, path)
	} else {
		code, err = vm.AssembleFile(cfg, path)
	}
	if err != nil {
		return err
	}

	if showDebug {
		vm.DisplayCode(code)
	}

	m := vm.NewVM(cfg, code)
	m.SetCaptureOutput(batched)

	if step {
		dbg := vm.NewDebugger(m, os.Stdout)
		return dbg.Run(os.Stdin)
	}

	captured, err := m.Run()
	if batched && captured != "" {
		fmt.Print(captured)
	}
	if err != nil {
		return err
	}
	return nil
}
