// Package cmd wires the uvm CLI's two subcommands (run, asm) on top of
// cobra/pflag. Every RunE returns an error instead of calling os.Exit
// directly; only main.go decides the process exit code.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the uvm root command with run and asm wired in.
// Errors and usage text are silenced here: RunE already returns every
// failure to main.go, which is the single place that prints it, so
// cobra's own "Error: ..." plus full usage dump would otherwise print
// alongside it on every ordinary runtime fault (division by zero, stack
// overflow, a bad label) and not just on CLI-usage mistakes.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "uvm",
		Short:         "uvm is an assembler and interpreter for the UVM register bytecode language",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newAsmCommand())

	return root
}
