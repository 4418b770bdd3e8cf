package cmd

import (
	"github.com/spf13/cobra"

	"uvm/vm"
)

func newAsmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asm <input_path> <output_path>",
		Short: "Assemble a UVM source file into a versioned binary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := vm.DefaultConfig()
			return vm.AssembleToFile(cfg, args[0], args[1])
		},
	}
	return cmd
}
