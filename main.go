package main

import (
	"fmt"
	"os"

	"uvm/cmd"
	"uvm/vm"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		if vm.DefaultConfig().Color {
			fmt.Printf("\x1b[31m[ERROR] %v\x1b[0m\n", err)
		} else {
			fmt.Println("[ERROR]", err)
		}
		os.Exit(1)
	}
}
