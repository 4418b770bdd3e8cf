package vm

import (
	"fmt"
	"strings"
)

// DisplayableCode renders each instruction in code as one string and
// returns, alongside it, the address→index and index→address maps the
// debugger's `code`/`c` command uses to show a window around pc.
//
// Mirrors the original source's displayable_code: given
// code = [SET, 0i, r1, ADD, r1, r2] it returns
// ["SET 0i r1", "ADD r1 r2"], {0:0, 3:1}, {0:0, 1:3}.
func DisplayableCode(code []Atom) ([]string, map[int]int, map[int]int) {
	var lines []string
	addrToIdx := make(map[int]int)
	idxToAddr := make(map[int]int)

	idx := 0
	for idx < len(code) {
		if !code[idx].IsOp() {
			lines = append(lines, fmt.Sprintf("<corrupt atom %s>", code[idx]))
			idx++
			continue
		}
		op := code[idx].Op()
		width := operandWidth(op.ArgType())

		parts := make([]string, 0, width+1)
		parts = append(parts, op.String())
		for i := 1; i <= width && idx+i < len(code); i++ {
			parts = append(parts, code[idx+i].String())
		}

		addrToIdx[idx] = len(lines)
		idxToAddr[len(lines)] = idx
		lines = append(lines, strings.Join(parts, " "))
		idx += width + 1
	}

	return lines, addrToIdx, idxToAddr
}

func operandWidth(t OpArgT) int {
	switch t {
	case ArgNil:
		return 0
	case ArgReg, ArgInt, ArgAddr:
		return 1
	default:
		return 2
	}
}

// DisplayCode prints the whole instruction stream as a boxed listing of
// the same rendered lines the debugger's `c`/`code` command shows a
// window of (the debugger's window is not boxed). The line label is the
// instruction's real stream address (what pc/JMP/CALL address), not its
// ordinal position.
func DisplayCode(code []Atom) {
	lines, _, idxToAddr := DisplayableCode(code)
	fmt.Println("Displaying loaded code below:")
	fmt.Println("┌ START")
	for i, line := range lines {
		fmt.Printf("│ %04d %s\n", idxToAddr[i], line)
	}
	fmt.Println("└ END")
}
