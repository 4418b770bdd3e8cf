package vm

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebuggerStepAndRegs(t *testing.T) {
	cfg := DefaultConfig()
	code := mustAssemble(t, cfg, []string{
		"SET 9 r0",
		"HALT",
	})
	m := NewVM(cfg, code)
	var out bytes.Buffer
	dbg := NewDebugger(m, &out)

	err := dbg.Run(strings.NewReader("step\nregs\nexit\n"))
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, strings.Contains(out.String(), "r0 = 9"), "expected regs output to contain r0 = 9, got %q", out.String())
}

func TestDebuggerStackWithNoArgumentShowsWholeStack(t *testing.T) {
	cfg := DefaultConfig()
	code := mustAssemble(t, cfg, []string{
		"SET 10 r0",
		"SET 20 r1",
		"PUSH r0",
		"PUSH r1",
		"HALT",
	})
	m := NewVM(cfg, code)
	var out bytes.Buffer
	dbg := NewDebugger(m, &out)

	err := dbg.Run(strings.NewReader("step\nstep\nstep\nstep\nstack\nexit\n"))
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, strings.Contains(out.String(), "stack[1] = 20"), "expected stack[1] = 20 with no count argument, got %q", out.String())
	assert(t, strings.Contains(out.String(), "stack[0] = 10"), "expected stack[0] = 10 with no count argument, got %q", out.String())
}

func TestDebuggerBreakpointStopsPlay(t *testing.T) {
	cfg := DefaultConfig()
	code := mustAssemble(t, cfg, []string{
		"SET 1 r0",
		"INC r0",
		"INC r0",
		"HALT",
	})
	m := NewVM(cfg, code)
	var out bytes.Buffer
	dbg := NewDebugger(m, &out)

	// SET occupies addresses 0-2, the first INC 3-4, the second INC 5-6:
	// the breakpoint at 5 is the second INC's opcode address.
	err := dbg.Run(strings.NewReader("bp 5\nplay\nregs\nexit\n"))
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, strings.Contains(out.String(), "breakpoint hit at 5"), "expected a breakpoint hit message, got %q", out.String())
	assert(t, strings.Contains(out.String(), "r0 = 2"), "play should have stopped before the second INC, got %q", out.String())
}
