package vm

import "testing"

func TestAssembleBasicArithmetic(t *testing.T) {
	src := []string{
		"SET 10 r1",
		"SET 5 r2",
		"ADD r2 r1  // r1 = 15",
		"HALT",
	}
	code, err := Assemble(DefaultConfig(), "test.uvm", src)
	assert(t, err == nil, "unexpected error: %v", err)
	assert(t, len(code) == 3*3+1, "expected 10 atoms, got %d", len(code))
	assert(t, code[0].Op() == SET, "first atom should be SET")
}

func TestAssembleLabelsAndSublabels(t *testing.T) {
	src := []string{
		"SET 0 r0",
		"loop:",
		"  INC r0",
		"  CMPL 3 r0",
		"  JNE loop",
		"sub:",
		"  .inner:",
		"    JMP .inner",
		"HALT",
	}
	code, err := Assemble(DefaultConfig(), "test.uvm", src)
	assert(t, err == nil, "unexpected error: %v", err)

	// loop: sits at atom index 3 (after SET's 3-atom SET 0 r0); find the
	// JNE atom and confirm its address operand resolved back to it.
	var jneAddr Atom
	for i, a := range code {
		if a.IsOp() && a.Op() == JNE {
			jneAddr = code[i+1]
			break
		}
	}
	assert(t, jneAddr.IsAddr(), "expected JNE's operand to be an address")
	assert(t, jneAddr.Addr() == 3, "JNE should target address 3, got %d", jneAddr.Addr())
}

func TestAssembleUndefinedLabel(t *testing.T) {
	src := []string{"JMP nowhere", "HALT"}
	_, err := Assemble(DefaultConfig(), "test.uvm", src)
	assert(t, err != nil, "expected an error for an undefined label")
}

func TestAssembleDuplicateLabel(t *testing.T) {
	src := []string{"a:", "HALT", "a:", "HALT"}
	_, err := Assemble(DefaultConfig(), "test.uvm", src)
	assert(t, err != nil, "expected an error for a duplicate label")
}

func TestAssembleRegisterOutOfRange(t *testing.T) {
	src := []string{"SET 1 r99", "HALT"}
	_, err := Assemble(DefaultConfig(), "test.uvm", src)
	assert(t, err != nil, "expected an error for an out-of-range register")
}

func TestAssembleTrailingTokens(t *testing.T) {
	src := []string{"INC r0 r1", "HALT"}
	_, err := Assemble(DefaultConfig(), "test.uvm", src)
	assert(t, err != nil, "expected an error for trailing tokens after INC's operand")
}
