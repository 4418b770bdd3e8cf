package vm

import "testing"

func assert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func TestOpCodeRoundTrip(t *testing.T) {
	for op := OpCode(0); op < numOpCodes; op++ {
		name := op.String()
		assert(t, name != "UNKNOWN", "opcode %d has no name", op)

		got, ok := ParseOpCode(name)
		assert(t, ok, "ParseOpCode(%q) failed to find %d back", name, op)
		assert(t, got == op, "ParseOpCode(%q) = %d, want %d", name, got, op)
	}
}

func TestOpCodeInvalid(t *testing.T) {
	assert(t, !OpCode(numOpCodes).IsValid(), "numOpCodes sentinel must not be valid")
	_, ok := ParseOpCode("NOSUCHOP")
	assert(t, !ok, "ParseOpCode should fail on an unknown mnemonic")
}

func TestArgTypeCoverage(t *testing.T) {
	// Every opcode must have an explicit entry in opArgTypes; a missing
	// entry would silently default to ArgNil, which this test catches
	// for opcodes we know take operands.
	wantReg := []OpCode{PUSH, POP, INC, DEC, CEIL, FLOR, DBGREG, DBGREGF}
	for _, op := range wantReg {
		assert(t, op.ArgType() == ArgReg, "%s should have ArgReg, got %v", op, op.ArgType())
	}

	wantIntReg := []OpCode{SET, ADDL, SUBL, SUB2L, MULL, DIVL, DIV2L, CMPL}
	for _, op := range wantIntReg {
		assert(t, op.ArgType() == ArgIntReg, "%s should have ArgIntReg, got %v", op, op.ArgType())
	}

	wantRegReg := []OpCode{MOV, ADD, SUB, MUL, DIV, MOD, ADDF, SUBF, MULF, DIVF, POW, POW2, CMP}
	for _, op := range wantRegReg {
		assert(t, op.ArgType() == ArgRegReg, "%s should have ArgRegReg, got %v", op, op.ArgType())
	}

	wantRealReg := []OpCode{SETF, ADDFL, SUBFL, SUBF2L, MULFL, DIVFL, DIVF2L, POWL, POW2L}
	for _, op := range wantRealReg {
		assert(t, op.ArgType() == ArgRealReg, "%s should have ArgRealReg, got %v", op, op.ArgType())
	}

	wantInt := []OpCode{PUSHL, PUSHRF, POPRF}
	for _, op := range wantInt {
		assert(t, op.ArgType() == ArgInt, "%s should have ArgInt, got %v", op, op.ArgType())
	}

	wantAddr := []OpCode{JMP, JEQ, JNE, JLT, JLE, JGT, JGE, CALL}
	for _, op := range wantAddr {
		assert(t, op.ArgType() == ArgAddr, "%s should have ArgAddr, got %v", op, op.ArgType())
	}

	wantNil := []OpCode{HALT, RET, DBGREGS}
	for _, op := range wantNil {
		assert(t, op.ArgType() == ArgNil, "%s should have ArgNil, got %v", op, op.ArgType())
	}
}
