package vm

import "testing"

func TestDisplayableCode(t *testing.T) {
	code := mustAssemble(t, DefaultConfig(), []string{
		"SET 0 r1",
		"ADD r1 r2",
		"HALT",
	})
	lines, addrToIdx, idxToAddr := DisplayableCode(code)
	assert(t, len(lines) == 3, "expected 3 rendered lines, got %d", len(lines))
	assert(t, lines[0] == "SET 0i r1", "lines[0] = %q, want %q", lines[0], "SET 0i r1")
	assert(t, lines[1] == "ADD r1 r2", "lines[1] = %q, want %q", lines[1], "ADD r1 r2")
	assert(t, lines[2] == "HALT", "lines[2] = %q, want %q", lines[2], "HALT")

	assert(t, addrToIdx[0] == 0, "SET's address should map to line index 0")
	assert(t, addrToIdx[3] == 1, "ADD's address should map to line index 1")
	assert(t, idxToAddr[1] == 3, "line index 1 should map back to address 3")
}
