package vm

import "testing"

func TestAtomString(t *testing.T) {
	cases := []struct {
		atom Atom
		want string
	}{
		{OpAtom(SET), "SET"},
		{RegAtom(3), "r3"},
		{IntAtom(42), "42i"},
		{AddrAtom(7), "addr(7)"},
		{RealAtom(3.14), "3.14f"},
	}
	for _, c := range cases {
		assert(t, c.atom.String() == c.want, "String() = %q, want %q", c.atom.String(), c.want)
	}
}

func TestAtomPredicates(t *testing.T) {
	a := RegAtom(5)
	assert(t, a.IsReg(), "RegAtom should report IsReg")
	assert(t, !a.IsInt(), "RegAtom should not report IsInt")
	assert(t, a.Reg() == 5, "Reg() = %d, want 5", a.Reg())
}
