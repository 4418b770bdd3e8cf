package vm

import (
	"fmt"
	"math"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"
)

// VM is the deterministic interpreter: a register file, an operand
// stack, a call stack, a comparison flag, and a read-only instruction
// stream. It is not safe for concurrent use — per spec, the dispatch
// loop is the sole mutator of all interpreter state.
type VM struct {
	cfg Config

	regs      []int64
	stack     []int64
	callStack []uint64
	code      []Atom

	pc  int
	sp  int
	csp int
	cmp int8

	captureOutput bool
	output        strings.Builder

	started    bool
	terminated bool
	err        error
}

// NewVM constructs a VM over code with a zero-initialized register file,
// stacks, pc, sp, csp and cmp, per spec's "created zero-initialized by
// the constructor" lifetime note.
func NewVM(cfg Config, code []Atom) *VM {
	return &VM{
		cfg:       cfg,
		regs:      make([]int64, cfg.NumRegisters),
		stack:     make([]int64, cfg.StackSize),
		callStack: make([]uint64, cfg.CallStackSize),
		code:      code,
	}
}

// SetCaptureOutput switches between immediate (print to stdout) and
// capture (buffer in memory) debug output modes. Must be called before
// the first Step.
func (m *VM) SetCaptureOutput(capture bool) { m.captureOutput = capture }

func (m *VM) Registers() []int64 {
	out := make([]int64, len(m.regs))
	copy(out, m.regs)
	return out
}

func (m *VM) RegistersAsFloats() []float64 {
	out := make([]float64, len(m.regs))
	for i, r := range m.regs {
		out[i] = math.Float64frombits(uint64(r))
	}
	return out
}

func (m *VM) PC() int          { return m.pc }
func (m *VM) SP() int          { return m.sp }
func (m *VM) CSP() int         { return m.csp }
func (m *VM) Cmp() int8        { return m.cmp }
func (m *VM) Code() []Atom     { return m.code }
func (m *VM) Terminated() bool { return m.terminated }
func (m *VM) Err() error       { return m.err }

// CapturedOutput returns everything appended to the in-memory buffer so
// far. Empty in immediate-output mode.
func (m *VM) CapturedOutput() string { return m.output.String() }

func (m *VM) fail(err error) error {
	m.terminated = true
	m.err = err
	return err
}

// Step executes a single instruction. It returns whether execution
// should continue (false on HALT or error) and any debug output line
// produced (without a trailing newline).
func (m *VM) Step() (bool, string, error) {
	if m.terminated {
		return false, "", m.err
	}
	m.started = true

	startPC := m.pc
	op, err := m.consumeOp()
	if err != nil {
		return false, "", m.fail(err)
	}
	log.Debugf("pc=%d op=%s", startPC, op)

	out, err := m.dispatch(op)
	if err != nil {
		return false, "", m.fail(err)
	}
	if op == HALT {
		m.terminated = true
		return false, out, nil
	}
	return true, out, nil
}

// Run executes instructions until HALT or a failure, disabling the
// garbage collector for the duration of the hot dispatch loop — the
// loop allocates nothing itself, so GC pauses mid-run only cost time
// without reclaiming anything.
func (m *VM) Run() (string, error) {
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	for {
		cont, _, err := m.Step()
		if err != nil {
			return m.CapturedOutput(), err
		}
		if !cont {
			return m.CapturedOutput(), nil
		}
	}
}

// ANSI color codes for the [DEBUG] prefixed lines, grounded on the original
// implementation's log_macros.rs. Color is only applied to immediate
// (non-captured) output so that captured output stays comparison-friendly.
const (
	ansiCyan  = "\x1b[36m"
	ansiReset = "\x1b[0m"
)

// maxInt64AsFloat is 2^63, the exact float64 representation nearest
// math.MaxInt64 (which itself has no exact float64 representation and
// rounds up to this value). CEIL/FLOR must reject v == maxInt64AsFloat,
// not just v > maxInt64AsFloat, or int64(v) silently overflows.
const maxInt64AsFloat = 9223372036854775808.0

func int64Representable(v float64) bool {
	return v < maxInt64AsFloat && v >= -maxInt64AsFloat
}

func (m *VM) emit(line string) string {
	full := "[DEBUG] " + line
	if m.captureOutput {
		m.output.WriteString(full)
		m.output.WriteByte('\n')
		return full
	}
	if m.cfg.Color {
		fmt.Println(ansiCyan + full + ansiReset)
	} else {
		fmt.Println(full)
	}
	return full
}

func (m *VM) dispatch(op OpCode) (string, error) {
	switch op {
	case HALT:
		return "", nil

	case SET:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] = x

	case SETF:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] = int64(math.Float64bits(f))

	case MOV:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] = m.regs[ra]

	case PUSH:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		if err := m.push(m.regs[rb]); err != nil {
			return "", err
		}

	case PUSHL:
		x, err := m.consumeInt(op)
		if err != nil {
			return "", err
		}
		if err := m.push(x); err != nil {
			return "", err
		}

	case POP:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		v, err := m.pop()
		if err != nil {
			return "", err
		}
		m.regs[rb] = v

	case PUSHRF:
		n, err := m.consumeInt(op)
		if err != nil {
			return "", err
		}
		return "", m.pushFrame(int(n))

	case POPRF:
		n, err := m.consumeInt(op)
		if err != nil {
			return "", err
		}
		return "", m.popFrame(int(n))

	case ADD:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] += m.regs[ra]
	case ADDL:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] += x
	case SUB:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] -= m.regs[ra]
	case SUBL:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] -= x
	case SUB2L:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] = x - m.regs[rb]
	case MUL:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] *= m.regs[ra]
	case MULL:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb] *= x
	case DIV:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		if m.regs[ra] == 0 {
			return "", m.runtimeErrf(ErrDivisionByZero, op)
		}
		m.regs[rb] /= m.regs[ra]
	case DIVL:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		if x == 0 {
			return "", m.runtimeErrf(ErrDivisionByZero, op)
		}
		m.regs[rb] /= x
	case DIV2L:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		if m.regs[rb] == 0 {
			return "", m.runtimeErrf(ErrDivisionByZero, op)
		}
		m.regs[rb] = x / m.regs[rb]
	case MOD:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		if m.regs[ra] == 0 {
			return "", m.runtimeErrf(ErrDivisionByZero, op)
		}
		m.regs[rb] %= m.regs[ra]
	case INC:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb]++
	case DEC:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		m.regs[rb]--

	case ADDF:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)+m.readF(ra))
	case ADDFL:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)+f)
	case SUBF:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)-m.readF(ra))
	case SUBFL:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)-f)
	case SUBF2L:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, f-m.readF(rb))
	case MULF:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)*m.readF(ra))
	case MULFL:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)*f)
	case DIVF:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)/m.readF(ra))
	case DIVFL:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, m.readF(rb)/f)
	case DIVF2L:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, f/m.readF(rb))
	case POW:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, math.Pow(m.readF(rb), m.readF(ra)))
	case POW2:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, math.Pow(m.readF(ra), m.readF(rb)))
	case POWL:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, math.Pow(m.readF(rb), f))
	case POW2L:
		f, rb, err := m.consumeRealReg(op)
		if err != nil {
			return "", err
		}
		m.writeF(rb, math.Pow(f, m.readF(rb)))
	case CEIL:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		v := math.Ceil(m.readF(rb))
		if !int64Representable(v) {
			return "", m.runtimeErrf(ErrCeilFloorOverflow, op)
		}
		m.regs[rb] = int64(v)
	case FLOR:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		v := math.Floor(m.readF(rb))
		if !int64Representable(v) {
			return "", m.runtimeErrf(ErrCeilFloorOverflow, op)
		}
		m.regs[rb] = int64(v)

	case CMP:
		ra, rb, err := m.consumeRegReg(op)
		if err != nil {
			return "", err
		}
		m.cmp = signOf(m.regs[rb] - m.regs[ra])
	case CMPL:
		x, rb, err := m.consumeIntReg(op)
		if err != nil {
			return "", err
		}
		m.cmp = signOf(m.regs[rb] - x)

	case JMP:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		m.pc = int(addr)
	case JEQ:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.cmp == 0 {
			m.pc = int(addr)
		}
	case JNE:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.cmp != 0 {
			m.pc = int(addr)
		}
	case JLT:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.cmp < 0 {
			m.pc = int(addr)
		}
	case JLE:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.cmp <= 0 {
			m.pc = int(addr)
		}
	case JGT:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.cmp > 0 {
			m.pc = int(addr)
		}
	case JGE:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.cmp >= 0 {
			m.pc = int(addr)
		}

	case CALL:
		addr, err := m.consumeAddr(op)
		if err != nil {
			return "", err
		}
		if m.csp >= len(m.callStack) {
			return "", m.runtimeErrf(ErrCallStackOverflow, op)
		}
		m.callStack[m.csp] = uint64(m.pc)
		m.csp++
		m.pc = int(addr)
	case RET:
		if m.csp == 0 {
			return "", m.runtimeErrf(ErrCallStackUnderflow, op)
		}
		m.csp--
		m.pc = int(m.callStack[m.csp])

	case DBGREG:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		return m.emit(fmt.Sprintf("r%d = %d", rb, m.regs[rb])), nil
	case DBGREGF:
		rb, err := m.consumeReg(op)
		if err != nil {
			return "", err
		}
		return m.emit(fmt.Sprintf("r%d = %v", rb, m.readF(rb))), nil
	case DBGREGS:
		return m.emit(fmt.Sprintf("regs = %v", m.regs)), nil

	default:
		return "", errors.Errorf("unhandled opcode %s at pc %d", op, m.pc)
	}

	return "", nil
}

func (m *VM) runtimeErrf(sentinel error, op OpCode) error {
	return errors.Wrapf(sentinel, "%s at pc %d", op, m.pc)
}

func (m *VM) readF(r uint8) float64   { return math.Float64frombits(uint64(m.regs[r])) }
func (m *VM) writeF(r uint8, v float64) { m.regs[r] = int64(math.Float64bits(v)) }

func signOf(v int64) int8 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (m *VM) push(v int64) error {
	if m.sp >= len(m.stack) {
		return errors.Wrapf(ErrStackOverflow, "at pc %d", m.pc)
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *VM) pop() (int64, error) {
	if m.sp == 0 {
		return 0, errors.Wrapf(ErrStackUnderflow, "at pc %d", m.pc)
	}
	m.sp--
	return m.stack[m.sp], nil
}

func (m *VM) pushFrame(n int) error {
	if n < 1 || n >= m.cfg.NumRegisters {
		return errors.Wrapf(ErrFrameSizeOutOfRange, "PUSHRF %d at pc %d (must be in [1, %d))", n, m.pc, m.cfg.NumRegisters)
	}
	// Matches the original source's PUSHRF bound exactly: sp+n reaching
	// StackSize (not just exceeding it) is already an overflow, one slot
	// more conservative than a plain PUSH would be.
	if m.sp+n >= len(m.stack) {
		return errors.Wrapf(ErrStackOverflow, "PUSHRF %d at pc %d", n, m.pc)
	}
	for i := 0; i < n; i++ {
		m.stack[m.sp+i] = m.regs[i]
	}
	m.sp += n
	return nil
}

func (m *VM) popFrame(n int) error {
	if n < 1 || n >= m.cfg.NumRegisters {
		return errors.Wrapf(ErrFrameSizeOutOfRange, "POPRF %d at pc %d (must be in [1, %d))", n, m.pc, m.cfg.NumRegisters)
	}
	if m.sp < n {
		return errors.Wrapf(ErrStackUnderflow, "POPRF %d at pc %d", n, m.pc)
	}
	m.sp -= n
	for i := 0; i < n; i++ {
		m.regs[i] = m.stack[m.sp+i]
	}
	return nil
}

// --- operand consumption helpers -------------------------------------

func (m *VM) consumeOp() (OpCode, error) {
	if m.pc >= len(m.code) {
		return 0, errors.Wrapf(ErrUnexpectedAtom, "expected an opcode but reached end of stream at pc %d", m.pc)
	}
	a := m.code[m.pc]
	if !a.IsOp() {
		return 0, errors.Wrapf(ErrUnexpectedAtom, "expected an opcode but got %s at pc %d", a, m.pc)
	}
	m.pc++
	return a.Op(), nil
}

func (m *VM) consumeReg(op OpCode) (uint8, error) {
	if m.pc >= len(m.code) || !m.code[m.pc].IsReg() {
		return 0, errors.Errorf("%s expected a register but got %s at pc %d", op, m.atomOrEOF(), m.pc)
	}
	r := m.code[m.pc].Reg()
	if int(r) >= m.cfg.NumRegisters {
		return 0, errors.Wrapf(ErrRegisterOutOfRange, "%s register r%d at pc %d", op, r, m.pc)
	}
	m.pc++
	return r, nil
}

func (m *VM) consumeInt(op OpCode) (int64, error) {
	if m.pc >= len(m.code) || !m.code[m.pc].IsInt() {
		return 0, errors.Errorf("%s expected an integer but got %s at pc %d", op, m.atomOrEOF(), m.pc)
	}
	v := m.code[m.pc].Int()
	m.pc++
	return v, nil
}

func (m *VM) consumeAddr(op OpCode) (uint64, error) {
	if m.pc >= len(m.code) || !m.code[m.pc].IsAddr() {
		return 0, errors.Errorf("%s expected an address but got %s at pc %d", op, m.atomOrEOF(), m.pc)
	}
	v := m.code[m.pc].Addr()
	m.pc++
	return v, nil
}

func (m *VM) consumeReal(op OpCode) (float64, error) {
	if m.pc >= len(m.code) || !m.code[m.pc].IsReal() {
		return 0, errors.Errorf("%s expected a real but got %s at pc %d", op, m.atomOrEOF(), m.pc)
	}
	v := m.code[m.pc].Real()
	m.pc++
	return v, nil
}

func (m *VM) consumeIntReg(op OpCode) (int64, uint8, error) {
	v, err := m.consumeInt(op)
	if err != nil {
		return 0, 0, err
	}
	r, err := m.consumeReg(op)
	if err != nil {
		return 0, 0, err
	}
	return v, r, nil
}

func (m *VM) consumeRegReg(op OpCode) (uint8, uint8, error) {
	r1, err := m.consumeReg(op)
	if err != nil {
		return 0, 0, err
	}
	r2, err := m.consumeReg(op)
	if err != nil {
		return 0, 0, err
	}
	return r1, r2, nil
}

func (m *VM) consumeRealReg(op OpCode) (float64, uint8, error) {
	v, err := m.consumeReal(op)
	if err != nil {
		return 0, 0, err
	}
	r, err := m.consumeReg(op)
	if err != nil {
		return 0, 0, err
	}
	return v, r, nil
}

func (m *VM) atomOrEOF() string {
	return atomOrEOF(m.code, m.pc)
}
