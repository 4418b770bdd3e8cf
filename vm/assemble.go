package vm

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetDebugLogging raises or lowers the package logger's level. The CLI's
// -d/--debug flag calls this to turn on per-instruction tracing from the
// interpreter's dispatch loop and the assembler's summary lines; library
// callers that never call it get logrus's default InfoLevel.
func SetDebugLogging(enabled bool) {
	if enabled {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// comments strips a trailing "// ..." comment from a line. Text before
// the first // is significant after trimming.
var comments = regexp.MustCompile(`//.*`)

// labelRef is a pending Addr atom waiting for its target label to be
// resolved once the whole stream has been emitted.
type labelRef struct {
	index    int
	name     string
	filename string
	line     int
}

// asmState carries everything the two assembler passes need.
type asmState struct {
	cfg           Config
	filename      string
	code          []Atom
	labelAddrs    map[string]int
	labelRefs     []labelRef
	currentParent string
}

// AssembleFile reads path and assembles it with cfg's register bound in
// effect.
func AssembleFile(cfg Config, path string) ([]Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	return Assemble(cfg, path, lines)
}

// Assemble parses source lines into an instruction stream. filename is
// used purely for error reporting (<filename>.<lineno>: ...).
func Assemble(cfg Config, filename string, lines []string) ([]Atom, error) {
	st := &asmState{
		cfg:        cfg,
		filename:   filename,
		labelAddrs: make(map[string]int),
	}

	for i, raw := range lines {
		if err := st.processLine(raw, i+1); err != nil {
			return nil, err
		}
	}

	for _, ref := range st.labelRefs {
		addr, ok := st.labelAddrs[ref.name]
		if !ok {
			return nil, errors.Wrapf(ErrUndefinedLabel,
				"%s.%d: reference to label %q found but it's not defined", ref.filename, ref.line, ref.name)
		}
		st.code[ref.index] = AddrAtom(uint64(addr))
	}

	log.Debugf("assembled %d atoms from %s", len(st.code), filename)
	if len(st.code) == 0 {
		log.Warn("assembled an empty instruction stream")
	}

	return st.code, nil
}

func (st *asmState) errf(line int, op string, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if op != "" {
		return errors.Errorf("%s.%d: %s %s", st.filename, line, op, msg)
	}
	return errors.Errorf("%s.%d: %s", st.filename, line, msg)
}

func (st *asmState) processLine(raw string, lineNo int) error {
	line := comments.ReplaceAllString(raw, "")
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasSuffix(line, ":") {
		return st.processLabel(line, lineNo)
	}
	return st.processInstruction(line, lineNo)
}

func (st *asmState) processLabel(line string, lineNo int) error {
	name := strings.TrimSuffix(line, ":")
	if name == "" || strings.ContainsAny(name, " \t") {
		return st.errf(lineNo, "", "invalid label %q", line)
	}

	qualified := name
	if strings.HasPrefix(name, ".") {
		if st.currentParent == "" {
			return st.errf(lineNo, "", "sublabel %q declared before any parent label", name)
		}
		qualified = st.currentParent + ">" + strings.TrimPrefix(name, ".")
	} else {
		st.currentParent = name
	}

	if _, exists := st.labelAddrs[qualified]; exists {
		return errors.Wrapf(ErrDuplicateLabel, "%s.%d: label %q already defined", st.filename, lineNo, qualified)
	}
	st.labelAddrs[qualified] = len(st.code)
	return nil
}

func (st *asmState) processInstruction(line string, lineNo int) error {
	tokens := strings.Fields(line)
	opName := tokens[0]
	args := tokens[1:]

	op, ok := ParseOpCode(opName)
	if !ok {
		return st.errf(lineNo, "", "unknown opcode %q", opName)
	}

	st.code = append(st.code, OpAtom(op))

	var consumed int
	switch op.ArgType() {
	case ArgNil:
		consumed = 0
	case ArgReg:
		r, err := st.consumeReg(args, lineNo, op)
		if err != nil {
			return err
		}
		st.code = append(st.code, RegAtom(r))
		consumed = 1
	case ArgInt:
		v, err := st.consumeInt(args, lineNo, op)
		if err != nil {
			return err
		}
		st.code = append(st.code, IntAtom(v))
		consumed = 1
	case ArgIntReg:
		v, err := st.consumeInt(args, lineNo, op)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return st.errf(lineNo, op.String(), "expected to find a register but found nothing")
		}
		r, err := st.parseReg(args[1], lineNo, op)
		if err != nil {
			return err
		}
		st.code = append(st.code, IntAtom(v), RegAtom(r))
		consumed = 2
	case ArgRegReg:
		if len(args) < 1 {
			return st.errf(lineNo, op.String(), "expected to find a register but found nothing")
		}
		r1, err := st.parseReg(args[0], lineNo, op)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return st.errf(lineNo, op.String(), "expected to find a register but found nothing")
		}
		r2, err := st.parseReg(args[1], lineNo, op)
		if err != nil {
			return err
		}
		st.code = append(st.code, RegAtom(r1), RegAtom(r2))
		consumed = 2
	case ArgRealReg:
		f, err := st.consumeReal(args, lineNo, op)
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return st.errf(lineNo, op.String(), "expected to find a register but found nothing")
		}
		r, err := st.parseReg(args[1], lineNo, op)
		if err != nil {
			return err
		}
		st.code = append(st.code, RealAtom(f), RegAtom(r))
		consumed = 2
	case ArgAddr:
		if len(args) < 1 {
			return st.errf(lineNo, op.String(), "expected to find a label but found nothing")
		}
		name := args[0]
		if strings.HasPrefix(name, ".") {
			if st.currentParent == "" {
				return st.errf(lineNo, op.String(), "sublabel reference %q before any parent label", name)
			}
			name = st.currentParent + ">" + strings.TrimPrefix(name, ".")
		}
		st.labelRefs = append(st.labelRefs, labelRef{
			index:    len(st.code),
			name:     name,
			filename: st.filename,
			line:     lineNo,
		})
		st.code = append(st.code, AddrAtom(0))
		consumed = 1
	}

	if len(args) > consumed {
		return st.errf(lineNo, op.String(), "expected end of line but found %q", strings.Join(args[consumed:], " "))
	}
	return nil
}

func (st *asmState) consumeReg(args []string, lineNo int, op OpCode) (uint8, error) {
	if len(args) < 1 {
		return 0, st.errf(lineNo, op.String(), "expected to find a register but found nothing")
	}
	return st.parseReg(args[0], lineNo, op)
}

func (st *asmState) parseReg(tok string, lineNo int, op OpCode) (uint8, error) {
	if !strings.HasPrefix(tok, "r") || len(tok) < 2 {
		return 0, st.errf(lineNo, op.String(), "expected to find a register but got %q", tok)
	}
	n, err := strconv.ParseUint(tok[1:], 10, 16)
	if err != nil {
		return 0, st.errf(lineNo, op.String(), "expected to find a register but got %q", tok)
	}
	if n >= uint64(st.cfg.NumRegisters) {
		return 0, errors.Wrapf(ErrRegisterOutOfRange, "%s.%d: %s register %q is out of range (max %d)",
			st.filename, lineNo, op, tok, st.cfg.NumRegisters-1)
	}
	return uint8(n), nil
}

func (st *asmState) consumeInt(args []string, lineNo int, op OpCode) (int64, error) {
	if len(args) < 1 {
		return 0, st.errf(lineNo, op.String(), "expected to find an integer but found nothing")
	}
	tok := args[0]
	if strings.Contains(tok, ".") {
		return 0, st.errf(lineNo, op.String(), "expected to find an integer but got a real %q", tok)
	}
	if strings.HasPrefix(tok, "r") {
		if _, err := strconv.ParseUint(tok[1:], 10, 16); err == nil {
			return 0, st.errf(lineNo, op.String(), "expected to find an integer but got a register %q", tok)
		}
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, st.errf(lineNo, op.String(), "expected to find an integer but got %q", tok)
	}
	return v, nil
}

func (st *asmState) consumeReal(args []string, lineNo int, op OpCode) (float64, error) {
	if len(args) < 1 {
		return 0, st.errf(lineNo, op.String(), "expected to find a real but found nothing")
	}
	tok := args[0]
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, st.errf(lineNo, op.String(), "expected to find a real but got %q", tok)
	}
	return v, nil
}
