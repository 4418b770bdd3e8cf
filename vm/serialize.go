package vm

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Serialize encodes an instruction stream into the framed binary format:
// a fixed signature, a version byte, then the atoms concatenated per the
// opcode's operand shape with no padding or alignment.
func Serialize(cfg Config, code []Atom) ([]byte, error) {
	out := make([]byte, 0, len(cfg.Signature)+1+len(code)*2)
	out = append(out, cfg.Signature...)
	out = append(out, cfg.Version)

	idx := 0
	for idx < len(code) {
		if !code[idx].IsOp() {
			return nil, errors.Errorf("expected an opcode at atom %d, but got %s", idx, code[idx])
		}
		op := code[idx].Op()
		if !op.IsValid() {
			return nil, errors.Errorf("invalid opcode at atom %d: %d", idx, op)
		}
		out = append(out, byte(op))

		switch op.ArgType() {
		case ArgNil:
			idx++
		case ArgReg:
			reg, err := expectReg(code, idx+1)
			if err != nil {
				return nil, err
			}
			out = append(out, reg)
			idx += 2
		case ArgIntReg:
			v, err := expectInt(code, idx+1)
			if err != nil {
				return nil, err
			}
			reg, err := expectReg(code, idx+2)
			if err != nil {
				return nil, err
			}
			out = appendInt64(out, v)
			out = append(out, reg)
			idx += 3
		case ArgRegReg:
			r1, err := expectReg(code, idx+1)
			if err != nil {
				return nil, err
			}
			r2, err := expectReg(code, idx+2)
			if err != nil {
				return nil, err
			}
			out = append(out, r1, r2)
			idx += 3
		case ArgAddr:
			addr, err := expectAddr(code, idx+1)
			if err != nil {
				return nil, err
			}
			out = appendUint64(out, addr)
			idx += 2
		case ArgInt:
			v, err := expectInt(code, idx+1)
			if err != nil {
				return nil, err
			}
			out = appendInt64(out, v)
			idx += 2
		case ArgRealReg:
			f, err := expectReal(code, idx+1)
			if err != nil {
				return nil, err
			}
			reg, err := expectReg(code, idx+2)
			if err != nil {
				return nil, err
			}
			out = appendUint64(out, math.Float64bits(f))
			out = append(out, reg)
			idx += 3
		}
	}

	return out, nil
}

// Deserialize decodes a binary produced by Serialize back into an
// instruction stream, validating the header first.
func Deserialize(cfg Config, binaryData []byte) ([]Atom, error) {
	headerLen := len(cfg.Signature) + 1
	if len(binaryData) < headerLen {
		return nil, errors.Wrapf(ErrBinaryTooShort, "got %d bytes, need at least %d", len(binaryData), headerLen)
	}
	for i, b := range cfg.Signature {
		if binaryData[i] != b {
			return nil, ErrBinarySignature
		}
	}
	if binaryData[len(cfg.Signature)] != cfg.Version {
		return nil, errors.Wrapf(ErrBinaryVersion, "binary was written with version %d but current version is %d",
			binaryData[len(cfg.Signature)], cfg.Version)
	}

	idx := headerLen
	var code []Atom
	for idx < len(binaryData) {
		op := OpCode(binaryData[idx])
		if !op.IsValid() {
			return nil, errors.Wrapf(ErrBinaryInvalidOp, "byte %d at offset %d", binaryData[idx], idx)
		}
		code = append(code, OpAtom(op))

		switch op.ArgType() {
		case ArgNil:
			idx++
		case ArgReg:
			reg, err := readByte(binaryData, idx+1)
			if err != nil {
				return nil, err
			}
			code = append(code, RegAtom(reg))
			idx += 2
		case ArgIntReg:
			v, err := readInt64(binaryData, idx+1)
			if err != nil {
				return nil, err
			}
			reg, err := readByte(binaryData, idx+9)
			if err != nil {
				return nil, err
			}
			code = append(code, IntAtom(v), RegAtom(reg))
			idx += 10
		case ArgRegReg:
			r1, err := readByte(binaryData, idx+1)
			if err != nil {
				return nil, err
			}
			r2, err := readByte(binaryData, idx+2)
			if err != nil {
				return nil, err
			}
			code = append(code, RegAtom(r1), RegAtom(r2))
			idx += 3
		case ArgAddr:
			addr, err := readUint64(binaryData, idx+1)
			if err != nil {
				return nil, err
			}
			code = append(code, AddrAtom(addr))
			idx += 9
		case ArgInt:
			v, err := readInt64(binaryData, idx+1)
			if err != nil {
				return nil, err
			}
			code = append(code, IntAtom(v))
			idx += 9
		case ArgRealReg:
			bits, err := readUint64(binaryData, idx+1)
			if err != nil {
				return nil, err
			}
			reg, err := readByte(binaryData, idx+9)
			if err != nil {
				return nil, err
			}
			code = append(code, RealAtom(math.Float64frombits(bits)), RegAtom(reg))
			idx += 10
		}
	}

	return code, nil
}

// AssembleToFile is the file-to-file convenience wrapper the CLI's `asm`
// subcommand drives: parse source, serialize, write.
func AssembleToFile(cfg Config, inputPath, outputPath string) error {
	code, err := AssembleFile(cfg, inputPath)
	if err != nil {
		return err
	}
	binaryData, err := Serialize(cfg, code)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, binaryData, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", outputPath)
	}
	return nil
}

// DisassembleFile reads a binary file and decodes it back into an
// instruction stream.
func DisassembleFile(cfg Config, path string) ([]Atom, error) {
	binaryData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return Deserialize(cfg, binaryData)
}

func expectReg(code []Atom, idx int) (byte, error) {
	if idx >= len(code) || !code[idx].IsReg() {
		return 0, errors.Errorf("expected a register at atom %d, but got %s", idx, atomOrEOF(code, idx))
	}
	return code[idx].Reg(), nil
}

func expectInt(code []Atom, idx int) (int64, error) {
	if idx >= len(code) || !code[idx].IsInt() {
		return 0, errors.Errorf("expected an integer at atom %d, but got %s", idx, atomOrEOF(code, idx))
	}
	return code[idx].Int(), nil
}

func expectAddr(code []Atom, idx int) (uint64, error) {
	if idx >= len(code) || !code[idx].IsAddr() {
		return 0, errors.Errorf("expected an address at atom %d, but got %s", idx, atomOrEOF(code, idx))
	}
	return code[idx].Addr(), nil
}

func expectReal(code []Atom, idx int) (float64, error) {
	if idx >= len(code) || !code[idx].IsReal() {
		return 0, errors.Errorf("expected a real at atom %d, but got %s", idx, atomOrEOF(code, idx))
	}
	return code[idx].Real(), nil
}

func atomOrEOF(code []Atom, idx int) string {
	if idx >= len(code) {
		return "end of stream"
	}
	return code[idx].String()
}

func appendInt64(out []byte, v int64) []byte {
	return appendUint64(out, uint64(v))
}

func appendUint64(out []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(out, buf[:]...)
}

func readByte(data []byte, idx int) (byte, error) {
	if idx >= len(data) {
		return 0, errors.Wrap(ErrBinaryTruncated, "expected a register byte")
	}
	return data[idx], nil
}

func readInt64(data []byte, idx int) (int64, error) {
	v, err := readUint64(data, idx)
	return int64(v), err
}

func readUint64(data []byte, idx int) (uint64, error) {
	if idx+8 > len(data) {
		return 0, errors.Wrap(ErrBinaryTruncated, "expected 8 more bytes")
	}
	return binary.LittleEndian.Uint64(data[idx : idx+8]), nil
}
