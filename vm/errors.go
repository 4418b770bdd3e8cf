package vm

import "github.com/pkg/errors"

// Sentinel runtime faults. Call sites wrap these with positional/opcode
// context via errors.Wrapf so errors.Is still matches the underlying
// fault while the message carries the pc/opcode that triggered it.
var (
	ErrStackOverflow       = errors.New("stack overflow")
	ErrStackUnderflow      = errors.New("stack underflow")
	ErrCallStackOverflow   = errors.New("call stack overflow")
	ErrCallStackUnderflow  = errors.New("call stack underflow")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrFrameSizeOutOfRange = errors.New("register frame size out of range")
	ErrRegisterOutOfRange  = errors.New("register index out of range")
	ErrCeilFloorOverflow   = errors.New("CEIL/FLOR overflow")
	ErrUnexpectedAtom      = errors.New("unexpected atom at pc")
	ErrUndefinedLabel      = errors.New("reference to undefined label")
	ErrDuplicateLabel      = errors.New("duplicate label")

	// Binary format errors.
	ErrBinaryTooShort  = errors.New("binary is too short to be a valid uvm binary")
	ErrBinarySignature = errors.New("binary signature is invalid, this is not a uvm binary")
	ErrBinaryVersion   = errors.New("binary version is invalid")
	ErrBinaryInvalidOp = errors.New("invalid opcode byte")
	ErrBinaryTruncated = errors.New("binary is truncated mid-instruction")
)
