// Package backend describes the code-generation capabilities the compiler
// core consumes. The core builds a program through these interfaces only and
// never performs instruction selection, register allocation or optimization
// itself. Concrete implementations live in the sub-packages.
package backend

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnsupported is returned (possibly wrapped) by a backend asked for a
// capability it doesn't have, such as in-process execution
var ErrUnsupported = errors.New("capability not supported by backend")

// Kind classifies a Type
type Kind int

// The handful of types the generated programs need
const (
	Void Kind = iota
	Bool
	Byte
	Int32
	Pointer
	Array
)

// Type describes a scalar or a fixed length byte array. `Len` is only
// meaningful for arrays
type Type struct {
	Kind Kind
	Len  int
}

// Commonly used types
var (
	VoidType    = Type{Kind: Void}
	BoolType    = Type{Kind: Bool}
	ByteType    = Type{Kind: Byte}
	Int32Type   = Type{Kind: Int32}
	PointerType = Type{Kind: Pointer}
)

// ArrayType returns the type of a byte array holding `n` elements
func ArrayType(n int) Type {
	return Type{Kind: Array, Len: n}
}

func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "i1"
	case Byte:
		return "i8"
	case Int32:
		return "i32"
	case Pointer:
		return "ptr"
	case Array:
		return fmt.Sprintf("[%d x i8]", t.Len)
	default:
		return fmt.Sprintf("Type(%d)", t.Kind)
	}
}

// Signature is the return and parameter types of a Function
type Signature struct {
	Ret    Type
	Params []Type
}

func (sig Signature) String() string {
	s := sig.Ret.String() + " ("
	for i, p := range sig.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	return s + ")"
}

// Host identifies one of the externally linked functions generated code may
// call
type Host int

const (
	// HostReadByte is `readByte() -> byte`. End of input reads as 0xFF
	HostReadByte Host = iota

	// HostWriteByte is `writeByte(byte)`
	HostWriteByte
)

func (h Host) String() string {
	switch h {
	case HostReadByte:
		return "readByte"
	case HostWriteByte:
		return "writeByte"
	default:
		return fmt.Sprintf("Host(%d)", int(h))
	}
}

// Value is an SSA value produced by a Builder
type Value interface {
	Type() Type
}

// Block is a basic block of a Function
type Block interface {
	Name() string
}

// Callee is a handle to a declared host function
type Callee interface {
	Host() Host
}

// Function is a function defined in a Module
type Function interface {
	Name() string
	Signature() Signature
}

// Builder appends instructions to the block at its insertion point. Values
// and blocks handed to a Builder must come from the same Module. Misusing a
// Builder (no insertion point, mismatched operand types) is a programming
// error and panics.
type Builder interface {
	NewBlock(name string) Block
	SetInsertPoint(b Block)
	InsertBlock() Block

	Param(i int) Value
	Alloca(t Type, name string) Value
	Zero(t Type) Value
	ConstInt(t Type, v int64) Value

	// Load reads a value of type `t` from a Pointer. Store writes `v` to a
	// Pointer. Storing `Zero(ArrayType(n))` clears the whole array
	Load(t Type, addr Value, name string) Value
	Store(addr Value, v Value)

	// Offset moves a Pointer by `delta` byte elements. Nothing checks that
	// the result stays inside the storage the pointer came from
	Offset(addr Value, delta Value, name string) Value

	// Integer arithmetic wraps around at the operands' width
	Add(a, b Value, name string) Value
	Sub(a, b Value, name string) Value
	ICmpEQ(a, b Value, name string) Value

	Br(dest Block)
	CondBr(cond Value, then, els Block)
	Call(c Callee, args []Value, name string) Value
	Ret(v Value)
	RetVoid()
}

// Module owns functions and host declarations. A Module is not safe for
// concurrent use and must be disposed once the caller is done with it
type Module interface {
	Name() string
	AddFunction(name string, sig Signature) (Function, error)
	DeclareHost(h Host) Callee
	NewBuilder(fn Function) (Builder, error)

	// Verify checks the module is well formed (every block terminated)
	Verify() error

	// WriteIR writes a human-readable form of the module
	WriteIR(w io.Writer) error

	// Executor prepares the module for in-process execution
	Executor(opt OptLevel) (Executor, error)

	// Emit lowers the module for `target` and writes the artifact to `w`
	Emit(w io.Writer, target Target, opt OptLevel, ft FileType) error

	Dispose()
}

// Executor runs finished functions in-process
type Executor interface {
	// Run calls `fn` synchronously. Functions taking a Pointer parameter
	// receive the address of `tape`, which must stay untouched by the caller
	// for the duration of the call
	Run(fn Function, tape []byte) error
	Close() error
}

// Backend creates Modules and knows how to describe the host machine
type Backend interface {
	Name() string
	HostTarget() (Target, error)
	NewModule(name string) (Module, error)
}
