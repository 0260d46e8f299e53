package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/isaacev/bfjit/backend"
)

var (
	// ErrSegmentFault is returned when a program reads or writes outside of
	// the storage a pointer was derived from
	ErrSegmentFault = errors.New("memory access outside of allocated storage")

	// ErrStepLimit is returned when a Machine configured with a step limit
	// executes more instructions than allowed
	ErrStepLimit = errors.New("step limit exceeded")
)

// Machine executes assembled programs. It owns the buffered host I/O streams
// generated code reads from and writes to
type Machine struct {
	in        *bufio.Reader
	out       *bufio.Writer
	stepLimit uint64
}

// NewMachine creates a Machine configured by `opts`
func NewMachine(opts ...Option) *Machine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o.machine()
}

// Call runs `prog` to completion and returns the value of its return
// instruction (0 for void functions). Programs taking a pointer parameter are
// passed a pointer to the start of `tape`; the tape is updated in place.
// Buffered output is flushed before Call returns, even on failure
func (m *Machine) Call(prog *Program, tape []byte) (status int64, err error) {
	frame := newFrame(prog.NumRegs)

	for _, param := range prog.Signature.Params {
		if param.Kind != backend.Pointer {
			return 0, fmt.Errorf("vm: %s takes an unsupported %s parameter", prog.Name, param)
		}
		frame.args = append(frame.args, frame.addSegment(&segment{bytes: tape}))
	}

	inter := &Interpreter{prog: prog, frame: frame, machine: m}

	defer func() {
		if ferr := m.out.Flush(); err == nil && ferr != nil {
			err = fmt.Errorf("vm: flush output: %w", ferr)
		}
	}()

	result, err := inter.Execute()
	if err != nil {
		return 0, err
	}

	return result.Int, nil
}

// Interpreter represents the state of the machine running one call: the
// instruction pointer (`ip`), the active frame and the number of instructions
// executed so far
type Interpreter struct {
	ip      BytecodeAddress
	prog    *Program
	frame   *Frame
	machine *Machine
	steps   uint64
}

// Execute runs the interpreter until the program returns. Malformed bytecode
// (as could come from a corrupt object file) is reported as an error instead
// of crashing the host
func (inter *Interpreter) Execute() (result Register, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vm: malformed program %s near address %d: %v", inter.prog.Name, inter.ip, r)
		}
	}()

	code := inter.prog.Bytecode.Bytes
	regs := inter.frame.Registers

	for {
		if int(inter.ip) >= len(code) {
			return result, fmt.Errorf("vm: %s ran past the end of its bytecode", inter.prog.Name)
		}

		inter.steps++
		if limit := inter.machine.stepLimit; limit > 0 && inter.steps > limit {
			return result, fmt.Errorf("vm: %s: %w (%d)", inter.prog.Name, ErrStepLimit, limit)
		}

		switch opcode := inter.readOpcode(); opcode {
		case OpcodeNop:
			// nothing to do
		case OpcodeIntConst:
			value := inter.readInt32()
			dest := inter.readRegister()
			regs[dest] = Register{Int: int64(value)}
		case OpcodeParam:
			index := inter.readUint32()
			dest := inter.readRegister()
			if int(index) >= len(inter.frame.args) {
				return result, fmt.Errorf("vm: %s reads missing argument %d", inter.prog.Name, index)
			}
			regs[dest] = inter.frame.args[index]
		case OpcodeAlloca:
			size := inter.readUint32()
			dest := inter.readRegister()
			seg := &segment{}
			if size > 0 {
				seg.bytes = make([]byte, size)
			}
			regs[dest] = inter.frame.addSegment(seg)
		case OpcodeZeroFill:
			ptr := regs[inter.readRegister()]
			size := inter.readUint32()
			mem, err := inter.bytesAt(ptr, int64(size))
			if err != nil {
				return result, err
			}
			for i := range mem {
				mem[i] = 0
			}
		case OpcodeLoadByte:
			ptr := regs[inter.readRegister()]
			dest := inter.readRegister()
			mem, err := inter.bytesAt(ptr, 1)
			if err != nil {
				return result, err
			}
			regs[dest] = Register{Int: int64(mem[0])}
		case OpcodeStoreByte:
			ptr := regs[inter.readRegister()]
			src := regs[inter.readRegister()]
			mem, err := inter.bytesAt(ptr, 1)
			if err != nil {
				return result, err
			}
			mem[0] = byte(src.Int)
		case OpcodeLoadSlot:
			ptr := regs[inter.readRegister()]
			dest := inter.readRegister()
			seg, err := inter.slotAt(ptr)
			if err != nil {
				return result, err
			}
			regs[dest] = seg.slot
		case OpcodeStoreSlot:
			ptr := regs[inter.readRegister()]
			src := regs[inter.readRegister()]
			seg, err := inter.slotAt(ptr)
			if err != nil {
				return result, err
			}
			seg.slot = src
		case OpcodeOffset:
			ptr := regs[inter.readRegister()]
			delta := regs[inter.readRegister()]
			dest := inter.readRegister()
			regs[dest] = Register{Seg: ptr.Seg, Int: ptr.Int + delta.Int}
		case OpcodeIntEq:
			left := regs[inter.readRegister()]
			right := regs[inter.readRegister()]
			dest := inter.readRegister()
			if left == right {
				regs[dest] = Register{Int: 1}
			} else {
				regs[dest] = Register{Int: 0}
			}
		case OpcodeIntAdd, OpcodeIntSub:
			width := inter.readUint8()
			left := regs[inter.readRegister()]
			right := regs[inter.readRegister()]
			dest := inter.readRegister()
			if opcode == OpcodeIntAdd {
				regs[dest] = Register{Int: wrap(left.Int+right.Int, width)}
			} else {
				regs[dest] = Register{Int: wrap(left.Int-right.Int, width)}
			}
		case OpcodeBrAlways:
			inter.ip = inter.readBytecodeAddress()
		case OpcodeBrTrue:
			test := regs[inter.readRegister()]
			addr := inter.readBytecodeAddress()
			if test.Int != 0 {
				inter.ip = addr
			}
		case OpcodeCallHost:
			host := inter.readUint8()
			arg := regs[inter.readRegister()]
			dest := inter.readRegister()
			switch host {
			case hostReadByte:
				b, err := inter.machine.readByte()
				if err != nil {
					return result, err
				}
				regs[dest] = Register{Int: int64(b)}
			case hostWriteByte:
				if err := inter.machine.out.WriteByte(byte(arg.Int)); err != nil {
					return result, fmt.Errorf("vm: write output: %w", err)
				}
			default:
				return result, fmt.Errorf("vm: unknown host function %d", host)
			}
		case OpcodeReturn:
			return regs[inter.readRegister()], nil
		case OpcodeReturnVoid:
			return Register{}, nil
		default:
			return result, fmt.Errorf("vm: unknown opcode %#02x at %d in %s", opcode, inter.ip-1, inter.prog.Name)
		}
	}
}

// readByte implements the readByte host function. End of input reads as 0xFF,
// the byte a C program storing getchar's EOF into a char would see
func (m *Machine) readByte() (byte, error) {
	b, err := m.in.ReadByte()
	if err == io.EOF {
		return 0xFF, nil
	}
	if err != nil {
		return 0, fmt.Errorf("vm: read input: %w", err)
	}
	return b, nil
}

// bytesAt returns `n` bytes of memory starting at `ptr`
func (inter *Interpreter) bytesAt(ptr Register, n int64) ([]byte, error) {
	seg, err := inter.segmentOf(ptr)
	if err != nil {
		return nil, err
	}

	if seg.bytes == nil || ptr.Int < 0 || ptr.Int+n > int64(len(seg.bytes)) {
		return nil, fmt.Errorf("vm: %s: %w: offset %d of segment %d (length %d)",
			inter.prog.Name, ErrSegmentFault, ptr.Int, ptr.Seg, len(seg.bytes))
	}

	return seg.bytes[ptr.Int : ptr.Int+n], nil
}

// slotAt returns the scalar slot `ptr` points to
func (inter *Interpreter) slotAt(ptr Register) (*segment, error) {
	seg, err := inter.segmentOf(ptr)
	if err != nil {
		return nil, err
	}

	if seg.bytes != nil || ptr.Int != 0 {
		return nil, fmt.Errorf("vm: %s: %w: slot access at offset %d of segment %d",
			inter.prog.Name, ErrSegmentFault, ptr.Int, ptr.Seg)
	}

	return seg, nil
}

func (inter *Interpreter) segmentOf(ptr Register) (*segment, error) {
	if !ptr.IsPointer() || int(ptr.Seg) > len(inter.frame.segments) {
		return nil, fmt.Errorf("vm: %s: %w: dereferenced a non-pointer", inter.prog.Name, ErrSegmentFault)
	}
	return inter.frame.segments[ptr.Seg-1], nil
}

func (inter *Interpreter) readOpcode() uint8 {
	return inter.readUint8()
}

func (inter *Interpreter) readUint8() uint8 {
	b := inter.prog.Bytecode.Bytes[inter.ip]
	inter.ip++
	return b
}

func (inter *Interpreter) readUint32() uint32 {
	b := inter.prog.Bytecode.Bytes[inter.ip : inter.ip+4]
	inter.ip += 4
	return bytesToUint32(b[0], b[1], b[2], b[3])
}

func (inter *Interpreter) readInt32() int32 {
	return int32(inter.readUint32())
}

func (inter *Interpreter) readRegister() RegisterAddress {
	return RegisterAddress(inter.readUint32())
}

func (inter *Interpreter) readBytecodeAddress() BytecodeAddress {
	return BytecodeAddress(inter.readUint32())
}
