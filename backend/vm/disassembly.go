package vm

import (
	"fmt"
	"io"
)

// Disassemble writes `prog` in a more digestable form: a header with the
// function's signature and register count followed by each decoded
// instruction prefixed with its starting byte offset
func Disassemble(w io.Writer, prog *Program) error {
	fmt.Fprintf(w, "<function %s %s>\n", prog.Name, prog.Signature)
	fmt.Fprintf(w, "  registers: %d\n", prog.NumRegs)
	fmt.Fprintf(w, "  instructions (%d bytes)\n", prog.Bytecode.Size)

	code := prog.Bytecode.Bytes
	for at := 0; at < len(code); {
		inst, err := decode(code, at)
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, "   %4d %-10s %s\n", at, opcodeNames[code[at]], inst); err != nil {
			return err
		}

		at += instructionSize[code[at]]
	}

	return nil
}

// decode converts the instruction starting at `code[at]` from a series of
// bytes back into an Instruction
func decode(code []byte, at int) (Instruction, error) {
	opcode := code[at]

	size, ok := instructionSize[opcode]
	if !ok {
		return nil, fmt.Errorf("unknown opcode 0x%x at %d", opcode, at)
	}

	if at+size > len(code) {
		return nil, fmt.Errorf("truncated %s instruction at %d", opcodeNames[opcode], at)
	}

	word := func(n int) uint32 {
		i := at + n
		return bytesToUint32(code[i], code[i+1], code[i+2], code[i+3])
	}
	reg := func(n int) RegisterAddress {
		return RegisterAddress(word(n))
	}

	switch opcode {
	case OpcodeNop:
		return Nop{}, nil
	case OpcodeIntConst:
		return IntConst{Value: int32(word(1)), Dest: reg(5)}, nil
	case OpcodeParam:
		return Param{Index: word(1), Dest: reg(5)}, nil
	case OpcodeAlloca:
		return Alloca{Size: word(1), Dest: reg(5)}, nil
	case OpcodeZeroFill:
		return ZeroFill{Addr: reg(1), Size: word(5)}, nil
	case OpcodeLoadByte:
		return LoadByte{Addr: reg(1), Dest: reg(5)}, nil
	case OpcodeStoreByte:
		return StoreByte{Addr: reg(1), Source: reg(5)}, nil
	case OpcodeLoadSlot:
		return LoadSlot{Addr: reg(1), Dest: reg(5)}, nil
	case OpcodeStoreSlot:
		return StoreSlot{Addr: reg(1), Source: reg(5)}, nil
	case OpcodeOffset:
		return Offset{Addr: reg(1), Delta: reg(5), Dest: reg(9)}, nil
	case OpcodeIntEq:
		return IntEq{Left: reg(1), Right: reg(5), Dest: reg(9)}, nil
	case OpcodeIntAdd:
		return IntAdd{Width: code[at+1], Left: reg(2), Right: reg(6), Dest: reg(10)}, nil
	case OpcodeIntSub:
		return IntSub{Width: code[at+1], Left: reg(2), Right: reg(6), Dest: reg(10)}, nil
	case OpcodeBrAlways:
		return BrAlways{Addr: BytecodeAddress(word(1))}, nil
	case OpcodeBrTrue:
		return BrTrue{Test: reg(1), Addr: BytecodeAddress(word(5))}, nil
	case OpcodeCallHost:
		return CallHost{Host: code[at+1], Arg: reg(2), Dest: reg(6)}, nil
	case OpcodeReturn:
		return Return{Source: reg(1)}, nil
	case OpcodeReturnVoid:
		return ReturnVoid{}, nil
	}

	return nil, fmt.Errorf("unknown opcode 0x%x at %d", opcode, at)
}
