package frontend

import (
	"fmt"

	"github.com/isaacev/bfjit/source"
)

// Op classifies an Instruction. Each operation is represented by the source
// character that produces it
type Op byte

// The eight recognized operations. Every other character in a source file is
// commentary
const (
	OpMoveRight Op = '>'
	OpMoveLeft  Op = '<'
	OpIncrCell  Op = '+'
	OpDecrCell  Op = '-'
	OpOutput    Op = '.'
	OpInput     Op = ','
	OpLoopStart Op = '['
	OpLoopEnd   Op = ']'
)

// Ops lists every recognized operation in a stable order
var Ops = []Op{
	OpMoveRight,
	OpMoveLeft,
	OpIncrCell,
	OpDecrCell,
	OpOutput,
	OpInput,
	OpLoopStart,
	OpLoopEnd,
}

var opNames = map[Op]string{
	OpMoveRight: "MoveRight",
	OpMoveLeft:  "MoveLeft",
	OpIncrCell:  "IncrCell",
	OpDecrCell:  "DecrCell",
	OpOutput:    "Output",
	OpInput:     "Input",
	OpLoopStart: "LoopStart",
	OpLoopEnd:   "LoopEnd",
}

// OpFor maps a source rune to its operation. The boolean is false for any
// rune outside the instruction set
func OpFor(r rune) (Op, bool) {
	if r > 0x7f {
		return 0, false
	}

	op := Op(r)
	_, ok := opNames[op]
	return op, ok
}

// Mergeable reports whether consecutive runs of the operation are collapsed
// into a single Instruction carrying a count. Pointer moves and cell updates
// merge, I/O and loop brackets never do
func (op Op) Mergeable() bool {
	switch op {
	case OpMoveRight, OpMoveLeft, OpIncrCell, OpDecrCell:
		return true
	default:
		return false
	}
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}

	return fmt.Sprintf("Op(%#02x)", byte(op))
}

// Instruction is one compacted operation. `Count` is the run length for
// mergeable operations and always 1 otherwise. `Span` covers every source
// character that contributed to the instruction
type Instruction struct {
	Op    Op
	Count int
	Span  source.Span
}

func (inst Instruction) String() string {
	if inst.Op.Mergeable() {
		return fmt.Sprintf("%c%d", inst.Op, inst.Count)
	}

	return string(inst.Op)
}
