package codegen

import (
	"context"
	"fmt"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/frontend"
)

// Generate lowers `insts` into the unit's entry function in order. A `]`
// without an open loop fails right away, a `[` that is never closed is only
// reported once the whole list has been lowered. The context is checked
// between instructions
func (u *Unit) Generate(ctx context.Context, insts []frontend.Instruction) error {
	if u.finished {
		return fmt.Errorf("compilation unit for %s already finished", u.fn.Name())
	}

	for _, inst := range insts {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := u.generate(inst); err != nil {
			return err
		}
	}

	if top, ok := u.loops.peek(); ok {
		return u.unmatchedOpen(top)
	}

	return nil
}

func (u *Unit) generate(inst frontend.Instruction) error {
	switch inst.Op {
	case frontend.OpMoveRight:
		u.move(int64(inst.Count))
	case frontend.OpMoveLeft:
		u.move(-int64(inst.Count))
	case frontend.OpIncrCell:
		u.modifyCell(inst.Count, u.builder.Add)
	case frontend.OpDecrCell:
		u.modifyCell(inst.Count, u.builder.Sub)
	case frontend.OpOutput:
		cell := u.builder.Load(backend.ByteType, u.cellAddr(), "cell")
		u.builder.Call(u.writeByte, []backend.Value{cell}, "")
	case frontend.OpInput:
		addr := u.cellAddr()
		c := u.builder.Call(u.readByte, nil, "input")
		u.builder.Store(addr, c)
	case frontend.OpLoopStart:
		u.loopStart(inst)
	case frontend.OpLoopEnd:
		return u.loopEnd(inst)
	default:
		return fmt.Errorf("%s: unknown instruction %q", inst.Span.Start, byte(inst.Op))
	}

	return nil
}

// cellAddr loads the current tape address from the pointer slot
func (u *Unit) cellAddr() backend.Value {
	return u.builder.Load(backend.PointerType, u.slot, "ptr")
}

// move shifts the tape pointer by `delta` cells. The new address is not
// checked against the length of the tape
func (u *Unit) move(delta int64) {
	addr := u.cellAddr()
	moved := u.builder.Offset(addr, u.builder.ConstInt(backend.Int32Type, delta), "ptr")
	u.builder.Store(u.slot, moved)
}

// modifyCell applies `op` to the current cell and `n`. Cells are bytes so
// the result wraps modulo 256
func (u *Unit) modifyCell(n int, op func(a, b backend.Value, name string) backend.Value) {
	addr := u.cellAddr()
	cell := u.builder.Load(backend.ByteType, addr, "cell")
	amount := u.builder.ConstInt(backend.ByteType, int64(uint8(n)))
	u.builder.Store(addr, op(cell, amount, "cell"))
}
