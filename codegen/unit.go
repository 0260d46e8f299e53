// Package codegen lowers a compacted instruction list into backend
// operations. A Unit holds everything one compilation needs: the backend
// module and entry function, the block new instructions are appended to, the
// slot holding the tape pointer and the stack of open loops. How the tape is
// allocated and what happens with the finished function is decided by a Mode.
package codegen

import (
	"fmt"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/source"
	"github.com/tliron/commonlog"
)

// EntryName is the name of the generated entry function
const EntryName = "main"

var log = commonlog.GetLogger("bfjit.codegen")

// Unit is one compilation. It is built once by NewUnit, fed every
// instruction by Generate and closed by Finish
type Unit struct {
	file *source.File
	mode Mode

	mod     backend.Module
	fn      backend.Function
	builder backend.Builder
	entry   backend.Block

	// cursor is the block the next operation is appended to. It is tracked
	// here instead of being read back from the builder
	cursor backend.Block

	// slot holds the current tape address
	slot backend.Value

	loops loopStack

	readByte  backend.Callee
	writeByte backend.Callee

	finished bool
}

// NewUnit creates the entry function in `mod` with the signature `mode`
// asks for and seeds the pointer slot with the tape `mode` provides
func NewUnit(mod backend.Module, file *source.File, mode Mode) (*Unit, error) {
	fn, err := mod.AddFunction(EntryName, mode.Signature())
	if err != nil {
		return nil, err
	}

	builder, err := mod.NewBuilder(fn)
	if err != nil {
		return nil, err
	}

	u := &Unit{
		file:      file,
		mode:      mode,
		mod:       mod,
		fn:        fn,
		builder:   builder,
		readByte:  mod.DeclareHost(backend.HostReadByte),
		writeByte: mod.DeclareHost(backend.HostWriteByte),
	}

	u.entry = builder.NewBlock("entry")
	u.moveCursor(u.entry)

	u.slot = builder.Alloca(backend.PointerType, "ptr")
	tape, err := mode.SeedTape(builder)
	if err != nil {
		return nil, fmt.Errorf("seed tape: %w", err)
	}
	builder.Store(u.slot, tape)

	log.Debugf("created %s %s in module %s", EntryName, fn.Signature(), mod.Name())
	return u, nil
}

// Function returns the entry function being generated
func (u *Unit) Function() backend.Function {
	return u.fn
}

// Depth is the number of loops currently open
func (u *Unit) Depth() int {
	return len(u.loops)
}

// Cursor returns the block the next operation is appended to
func (u *Unit) Cursor() backend.Block {
	return u.cursor
}

func (u *Unit) moveCursor(blk backend.Block) {
	u.cursor = blk
	u.builder.SetInsertPoint(blk)
}

// Finish terminates the entry function the way the mode requires and checks
// the module is well formed. A unit can only be finished once and only with
// every loop closed
func (u *Unit) Finish() error {
	if u.finished {
		return fmt.Errorf("compilation unit for %s already finished", u.fn.Name())
	}

	if top, ok := u.loops.peek(); ok {
		return u.unmatchedOpen(top)
	}

	u.mode.Finalize(u.builder)
	u.finished = true

	if err := u.mod.Verify(); err != nil {
		return fmt.Errorf("verify %s: %w", u.mod.Name(), err)
	}

	return nil
}
