package codegen

import (
	"errors"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/feedback"
	"github.com/isaacev/bfjit/frontend"
)

var (
	// ErrUnmatchedClose is the cause of the error reported for a `]` with no
	// open loop
	ErrUnmatchedClose = errors.New("unmatched ']'")

	// ErrUnmatchedOpen is the cause of the error reported for a `[` still
	// open once every instruction has been generated
	ErrUnmatchedOpen = errors.New("unmatched '['")
)

// loopContext holds the three blocks of one open loop. `start` re-tests the
// cell before every iteration, `body` is where the loop's instructions go and
// `exit` is where generation resumes after the closing bracket
type loopContext struct {
	start backend.Block
	body  backend.Block
	exit  backend.Block
	open  frontend.Instruction
}

type loopStack []loopContext

func (s *loopStack) push(ctx loopContext) {
	*s = append(*s, ctx)
}

func (s *loopStack) pop() (loopContext, bool) {
	if len(*s) == 0 {
		return loopContext{}, false
	}

	top := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return top, true
}

func (s loopStack) peek() (loopContext, bool) {
	if len(s) == 0 {
		return loopContext{}, false
	}
	return s[len(s)-1], true
}

// loopStart opens a pre-tested loop: the cursor jumps to a header block that
// skips to `exit` when the current cell is zero and falls into `body`
// otherwise
func (u *Unit) loopStart(inst frontend.Instruction) {
	ctx := loopContext{
		start: u.builder.NewBlock("loop.start"),
		body:  u.builder.NewBlock("loop.body"),
		exit:  u.builder.NewBlock("loop.exit"),
		open:  inst,
	}

	u.builder.Br(ctx.start)

	u.moveCursor(ctx.start)
	cell := u.builder.Load(backend.ByteType, u.cellAddr(), "cell")
	zero := u.builder.ConstInt(backend.ByteType, 0)
	isZero := u.builder.ICmpEQ(cell, zero, "iszero")
	u.builder.CondBr(isZero, ctx.exit, ctx.body)

	u.loops.push(ctx)
	u.moveCursor(ctx.body)
}

// loopEnd closes the innermost loop by jumping back to its header
func (u *Unit) loopEnd(inst frontend.Instruction) error {
	ctx, ok := u.loops.pop()
	if !ok {
		return feedback.Error{
			Classification: feedback.StructuralError,
			File:           u.file,
			What: feedback.Selection{
				Description: "unmatched ']', no loop is open",
				Span:        inst.Span,
			},
			Cause: ErrUnmatchedClose,
		}
	}

	u.builder.Br(ctx.start)
	u.moveCursor(ctx.exit)
	return nil
}

func (u *Unit) unmatchedOpen(ctx loopContext) error {
	return feedback.Error{
		Classification: feedback.StructuralError,
		File:           u.file,
		What: feedback.Selection{
			Description: "unmatched '[', loop is never closed",
			Span:        ctx.open.Span,
		},
		Cause: ErrUnmatchedOpen,
	}
}
