package frontend

import (
	"strings"

	"github.com/isaacev/bfjit/source"
)

// Compact digests a source file and returns its run-length compacted
// instruction list. Consecutive characters of the same mergeable kind fold
// into one Instruction whose count is the length of the run. Any character
// outside the instruction set is dropped but still ends the current run, so
// `+ +` produces two separate increments.
//
// The fold keeps at most one pending Instruction. A pending Instruction only
// exists once a recognized character has been read, so nothing but real
// operations can ever reach the output.
func Compact(file *source.File) (insts []Instruction) {
	var pending *Instruction

	flush := func() {
		if pending != nil {
			insts = append(insts, *pending)
			pending = nil
		}
	}

	scanner := NewScanner(file)

	for !scanner.Done() {
		r, pos := scanner.Next()
		op, ok := OpFor(r)

		if !ok {
			flush()
			continue
		}

		if pending != nil && pending.Op == op && op.Mergeable() {
			pending.Count++
			pending.Span.End = pos
			continue
		}

		flush()
		pending = &Instruction{
			Op:    op,
			Count: 1,
			Span:  source.Span{Start: pos, End: pos},
		}
	}

	flush()
	return insts
}

// CompactString is a convenience wrapper around Compact for source code that
// didn't come from a file
func CompactString(code string) []Instruction {
	return Compact(source.NewFile("<string>", code))
}

// Expand reverses compaction, writing every instruction back out as unit
// steps. The result is exactly the recognized characters of the original
// source in their original order
func Expand(insts []Instruction) string {
	var sb strings.Builder

	for _, inst := range insts {
		sb.WriteString(strings.Repeat(string(inst.Op), inst.Count))
	}

	return sb.String()
}
