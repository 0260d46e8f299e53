package frontend

import (
	"fmt"
	"strings"
)

// Stringify renders a compacted instruction list in a short human-readable
// form used by the `--debug-instructions` flag. Mergeable instructions print
// their count (`+3 >2`), loop bodies are indented one level per nesting depth
// and every instruction gets its own line prefixed by its source position
func Stringify(insts []Instruction) string {
	var lines []string
	depth := 0

	for _, inst := range insts {
		if inst.Op == OpLoopEnd && depth > 0 {
			depth--
		}

		lines = append(lines, fmt.Sprintf("%6s  %s%s",
			inst.Span.Start,
			strings.Repeat("  ", depth),
			inst))

		if inst.Op == OpLoopStart {
			depth++
		}
	}

	return strings.Join(lines, "\n")
}

// Stat summarizes all instructions of one operation kind
type Stat struct {
	Op    Op
	Runs  int // number of compacted instructions
	Total int // number of source characters folded into those instructions
}

// Summarize counts the instructions of each kind. The result always holds one
// Stat per recognized operation, in the order of `Ops`
func Summarize(insts []Instruction) []Stat {
	index := make(map[Op]int, len(Ops))
	stats := make([]Stat, len(Ops))

	for i, op := range Ops {
		index[op] = i
		stats[i].Op = op
	}

	for _, inst := range insts {
		stat := &stats[index[inst.Op]]
		stat.Runs++
		stat.Total += inst.Count
	}

	return stats
}
