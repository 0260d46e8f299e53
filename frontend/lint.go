package frontend

import (
	"github.com/isaacev/bfjit/feedback"
	"github.com/isaacev/bfjit/source"
)

// Lint inspects a compacted instruction list for constructs that are legal
// but almost certainly not what the author meant. It never reports bracket
// mismatches, those are found by code generation
func Lint(file *source.File, insts []Instruction) (msgs []feedback.Message) {
	// Every cell starts at zero, so a loop opened before any instruction has
	// touched the tape is skipped entirely. Authors commonly use such a loop
	// as a comment block, which is why this is only a warning
	if len(insts) > 0 && insts[0].Op == OpLoopStart {
		msgs = append(msgs, feedback.Warning{
			Classification: feedback.LoopWarning,
			File:           file,
			What: feedback.Selection{
				Description: "loop is never entered, the tape starts zeroed",
				Span:        insts[0].Span,
			},
		})
	}

	for i := 1; i < len(insts); i++ {
		if insts[i-1].Op != OpLoopStart || insts[i].Op != OpLoopEnd {
			continue
		}

		msgs = append(msgs, feedback.Warning{
			Classification: feedback.LoopWarning,
			File:           file,
			What: feedback.Selection{
				Description: "empty loop never terminates if entered with a nonzero cell",
				Span:        insts[i].Span,
			},
			Why: []feedback.Selection{{
				Description: "loop opened here",
				Span:        insts[i-1].Span,
			}},
		})
	}

	return msgs
}
