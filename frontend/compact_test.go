package frontend

import (
	"strings"
	"testing"

	"github.com/isaacev/bfjit/source"
)

func render(insts []Instruction) string {
	parts := make([]string, len(insts))
	for i, inst := range insts {
		parts[i] = inst.String()
	}
	return strings.Join(parts, " ")
}

func recognized(code string) string {
	var sb strings.Builder
	for _, r := range code {
		if _, ok := OpFor(r); ok {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func TestCompact(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{"empty", "", ""},
		{"single", "+", "+1"},
		{"run", "++++", "+4"},
		{"pointer runs", ">>><<", ">3 <2"},
		{"alternating", "+-+-", "+1 -1 +1 -1"},
		{"output never merges", "...", ". . ."},
		{"input never merges", ",,", ", ,"},
		{"brackets never merge", "[[]]", "[ [ ] ]"},
		{"comment breaks run", "+a+", "+1 +1"},
		{"whitespace breaks run", "++ ++\n+", "+2 +2 +1"},
		{"only comments", "hello world", ""},
		{"leading comment", "x++", "+2"},
		{"trailing comment", "++x", "+2"},
		{"trailing instruction kept", "abc-", "-1"},
		{"clear loop", "+[-]", "+1 [ -1 ]"},
		{"mixed", "++>[-<+>]<.", "+2 >1 [ -1 <1 +1 >1 ] <1 ."},
		{"unicode commentary", "é+é+", "+1 +1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(CompactString(tt.code))
			if got != tt.expected {
				t.Errorf("Compact(%q) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}

func TestCompactNeverEmitsPlaceholders(t *testing.T) {
	for _, code := range []string{"", "a", "a+", "+a", "\n\n[", "]", "x.y"} {
		for _, inst := range CompactString(code) {
			if inst.Count <= 0 {
				t.Errorf("Compact(%q) produced %v with count %d", code, inst.Op, inst.Count)
			}
			if _, ok := opNames[inst.Op]; !ok {
				t.Errorf("Compact(%q) produced unrecognized op %v", code, inst.Op)
			}
			if !inst.Op.Mergeable() && inst.Count != 1 {
				t.Errorf("Compact(%q) merged %v", code, inst.Op)
			}
		}
	}
}

func TestCompactSpans(t *testing.T) {
	insts := Compact(source.NewFile("spans.b", "++\n é+"))

	if len(insts) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(insts))
	}

	first := insts[0].Span
	if first.Start != (source.Pos{Line: 1, Col: 1, Offset: 0}) {
		t.Errorf("unexpected start %+v", first.Start)
	}
	if first.End != (source.Pos{Line: 1, Col: 2, Offset: 1}) {
		t.Errorf("unexpected end %+v", first.End)
	}

	// 'é' is two bytes wide but only one column
	second := insts[1].Span
	if second.Start != (source.Pos{Line: 2, Col: 3, Offset: 6}) {
		t.Errorf("unexpected start %+v", second.Start)
	}
}

func TestExpandRoundTrip(t *testing.T) {
	for _, code := range []string{
		"",
		"++++",
		"+a+",
		"Hello, World! [->+<]",
		">>>>>>>>>>>>>>>>>>>>>>>>>>>>>><<<",
		"[[[[]]]]...,,,",
	} {
		if got := Expand(CompactString(code)); got != recognized(code) {
			t.Errorf("Expand(Compact(%q)) = %q, want %q", code, got, recognized(code))
		}
	}
}

func TestCompactIdempotent(t *testing.T) {
	for _, code := range []string{"+a+", "++ --", "[-]>>x>", ""} {
		once := CompactString(Expand(CompactString(code)))
		twice := CompactString(Expand(once))

		if render(once) != render(twice) {
			t.Errorf("compaction of %q not idempotent: %q then %q", code, render(once), render(twice))
		}
	}
}

func FuzzCompact(f *testing.F) {
	seeds := []string{
		"", "+", "++++", "+[-]", ",.", "[]", "]", "[", "+a+",
		"++>[-<+>]<.", "\xff+\xfe", "é+é", "\n\n\t",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, code string) {
		insts := CompactString(code)

		if got := Expand(insts); got != recognized(code) {
			t.Fatalf("round trip of %q: got %q, want %q", code, got, recognized(code))
		}

		for _, inst := range insts {
			if inst.Count <= 0 {
				t.Fatalf("zero count instruction in %q", code)
			}
		}

		once := CompactString(Expand(insts))
		if render(CompactString(Expand(once))) != render(once) {
			t.Fatalf("compaction of %q not idempotent", code)
		}
	})
}
