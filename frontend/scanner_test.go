package frontend

import (
	"testing"

	"github.com/isaacev/bfjit/source"
)

func TestScannerPositions(t *testing.T) {
	s := NewScanner(source.NewFile("scan.b", "a\nbc"))

	expected := []struct {
		r   rune
		pos source.Pos
	}{
		{'a', source.Pos{Line: 1, Col: 1, Offset: 0}},
		{'\n', source.Pos{Line: 1, Col: 2, Offset: 1}},
		{'b', source.Pos{Line: 2, Col: 1, Offset: 2}},
		{'c', source.Pos{Line: 2, Col: 2, Offset: 3}},
	}

	for _, exp := range expected {
		if s.Done() {
			t.Fatalf("scanner finished early, expected %q", exp.r)
		}

		r, pos := s.Next()
		if r != exp.r || pos != exp.pos {
			t.Errorf("got %q at %+v, want %q at %+v", r, pos, exp.r, exp.pos)
		}
	}

	if !s.Done() {
		t.Error("expected scanner to be done")
	}
}

func TestScannerPanicsPastEOF(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when scanning past EOF")
		}
	}()

	s := NewScanner(source.NewFile("empty.b", ""))
	s.Next()
}
