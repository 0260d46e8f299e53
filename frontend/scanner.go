package frontend

import (
	"unicode/utf8"

	"github.com/isaacev/bfjit/source"
)

/**
 * # Handling of Line terminations
 *
 * The first character in each line is considered to be in column 1. A newline
 * at the end of a line with `N` characters is considered to be in column
 * `N + 1`. Columns count runes, not bytes, so that diagnostics underline the
 * right character in files containing multi-byte comment text.
 */

// Scanner structs hold the state of a scanner instance which consumes source
// code runes one at a time. Since source code documents can be Unicode, the
// scanner must keep track of each rune's byte offset. The scanner also records
// line and column data which it emits along with each rune.
type Scanner struct {
	File     *source.File
	nextByte int // initialized to 0
	nextLine int // ...  ...  ...  1
	nextCol  int // ...  ...  ...  1
}

// NewScanner is a basic constructor function for Scanners which populates
// private fields with the appropriate starting values
func NewScanner(file *source.File) *Scanner {
	return &Scanner{
		File:     file,
		nextByte: 0,
		nextLine: 1,
		nextCol:  1,
	}
}

// Done reports whether every rune of the document has been consumed
func (s *Scanner) Done() bool {
	return s.nextByte >= len(s.File.Contents)
}

// Next returns the next rune and the rune's position, advancing the Scanner
// permanently. Calling Next after Done reports true panics.
func (s *Scanner) Next() (r rune, pos source.Pos) {
	if s.Done() {
		panic("attempt to scan past EOF")
	}

	runeValue, runeWidth := utf8.DecodeRuneInString(s.File.Contents[s.nextByte:])

	pos.Line = s.nextLine
	pos.Col = s.nextCol
	pos.Offset = s.nextByte

	if runeValue == '\n' {
		s.nextLine++
		s.nextCol = 1
	} else {
		s.nextCol++
	}

	s.nextByte += runeWidth

	return runeValue, pos
}
