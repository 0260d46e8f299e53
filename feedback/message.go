package feedback

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/isaacev/bfjit/source"
)

const (
	warningColors = iota
	errorColors
	helperColors
	noColors
)

// Message is the interface for all Warnings and Errors that can be emitted
// by the stages of the pipeline
type Message interface {
	Make(withColor bool) string
}

// Selection represents a region of the source code file along with a
// corresponding description that supplies information as to why a warning or
// error occurred
type Selection struct {
	Description string
	Span        source.Span
}

// Warning classification constants
const (
	LoopWarning string = "loop warning"
)

// Warning messages are emitted by the pipeline to highlight issues which might
// need to be addressed by the source code author but which don't stop the
// program from being compiled
type Warning struct {
	Classification string
	File           *source.File
	What           Selection
	Why            []Selection
}

// Make takes a Warning and produces a fully rendered message with the option of
// using colors to make elements of the message more clear
func (w Warning) Make(withColor bool) string {
	color.NoColor = !withColor
	return makeMessage(w.Classification, w.File, w.What, w.Why, warningColors)
}

// Error classification constants
const (
	StructuralError string = "structural error"
)

// Error messages are more serious than warnings and always stop the pipeline.
// An Error is also a Go `error` so that it can travel up the call stack through
// ordinary error returns. The optional `Cause` is exposed to `errors.Is` so
// callers can tell apart the different kinds of structural failures
type Error struct {
	Classification string
	File           *source.File
	What           Selection
	Why            []Selection
	Cause          error
}

// Make takes an Error and produces a fully rendered message with the option of
// using colors to make elements of the message more clear
func (e Error) Make(withColor bool) string {
	color.NoColor = !withColor
	return makeMessage(e.Classification, e.File, e.What, e.Why, errorColors)
}

// Error implements the `error` interface with a short single line summary. Use
// `Make` for the multi-line rendering with source excerpts
func (e Error) Error() string {
	if e.File == nil {
		return fmt.Sprintf("%s: %s", e.Classification, e.What.Description)
	}

	return fmt.Sprintf("%s:%s: %s: %s",
		e.File.Filename,
		e.What.Span.Start,
		e.Classification,
		e.What.Description)
}

// Unwrap exposes the error's cause
func (e Error) Unwrap() error {
	return e.Cause
}

// makeMessage is a utility function which takes any Message and a corresponding
// File to make a rendered message of the form:
//
//	<message type>: <classification>
//	  --> <filename>:<line number>:<column number>
//	   |
//	 1 | <offending line of source code>
//	   |  ^ <message detailing error>
func makeMessage(classification string, file *source.File, what Selection, why []Selection, colorScheme int) string {
	yellowBold := color.New(color.FgYellow, color.Bold).SprintFunc()
	redBold := color.New(color.FgRed, color.Bold).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	var lines []string

	maxLineNum := getMaxLineNum(append([]Selection{what}, why...)...)
	placeValues := utf8.RuneCountInString(fmt.Sprintf("%d", maxLineNum))

	if colorScheme == warningColors {
		lines = append(lines, yellowBold(fmt.Sprintf("warning: %s", classification)))
	} else {
		lines = append(lines, redBold(fmt.Sprintf("error: %s", classification)))
	}

	lines = append(lines, fmt.Sprintf(" %s%s %s:%d:%d",
		strings.Repeat(" ", placeValues),
		blue("-->"),
		file.Filename,
		what.Span.Start.Line,
		what.Span.Start.Col))

	lines = append(lines, blue(fmt.Sprintf(" %s |", strings.Repeat(" ", placeValues))))

	// Helper selections are printed in the order given, an ellipsis marks any
	// gap of skipped lines between two of them or between the last helper and
	// the primary selection
	prevLine := 0
	for _, sel := range why {
		if prevLine > 0 && prevLine+1 < sel.Span.Start.Line {
			lines = append(lines, fmt.Sprintf(" %s%s", strings.Repeat(" ", placeValues), blue("...")))
		}

		lines = append(lines, sourceCodeSelection(file, sel, helperColors, placeValues)...)
		prevLine = sel.Span.End.Line
	}

	if prevLine > 0 && prevLine+1 < what.Span.Start.Line {
		lines = append(lines, fmt.Sprintf(" %s%s", strings.Repeat(" ", placeValues), blue("...")))
	}

	lines = append(lines, sourceCodeSelection(file, what, colorScheme, placeValues)...)
	return strings.Join(lines, "\n")
}

// sourceCodeSelection extracts the lines covered by a Selection and renders
// them with line numbers, followed by an underline and the selection's
// description
func sourceCodeSelection(file *source.File, sel Selection, colorScheme int, placeValues int) (lines []string) {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	first, last := sel.Span.Start.Line, sel.Span.End.Line
	if last > len(file.Lines) {
		last = len(file.Lines)
	}
	if first < 1 || first > last {
		return nil
	}

	// Every selection's margin is shifted to the widest margin needed by the
	// largest line number in ANY selection of the message so that the gutters
	// line up
	numMargFmt := fmt.Sprintf("%%%dd", placeValues)
	emptyMarg := strings.Repeat(" ", placeValues)

	for i, srcLine := range file.Lines[first-1 : last] {
		lineNum := first + i
		srcLine = strings.Replace(srcLine, "\n", " ", -1)

		focusStart := 1
		if lineNum == sel.Span.Start.Line {
			focusStart = sel.Span.Start.Col
		}

		focusEnd := utf8.RuneCountInString(srcLine) + 1
		if lineNum == sel.Span.End.Line {
			focusEnd = sel.Span.End.Col + 1
		}

		prefix, focus, suffix := highlightSourceLine(srcLine, focusStart, focusEnd)

		switch colorScheme {
		case warningColors:
			focus = yellow(focus)
		case errorColors:
			focus = red(focus)
		case helperColors:
			focus = blue(focus)
		}

		lines = append(lines, fmt.Sprintf(" %s %s %s%s%s", blue(fmt.Sprintf(numMargFmt, lineNum)), blue("|"), prefix, focus, suffix))
	}

	if sel.Description == "" {
		return lines
	}

	var underlineChar string
	var desc string

	switch colorScheme {
	case warningColors:
		underlineChar = yellow("^")
		desc = yellow(sel.Description)
	case errorColors:
		underlineChar = red("^")
		desc = red(sel.Description)
	default:
		underlineChar = blue("-")
		desc = blue(sel.Description)
	}

	// Multi-line selections are underlined from the start column to the end of
	// the first line only
	width := 1
	if sel.Span.End.Line == sel.Span.Start.Line && sel.Span.End.Col >= sel.Span.Start.Col {
		width = sel.Span.End.Col - sel.Span.Start.Col + 1
	}

	leftPad := strings.Repeat(" ", sel.Span.Start.Col-1)
	underline := strings.Repeat(underlineChar, width)
	lines = append(lines, fmt.Sprintf(" %s %s %s%s %s", emptyMarg, blue("|"), leftPad, underline, desc))

	return lines
}

// getMaxLineNum returns the largest line number present in a collection of
// Selection structs
func getMaxLineNum(selections ...Selection) (max int) {
	max = 1

	for _, sel := range selections {
		if sel.Span.End.Line > max {
			max = sel.Span.End.Line
		}
	}

	return max
}

// highlightSourceLine takes a line of source code and 2 column numbers and
// returns the segment before the first column number, the segment between the
// column numbers, and the segment after the last column number
func highlightSourceLine(line string, start, end int) (prefix, focus, suffix string) {
	nextByte := 0

	for i := 1; i < end && nextByte < len(line); i++ {
		runeValue, runeWidth := utf8.DecodeRuneInString(line[nextByte:])
		nextByte += runeWidth

		if i < start {
			prefix += string(runeValue)
		} else {
			focus += string(runeValue)
		}
	}

	suffix = line[nextByte:]

	return prefix, focus, suffix
}
