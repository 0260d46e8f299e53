package source

import (
	"strings"
)

// File represents a chunk of source code to be processed by the front-end. The
// "Contents" field is a raw string representation of the file's contents. The
// "Lines" field is a cached slice of the file's contents split by '\n' so that
// diagnostics aren't required to repeatedly split the contents.
type File struct {
	Filename string
	Contents string
	Lines    []string
}

// NewFile builds a File from a name and the raw contents read from disk (or
// typed at a prompt) and caches the split lines
func NewFile(filename string, contents string) *File {
	return &File{
		Filename: filename,
		Contents: contents,
		Lines:    strings.SplitAfter(contents, "\n"),
	}
}
