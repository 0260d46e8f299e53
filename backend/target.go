package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// Target describes the machine a Module is lowered for
type Target struct {
	Triple   string
	CPU      string
	Features string
}

func (t Target) String() string {
	if t.Features == "" {
		return fmt.Sprintf("%s (%s)", t.Triple, t.CPU)
	}
	return fmt.Sprintf("%s (%s, %s)", t.Triple, t.CPU, t.Features)
}

// OptLevel is how hard the backend works on the code it lowers
type OptLevel int

// Optimization levels, mirroring -O0 to -O3
const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

var optNames = []string{"none", "less", "default", "aggressive"}

func (o OptLevel) String() string {
	if o >= 0 && int(o) < len(optNames) {
		return optNames[o]
	}
	return fmt.Sprintf("OptLevel(%d)", int(o))
}

// ParseOptLevel accepts either a level name or a digit from 0 to 3
func ParseOptLevel(s string) (OptLevel, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "O"))

	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(optNames) {
		return OptLevel(n), nil
	}

	for i, name := range optNames {
		if s == name {
			return OptLevel(i), nil
		}
	}

	return OptNone, fmt.Errorf("unknown optimization level %q", s)
}

// FileType selects the artifact Emit produces
type FileType int

// Artifact kinds
const (
	ObjectFile FileType = iota
	AssemblyFile
)

func (ft FileType) String() string {
	switch ft {
	case ObjectFile:
		return "object"
	case AssemblyFile:
		return "assembly"
	default:
		return fmt.Sprintf("FileType(%d)", int(ft))
	}
}

// ParseFileType accepts "object"/"obj" or "assembly"/"asm"
func ParseFileType(s string) (FileType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "object", "obj", "o":
		return ObjectFile, nil
	case "assembly", "asm", "s":
		return AssemblyFile, nil
	}

	return ObjectFile, fmt.Errorf("unknown output file type %q", s)
}
