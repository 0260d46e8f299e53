package backend

import (
	"testing"
)

func TestParseOptLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected OptLevel
		wantErr  bool
	}{
		{"0", OptNone, false},
		{"O3", OptAggressive, false},
		{"aggressive", OptAggressive, false},
		{" Default ", OptDefault, false},
		{"less", OptLess, false},
		{"4", OptNone, true},
		{"fast", OptNone, true},
	}

	for _, tt := range tests {
		got, err := ParseOptLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOptLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseOptLevel(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestParseFileType(t *testing.T) {
	tests := []struct {
		in       string
		expected FileType
		wantErr  bool
	}{
		{"object", ObjectFile, false},
		{"obj", ObjectFile, false},
		{"ASM", AssemblyFile, false},
		{"assembly", AssemblyFile, false},
		{"elf", ObjectFile, true},
	}

	for _, tt := range tests {
		got, err := ParseFileType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFileType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseFileType(%q) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		typ      Type
		expected string
	}{
		{VoidType, "void"},
		{BoolType, "i1"},
		{ByteType, "i8"},
		{Int32Type, "i32"},
		{PointerType, "ptr"},
		{ArrayType(30000), "[30000 x i8]"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.expected {
			t.Errorf("got %q, want %q", got, tt.expected)
		}
	}

	sig := Signature{Ret: VoidType, Params: []Type{PointerType}}
	if got := sig.String(); got != "void (ptr)" {
		t.Errorf("unexpected signature string %q", got)
	}
}
