package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isaacev/bfjit/backend"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[run]
tape-len = 4096
backend = "llir"
ir = true

[compile]
assembly = true
opt = "O1"

[target]
triple = "aarch64-unknown-linux-gnu"

[tools]
llc = "/opt/llvm/bin/llc"

[vm]
step-limit = 1000

[log]
verbosity = 2
color = false
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Run.TapeLen != 4096 {
		t.Errorf("tape-len = %d, want 4096", c.Run.TapeLen)
	}
	if c.Run.Backend != "llir" {
		t.Errorf("backend = %q, want llir", c.Run.Backend)
	}
	if !c.Run.IR || c.Run.DebugInstructions {
		t.Errorf("ir = %t, debug-instructions = %t", c.Run.IR, c.Run.DebugInstructions)
	}
	if !c.Compile.Assembly {
		t.Error("assembly = false, want true")
	}
	if opt, err := c.OptLevel(); err != nil || opt != backend.OptLess {
		t.Errorf("opt = %v (%v), want less", opt, err)
	}
	if target, ok := c.HostTarget(); !ok || target.Triple != "aarch64-unknown-linux-gnu" || target.CPU != "generic" {
		t.Errorf("target = %v, %t", target, ok)
	}
	if c.Tools.LLC != "/opt/llvm/bin/llc" {
		t.Errorf("llc = %q", c.Tools.LLC)
	}
	if c.VM.StepLimit != 1000 {
		t.Errorf("step-limit = %d, want 1000", c.VM.StepLimit)
	}
	if c.Log.Verbosity != 2 || c.Log.Color {
		t.Errorf("log = %+v", c.Log)
	}
	if c.Path != filepath.Join(dir, FileName) {
		t.Errorf("path = %q", c.Path)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[run]\nir = true\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	def := Default()
	if c.Run.TapeLen != def.Run.TapeLen || c.Run.Backend != def.Run.Backend {
		t.Errorf("expected defaults to survive, got %+v", c.Run)
	}
	if opt, _ := c.OptLevel(); opt != backend.OptAggressive {
		t.Errorf("opt = %v, want aggressive", opt)
	}
	if _, ok := c.HostTarget(); ok {
		t.Error("expected no target override")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"syntax", "[run\n", "parse error"},
		{"unknown key", "[run]\ntape-size = 3\n", "unknown setting"},
		{"bad tape", "[run]\ntape-len = 0\n", "tape-len must be positive"},
		{"bad opt", "[compile]\nopt = \"fast\"\n", "unknown optimization level"},
		{"wrong type", "[run]\ntape-len = \"big\"\n", "parse error"},
	}

	for _, test := range tests {
		dir := t.TempDir()
		writeConfig(t, dir, test.content)

		_, err := Load(dir)
		if err == nil || !strings.Contains(err.Error(), test.errText) {
			t.Errorf("%s: expected error containing %q, got %v", test.name, test.errText, err)
		}
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[run]\ntape-len = 10\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if c.Run.TapeLen != 10 {
		t.Errorf("tape-len = %d, want 10", c.Run.TapeLen)
	}
}

func TestFindAndLoadDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// a bfjit.toml above the temp dir would be picked up too
	if c.Path == "" && c.Run.TapeLen != 30000 {
		t.Errorf("tape-len = %d, want 30000", c.Run.TapeLen)
	}
}
