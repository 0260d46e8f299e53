package llir

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/codegen"
	"github.com/isaacev/bfjit/frontend"
	"github.com/isaacev/bfjit/source"
)

func compile(t *testing.T, b *Backend, src string, mode codegen.Mode) backend.Module {
	t.Helper()

	mod, err := b.NewModule("test")
	if err != nil {
		t.Fatal(err)
	}

	file := source.NewFile("test.b", src)
	u, err := codegen.NewUnit(mod, file, mode)
	if err != nil {
		t.Fatal(err)
	}
	if err := u.Generate(context.Background(), frontend.Compact(file)); err != nil {
		t.Fatal(err)
	}
	if err := u.Finish(); err != nil {
		t.Fatal(err)
	}

	return mod
}

func irOf(t *testing.T, mod backend.Module) string {
	t.Helper()
	var buf bytes.Buffer
	if err := mod.WriteIR(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestInteractiveIR(t *testing.T) {
	mod := compile(t, New(), ",+[-.>]", codegen.Interactive{TapeLen: 8})
	ir := irOf(t, mod)

	for _, want := range []string{
		"declare i32 @getchar()",
		"declare i32 @putchar(i32",
		"define void @main(i8* %arg0)",
		"%ptr = alloca i8*",
		"call i32 @getchar()",
		"trunc i32",
		"zext i8",
		"getelementptr i8, i8*",
		"icmp eq i8",
		"loop.start:",
		"loop.body:",
		"loop.exit:",
		"ret void",
	} {
		if !strings.Contains(ir, want) {
			t.Errorf("expected %q in\n%s", want, ir)
		}
	}
}

func TestPersistedIR(t *testing.T) {
	mod := compile(t, New(), "-"+strings.Repeat("+", 255), codegen.NewPersisted(16, "unused", false))
	ir := irOf(t, mod)

	for _, want := range []string{
		"define i32 @main()",
		"%tape = alloca [16 x i8]",
		"store [16 x i8] zeroinitializer",
		"sub i8",
		"add i8",
		", -1",
		"ret i32 0",
	} {
		if !strings.Contains(ir, want) {
			t.Errorf("expected %q in\n%s", want, ir)
		}
	}
}

func TestExecutorUnsupported(t *testing.T) {
	mod := compile(t, New(), "+", codegen.Interactive{TapeLen: 1})
	if _, err := mod.Executor(backend.OptAggressive); !errors.Is(err, backend.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	mod, _ := New().NewModule("test")
	fn, err := mod.AddFunction("main", backend.Signature{Ret: backend.VoidType})
	if err != nil {
		t.Fatal(err)
	}
	b, err := mod.NewBuilder(fn)
	if err != nil {
		t.Fatal(err)
	}

	if err := mod.Verify(); err == nil {
		t.Error("expected a function without blocks to fail verification")
	}

	b.SetInsertPoint(b.NewBlock("entry"))
	if err := mod.Verify(); err == nil {
		t.Error("expected an unterminated block to fail verification")
	}

	b.RetVoid()
	if err := mod.Verify(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := mod.AddFunction("main", backend.Signature{Ret: backend.VoidType}); err == nil {
		t.Error("expected duplicate function error")
	}
}

func TestHostTriple(t *testing.T) {
	tests := []struct {
		goos, goarch string
		expected     string
	}{
		{"linux", "amd64", "x86_64-unknown-linux-gnu"},
		{"darwin", "arm64", "aarch64-apple-darwin"},
		{"windows", "386", "i686-pc-windows-msvc"},
	}

	for _, test := range tests {
		triple, err := hostTriple(test.goos, test.goarch)
		if err != nil {
			t.Errorf("%s/%s: %v", test.goos, test.goarch, err)
			continue
		}
		if triple != test.expected {
			t.Errorf("%s/%s: expected %s, got %s", test.goos, test.goarch, test.expected, triple)
		}
	}

	if _, err := hostTriple("plan9", "mips"); err == nil {
		t.Error("expected unknown platform error")
	}
}

func TestHostTargetOverride(t *testing.T) {
	want := backend.Target{Triple: "riscv64-unknown-linux-gnu", CPU: "generic-rv64"}
	got, err := New(WithTarget(want)).HostTarget()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLLCArgs(t *testing.T) {
	target := backend.Target{Triple: "x86_64-unknown-linux-gnu", CPU: "native", Features: "+avx2"}
	args := llcArgs(target, backend.OptAggressive, backend.AssemblyFile, "in.ll", "out.s")

	expected := "-O3 -filetype=asm -mtriple=x86_64-unknown-linux-gnu -mcpu=native -mattr=+avx2 -o out.s in.ll"
	if got := strings.Join(args, " "); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// fakeLLC writes a script standing in for llc that records its arguments in
// the requested output file
func fakeLLC(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "llc")
	script := `#!/bin/sh
args="$*"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
echo "$args" > "$out"
`
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmit(t *testing.T) {
	b := New(WithLLC(fakeLLC(t)))
	mod := compile(t, b, "+.", codegen.NewPersisted(8, "unused", false))

	target := backend.Target{Triple: "x86_64-unknown-linux-gnu", CPU: "native"}
	var out bytes.Buffer
	if err := mod.Emit(&out, target, backend.OptAggressive, backend.ObjectFile); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(out.String(), "-O3 -filetype=obj -mtriple=x86_64-unknown-linux-gnu -mcpu=native") {
		t.Errorf("unexpected llc invocation %q", out.String())
	}

	if !strings.Contains(irOf(t, mod), `target triple = "x86_64-unknown-linux-gnu"`) {
		t.Error("expected the target triple to be recorded in the module")
	}
}

func TestEmitWithoutLLC(t *testing.T) {
	b := New(WithLLC(filepath.Join(t.TempDir(), "missing-llc")))
	mod := compile(t, b, "+", codegen.NewPersisted(8, "unused", false))

	target, err := b.HostTarget()
	if err != nil {
		t.Skip(err)
	}

	if err := mod.Emit(&bytes.Buffer{}, target, backend.OptNone, backend.ObjectFile); err == nil {
		t.Error("expected an error without llc")
	}
}
