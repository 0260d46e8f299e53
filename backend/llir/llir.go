// Package llir is a backend that builds textual LLVM IR in pure Go. It has no
// in-process execution; Emit hands the IR to an external `llc` to produce
// object or assembly files.
package llir

import (
	"fmt"
	"io"
	"runtime"

	"github.com/isaacev/bfjit/backend"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/tliron/commonlog"
)

// Name is the name the backend is registered under
const Name = "llir"

var log = commonlog.GetLogger("bfjit.llir")

func init() {
	backend.Register(Name, func() (backend.Backend, error) {
		return New(), nil
	})
}

// Option configures a Backend
type Option func(*Backend)

// WithLLC sets the path of the llc executable used by Emit
func WithLLC(path string) Option {
	return func(b *Backend) {
		if path != "" {
			b.llc = path
		}
	}
}

// WithTarget replaces the host target derived from the Go runtime
func WithTarget(t backend.Target) Option {
	return func(b *Backend) {
		b.target = &t
	}
}

// Backend creates llir modules
type Backend struct {
	llc    string
	target *backend.Target
}

// New creates an llir backend
func New(opts ...Option) *Backend {
	b := &Backend{llc: "llc"}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements backend.Backend
func (b *Backend) Name() string { return Name }

// HostTarget implements backend.Backend. The triple is derived from GOOS and
// GOARCH, llc resolves the `native` CPU itself
func (b *Backend) HostTarget() (backend.Target, error) {
	if b.target != nil {
		return *b.target, nil
	}

	triple, err := hostTriple(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return backend.Target{}, err
	}

	return backend.Target{Triple: triple, CPU: "native"}, nil
}

var archNames = map[string]string{
	"amd64":   "x86_64",
	"386":     "i686",
	"arm64":   "aarch64",
	"arm":     "armv7",
	"riscv64": "riscv64",
	"ppc64le": "powerpc64le",
	"s390x":   "s390x",
	"wasm":    "wasm32",
}

var osNames = map[string]string{
	"linux":   "unknown-linux-gnu",
	"darwin":  "apple-darwin",
	"windows": "pc-windows-msvc",
	"freebsd": "unknown-freebsd",
	"netbsd":  "unknown-netbsd",
	"openbsd": "unknown-openbsd",
	"js":      "unknown-unknown",
	"wasip1":  "wasi",
}

func hostTriple(goos, goarch string) (string, error) {
	arch, ok := archNames[goarch]
	if !ok {
		return "", fmt.Errorf("llir: no LLVM architecture for GOARCH %s", goarch)
	}

	sys, ok := osNames[goos]
	if !ok {
		return "", fmt.Errorf("llir: no LLVM system for GOOS %s", goos)
	}

	return arch + "-" + sys, nil
}

// NewModule implements backend.Backend
func (b *Backend) NewModule(name string) (backend.Module, error) {
	m := ir.NewModule()
	m.SourceFilename = name
	return &Module{name: name, backend: b, m: m}, nil
}

// Module implements backend.Module
type Module struct {
	name      string
	backend   *Backend
	m         *ir.Module
	functions []*Function

	getchar *ir.Func
	putchar *ir.Func
}

// Name implements backend.Module
func (mod *Module) Name() string { return mod.name }

// AddFunction implements backend.Module
func (mod *Module) AddFunction(name string, sig backend.Signature) (backend.Function, error) {
	for _, fn := range mod.functions {
		if fn.name == name {
			return nil, fmt.Errorf("llir: module %s already defines %s", mod.name, name)
		}
	}

	ret, err := lower(sig.Ret)
	if err != nil {
		return nil, err
	}

	var params []*ir.Param
	for i, p := range sig.Params {
		t, err := lower(p)
		if err != nil {
			return nil, err
		}
		params = append(params, ir.NewParam(fmt.Sprintf("arg%d", i), t))
	}

	fn := &Function{
		name:       name,
		sig:        sig,
		f:          mod.m.NewFunc(name, ret, params...),
		blockNames: map[string]int{},
	}
	mod.functions = append(mod.functions, fn)
	return fn, nil
}

// DeclareHost implements backend.Module. The host functions are the C
// library's getchar and putchar
func (mod *Module) DeclareHost(h backend.Host) backend.Callee {
	switch h {
	case backend.HostReadByte:
		if mod.getchar == nil {
			mod.getchar = mod.m.NewFunc("getchar", types.I32)
		}
		return &callee{host: h, f: mod.getchar}
	case backend.HostWriteByte:
		if mod.putchar == nil {
			mod.putchar = mod.m.NewFunc("putchar", types.I32, ir.NewParam("c", types.I32))
		}
		return &callee{host: h, f: mod.putchar}
	default:
		panic(fmt.Sprintf("llir: unknown host function %v", h))
	}
}

// NewBuilder implements backend.Module
func (mod *Module) NewBuilder(fn backend.Function) (backend.Builder, error) {
	lfn, ok := fn.(*Function)
	if !ok {
		return nil, fmt.Errorf("llir: %T is not an llir function", fn)
	}

	for _, own := range mod.functions {
		if own == lfn {
			return &Builder{fn: lfn}, nil
		}
	}

	return nil, fmt.Errorf("llir: function %s does not belong to module %s", lfn.name, mod.name)
}

// Verify implements backend.Module
func (mod *Module) Verify() error {
	for _, fn := range mod.functions {
		if len(fn.f.Blocks) == 0 {
			return fmt.Errorf("llir: function %s has no body", fn.name)
		}

		for _, blk := range fn.f.Blocks {
			if blk.Term == nil {
				return fmt.Errorf("llir: block %%%s in function %s has no terminator", blk.LocalName, fn.name)
			}
		}
	}

	return nil
}

// WriteIR implements backend.Module
func (mod *Module) WriteIR(w io.Writer) error {
	_, err := io.WriteString(w, mod.m.String())
	return err
}

// Executor implements backend.Module. Textual IR can't be run in-process
func (mod *Module) Executor(opt backend.OptLevel) (backend.Executor, error) {
	return nil, fmt.Errorf("llir: in-process execution: %w", backend.ErrUnsupported)
}

// Dispose implements backend.Module
func (mod *Module) Dispose() {
	mod.functions = nil
	mod.m = ir.NewModule()
}
