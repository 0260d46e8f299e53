//go:build llvm

// Package llvm is the native backend. It drives LLVM through cgo: programs
// run in-process through MCJIT and are lowered for the host with a target
// machine. Building it requires the LLVM development libraries, so it is
// only compiled with the `llvm` build tag.
package llvm

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"unsafe"

	"github.com/isaacev/bfjit/backend"
	"github.com/tliron/commonlog"
	"tinygo.org/x/go-llvm"
)

// Name is the name the backend is registered under
const Name = "llvm"

const flushName = "bfjit.flush"

var log = commonlog.GetLogger("bfjit.llvm")

var initOnce sync.Once

func init() {
	backend.Register(Name, func() (backend.Backend, error) {
		return New()
	})
}

// Backend creates LLVM modules
type Backend struct{}

// New initializes the native target and creates a Backend
func New() (*Backend, error) {
	var err error
	initOnce.Do(func() {
		llvm.LinkInMCJIT()
		if err = llvm.InitializeNativeTarget(); err != nil {
			return
		}
		err = llvm.InitializeNativeAsmPrinter()
	})
	if err != nil {
		return nil, fmt.Errorf("llvm: initialize native target: %w", err)
	}

	return &Backend{}, nil
}

// Name implements backend.Backend
func (b *Backend) Name() string { return Name }

// HostTarget implements backend.Backend with the default triple and the CPU
// LLVM detects on this machine
func (b *Backend) HostTarget() (backend.Target, error) {
	triple := llvm.DefaultTargetTriple()
	if _, err := llvm.GetTargetFromTriple(triple); err != nil {
		return backend.Target{}, fmt.Errorf("llvm: target for %s: %w", triple, err)
	}

	return backend.Target{
		Triple:   triple,
		CPU:      llvm.GetHostCPUName(),
		Features: llvm.GetHostCPUFeatures(),
	}, nil
}

// NewModule implements backend.Backend
func (b *Backend) NewModule(name string) (backend.Module, error) {
	ctx := llvm.NewContext()
	return &Module{
		name:    name,
		ctx:     ctx,
		m:       ctx.NewModule(name),
		builder: ctx.NewBuilder(),
		hosts:   map[backend.Host]*callee{},
	}, nil
}

// Module implements backend.Module
type Module struct {
	name      string
	ctx       llvm.Context
	m         llvm.Module
	builder   llvm.Builder
	functions []*Function
	hosts     map[backend.Host]*callee

	// owned is set once an execution engine took over the module
	owned bool
}

func (mod *Module) lower(t backend.Type) (llvm.Type, error) {
	switch t.Kind {
	case backend.Void:
		return mod.ctx.VoidType(), nil
	case backend.Bool:
		return mod.ctx.Int1Type(), nil
	case backend.Byte:
		return mod.ctx.Int8Type(), nil
	case backend.Int32:
		return mod.ctx.Int32Type(), nil
	case backend.Pointer:
		return llvm.PointerType(mod.ctx.Int8Type(), 0), nil
	case backend.Array:
		return llvm.ArrayType(mod.ctx.Int8Type(), t.Len), nil
	default:
		return llvm.Type{}, fmt.Errorf("llvm: cannot lower %s", t)
	}
}

func (mod *Module) mustLower(t backend.Type) llvm.Type {
	lt, err := mod.lower(t)
	if err != nil {
		panic(err)
	}
	return lt
}

// Name implements backend.Module
func (mod *Module) Name() string { return mod.name }

// AddFunction implements backend.Module
func (mod *Module) AddFunction(name string, sig backend.Signature) (backend.Function, error) {
	if !mod.m.NamedFunction(name).IsNil() {
		return nil, fmt.Errorf("llvm: module %s already defines %s", mod.name, name)
	}

	ret, err := mod.lower(sig.Ret)
	if err != nil {
		return nil, err
	}

	params := make([]llvm.Type, len(sig.Params))
	for i, p := range sig.Params {
		if params[i], err = mod.lower(p); err != nil {
			return nil, err
		}
	}

	ft := llvm.FunctionType(ret, params, false)
	fn := &Function{
		name:       name,
		sig:        sig,
		typ:        ft,
		v:          llvm.AddFunction(mod.m, name, ft),
		blockNames: map[string]int{},
	}
	mod.functions = append(mod.functions, fn)
	return fn, nil
}

// DeclareHost implements backend.Module with the C library's getchar and
// putchar
func (mod *Module) DeclareHost(h backend.Host) backend.Callee {
	if c, ok := mod.hosts[h]; ok {
		return c
	}

	i32 := mod.ctx.Int32Type()
	var c *callee
	switch h {
	case backend.HostReadByte:
		ft := llvm.FunctionType(i32, nil, false)
		c = &callee{host: h, typ: ft, v: llvm.AddFunction(mod.m, "getchar", ft)}
	case backend.HostWriteByte:
		ft := llvm.FunctionType(i32, []llvm.Type{i32}, false)
		c = &callee{host: h, typ: ft, v: llvm.AddFunction(mod.m, "putchar", ft)}
	default:
		panic(fmt.Sprintf("llvm: unknown host function %v", h))
	}

	mod.hosts[h] = c
	return c
}

// NewBuilder implements backend.Module
func (mod *Module) NewBuilder(fn backend.Function) (backend.Builder, error) {
	lfn, ok := fn.(*Function)
	if !ok {
		return nil, fmt.Errorf("llvm: %T is not an llvm function", fn)
	}

	for _, own := range mod.functions {
		if own == lfn {
			return &Builder{mod: mod, fn: lfn}, nil
		}
	}

	return nil, fmt.Errorf("llvm: function %s does not belong to module %s", lfn.name, mod.name)
}

// Verify implements backend.Module
func (mod *Module) Verify() error {
	if err := llvm.VerifyModule(mod.m, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("llvm: verify %s: %w", mod.name, err)
	}
	return nil
}

// WriteIR implements backend.Module
func (mod *Module) WriteIR(w io.Writer) error {
	_, err := io.WriteString(w, mod.m.String())
	return err
}

// addFlush defines a function flushing C stdio. Go exits without running the
// C library's exit handlers, so buffered putchar output would be lost
func (mod *Module) addFlush() llvm.Value {
	if fn := mod.m.NamedFunction(flushName); !fn.IsNil() {
		return fn
	}

	ptr := llvm.PointerType(mod.ctx.Int8Type(), 0)
	fflushType := llvm.FunctionType(mod.ctx.Int32Type(), []llvm.Type{ptr}, false)
	fflush := llvm.AddFunction(mod.m, "fflush", fflushType)

	fn := llvm.AddFunction(mod.m, flushName, llvm.FunctionType(mod.ctx.VoidType(), nil, false))
	mod.builder.SetInsertPointAtEnd(mod.ctx.AddBasicBlock(fn, "entry"))
	mod.builder.CreateCall(fflushType, fflush, []llvm.Value{llvm.ConstNull(ptr)}, "")
	mod.builder.CreateRetVoid()
	return fn
}

// Executor implements backend.Module. The execution engine takes ownership
// of the module
func (mod *Module) Executor(opt backend.OptLevel) (backend.Executor, error) {
	if mod.owned {
		return nil, fmt.Errorf("llvm: module %s already has an executor", mod.name)
	}

	flush := mod.addFlush()
	if err := mod.Verify(); err != nil {
		return nil, err
	}

	opts := llvm.NewMCJITCompilerOptions()
	opts.SetMCJITOptimizationLevel(uint(opt))

	engine, err := llvm.NewMCJITCompiler(mod.m, opts)
	if err != nil {
		return nil, fmt.Errorf("llvm: create MCJIT compiler: %w", err)
	}
	mod.owned = true

	log.Debugf("created MCJIT engine for %s (opt %s)", mod.name, opt)
	return &Executor{engine: engine, flush: flush}, nil
}

func codeGenLevel(opt backend.OptLevel) llvm.CodeGenOptLevel {
	switch opt {
	case backend.OptNone:
		return llvm.CodeGenLevelNone
	case backend.OptLess:
		return llvm.CodeGenLevelLess
	case backend.OptDefault:
		return llvm.CodeGenLevelDefault
	default:
		return llvm.CodeGenLevelAggressive
	}
}

// Emit implements backend.Module through a target machine for `target`
func (mod *Module) Emit(w io.Writer, target backend.Target, opt backend.OptLevel, ft backend.FileType) error {
	if err := mod.Verify(); err != nil {
		return err
	}

	t, err := llvm.GetTargetFromTriple(target.Triple)
	if err != nil {
		return fmt.Errorf("llvm: target for %s: %w", target.Triple, err)
	}

	tm := t.CreateTargetMachine(target.Triple, target.CPU, target.Features,
		codeGenLevel(opt), llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	mod.m.SetTarget(target.Triple)
	mod.m.SetDataLayout(td.String())

	codeGenFile := llvm.ObjectFile
	if ft == backend.AssemblyFile {
		codeGenFile = llvm.AssemblyFile
	}

	buf, err := tm.EmitToMemoryBuffer(mod.m, codeGenFile)
	if err != nil {
		return fmt.Errorf("llvm: emit %s for %s: %w", ft, target, err)
	}
	defer buf.Dispose()

	_, err = w.Write(buf.Bytes())
	return err
}

// Dispose implements backend.Module
func (mod *Module) Dispose() {
	mod.builder.Dispose()
	if !mod.owned {
		mod.m.Dispose()
	}
	mod.functions = nil
}

// Executor runs functions through MCJIT
type Executor struct {
	engine llvm.ExecutionEngine
	flush  llvm.Value
	closed bool
}

// Run implements backend.Executor. The tape is pinned for the duration of
// the call since the generated code holds a raw pointer to it
func (e *Executor) Run(fn backend.Function, tape []byte) error {
	lfn, ok := fn.(*Function)
	if !ok {
		return fmt.Errorf("llvm: %T is not an llvm function", fn)
	}

	var args []llvm.GenericValue
	if len(lfn.sig.Params) > 0 {
		if len(tape) == 0 {
			return fmt.Errorf("llvm: %s needs a tape", lfn.name)
		}

		var pinner runtime.Pinner
		pinner.Pin(&tape[0])
		defer pinner.Unpin()

		arg := llvm.NewGenericValueFromPointer(unsafe.Pointer(&tape[0]))
		defer arg.Dispose()
		args = append(args, arg)
	}

	result := e.engine.RunFunction(lfn.v, args)
	result.Dispose()

	e.engine.RunFunction(e.flush, nil).Dispose()
	return nil
}

// Close implements backend.Executor, disposing the engine and its module
func (e *Executor) Close() error {
	if !e.closed {
		e.engine.Dispose()
		e.closed = true
	}
	return nil
}
