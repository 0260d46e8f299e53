// Package vm is a portable backend that lowers modules to register machine
// bytecode. Modules can be executed in-process by the bundled interpreter or
// emitted as CBOR encoded object files (or a disassembly listing) that the
// `exec` command runs later.
package vm

import (
	"fmt"
	"io"

	"github.com/isaacev/bfjit/backend"
	"github.com/tliron/commonlog"
)

const (
	// Name is the name the backend is registered under
	Name = "vm"

	// Triple identifies the only target the vm backend emits for
	Triple = "bfvm-unknown-none"
)

var log = commonlog.GetLogger("bfjit.vm")

func init() {
	backend.Register(Name, func() (backend.Backend, error) {
		return New(), nil
	})
}

// Backend creates vm modules
type Backend struct {
	opts []Option
}

// New creates a vm backend. The options configure the Machine executors
// created by its modules use
func New(opts ...Option) *Backend {
	return &Backend{opts: opts}
}

// Name implements backend.Backend
func (b *Backend) Name() string { return Name }

// HostTarget implements backend.Backend. Bytecode is machine independent so
// the host target is the same everywhere
func (b *Backend) HostTarget() (backend.Target, error) {
	return backend.Target{Triple: Triple, CPU: "generic"}, nil
}

// NewModule implements backend.Backend
func (b *Backend) NewModule(name string) (backend.Module, error) {
	return &Module{
		name:    name,
		backend: b,
		hosts:   map[backend.Host]*callee{},
	}, nil
}

// Module implements backend.Module
type Module struct {
	name      string
	backend   *Backend
	functions []*Function
	hosts     map[backend.Host]*callee
	disposed  bool
}

// Name implements backend.Module
func (m *Module) Name() string { return m.name }

// AddFunction implements backend.Module
func (m *Module) AddFunction(name string, sig backend.Signature) (backend.Function, error) {
	if m.disposed {
		return nil, fmt.Errorf("vm: module %s was disposed", m.name)
	}

	for _, fn := range m.functions {
		if fn.name == name {
			return nil, fmt.Errorf("vm: module %s already defines %s", m.name, name)
		}
	}

	fn := &Function{name: name, sig: sig, blockNames: map[string]int{}}
	m.functions = append(m.functions, fn)
	return fn, nil
}

// DeclareHost implements backend.Module
func (m *Module) DeclareHost(h backend.Host) backend.Callee {
	if m.hosts == nil {
		m.hosts = map[backend.Host]*callee{}
	}

	if c, ok := m.hosts[h]; ok {
		return c
	}

	c := &callee{host: h}
	m.hosts[h] = c
	return c
}

// NewBuilder implements backend.Module
func (m *Module) NewBuilder(fn backend.Function) (backend.Builder, error) {
	vfn, err := m.function(fn)
	if err != nil {
		return nil, err
	}

	return &Builder{fn: vfn}, nil
}

func (m *Module) function(fn backend.Function) (*Function, error) {
	vfn, ok := fn.(*Function)
	if !ok {
		return nil, fmt.Errorf("vm: %T is not a vm function", fn)
	}

	for _, own := range m.functions {
		if own == vfn {
			return vfn, nil
		}
	}

	return nil, fmt.Errorf("vm: function %s does not belong to module %s", vfn.name, m.name)
}

// Verify implements backend.Module
func (m *Module) Verify() error {
	for _, fn := range m.functions {
		if len(fn.blocks) == 0 {
			return fmt.Errorf("vm: function %s has no body", fn.name)
		}

		for _, blk := range fn.blocks {
			if !blk.terminated {
				return fmt.Errorf("vm: block %%%s in function %s has no terminator", blk.name, fn.name)
			}
		}
	}

	return nil
}

// WriteIR implements backend.Module. The listing is LLVM flavoured but
// describes vm instructions
func (m *Module) WriteIR(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "; module %s\n; target %s\n", m.name, Triple); err != nil {
		return err
	}

	for _, h := range []backend.Host{backend.HostReadByte, backend.HostWriteByte} {
		if _, ok := m.hosts[h]; !ok {
			continue
		}

		if h == backend.HostReadByte {
			fmt.Fprintf(w, "declare i8 @%s()\n", h)
		} else {
			fmt.Fprintf(w, "declare void @%s(i8)\n", h)
		}
	}

	for _, fn := range m.functions {
		fmt.Fprintln(w)
		if err := fn.writeIR(w); err != nil {
			return err
		}
	}

	return nil
}

// Assemble verifies the module and converts every function to bytecode
func (m *Module) Assemble() (*Object, error) {
	if err := m.Verify(); err != nil {
		return nil, err
	}

	obj := &Object{
		Format: ObjectFormat,
		Module: m.name,
		Target: backend.Target{Triple: Triple, CPU: "generic"},
	}

	for _, fn := range m.functions {
		prog, err := fn.assemble()
		if err != nil {
			return nil, fmt.Errorf("vm: %w", err)
		}
		obj.Programs = append(obj.Programs, prog)
	}

	return obj, nil
}

// Executor implements backend.Module. The bytecode is not optimized so the
// level only shows up in the log
func (m *Module) Executor(opt backend.OptLevel) (backend.Executor, error) {
	obj, err := m.Assemble()
	if err != nil {
		return nil, err
	}

	log.Debugf("preparing %s for execution (opt %s)", m.name, opt)

	return NewExecutor(obj, m.backend.opts...), nil
}

// Emit implements backend.Module
func (m *Module) Emit(w io.Writer, target backend.Target, opt backend.OptLevel, ft backend.FileType) error {
	if target.Triple != Triple {
		return fmt.Errorf("vm: cannot emit for %s: %w", target.Triple, backend.ErrUnsupported)
	}

	obj, err := m.Assemble()
	if err != nil {
		return err
	}

	log.Debugf("emitting %s as %s (opt %s)", m.name, ft, opt)

	switch ft {
	case backend.ObjectFile:
		_, err := obj.WriteTo(w)
		return err
	case backend.AssemblyFile:
		fmt.Fprintf(w, "; module %s\n; target %s\n", obj.Module, obj.Target)
		for _, prog := range obj.Programs {
			fmt.Fprintln(w)
			if err := Disassemble(w, prog); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("vm: cannot emit %s: %w", ft, backend.ErrUnsupported)
	}
}

// Dispose implements backend.Module
func (m *Module) Dispose() {
	m.functions = nil
	m.hosts = nil
	m.disposed = true
}

// Executor runs the programs of an assembled Object
type Executor struct {
	obj     *Object
	machine *Machine
}

// NewExecutor creates an Executor for `obj`. It is also how the `exec`
// command runs object files loaded from disk
func NewExecutor(obj *Object, opts ...Option) *Executor {
	return &Executor{obj: obj, machine: NewMachine(opts...)}
}

// Run implements backend.Executor
func (e *Executor) Run(fn backend.Function, tape []byte) error {
	_, err := e.Call(fn.Name(), tape)
	return err
}

// Call runs the function called `name` and returns its result
func (e *Executor) Call(name string, tape []byte) (int64, error) {
	prog, err := e.obj.Lookup(name)
	if err != nil {
		return 0, err
	}

	return e.machine.Call(prog, tape)
}

// Close implements backend.Executor
func (e *Executor) Close() error {
	return nil
}
