package codegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/isaacev/bfjit/backend"
)

// DefaultTapeLen is the classic tape length
const DefaultTapeLen = 30000

// Mode decides where the tape lives and what becomes of the finished entry
// function. The generator itself never depends on which mode is used
type Mode interface {
	// Signature of the entry function
	Signature() backend.Signature

	// SeedTape is called with the builder positioned in the entry block and
	// returns the address of the first tape cell
	SeedTape(b backend.Builder) (backend.Value, error)

	// Finalize terminates the block generation ended in
	Finalize(b backend.Builder)

	// Produce consumes the verified module
	Produce(ctx context.Context, be backend.Backend, mod backend.Module, fn backend.Function) error
}

// Interactive runs the program in-process right after it is generated. The
// tape is allocated by the caller and passed to the entry function
type Interactive struct {
	TapeLen int
	Opt     backend.OptLevel
}

// Signature implements Mode
func (m Interactive) Signature() backend.Signature {
	return backend.Signature{Ret: backend.VoidType, Params: []backend.Type{backend.PointerType}}
}

// SeedTape implements Mode
func (m Interactive) SeedTape(b backend.Builder) (backend.Value, error) {
	return b.Param(0), nil
}

// Finalize implements Mode
func (m Interactive) Finalize(b backend.Builder) {
	b.RetVoid()
}

// Produce implements Mode. The entry function is called once, synchronously,
// with a fresh zeroed tape
func (m Interactive) Produce(ctx context.Context, be backend.Backend, mod backend.Module, fn backend.Function) error {
	if m.TapeLen <= 0 {
		return fmt.Errorf("invalid tape length %d", m.TapeLen)
	}

	exec, err := mod.Executor(m.Opt)
	if err != nil {
		return fmt.Errorf("%s: create executor: %w", be.Name(), err)
	}
	defer exec.Close()

	tape := make([]byte, m.TapeLen)
	log.Infof("running %s with a %d byte tape", fn.Name(), m.TapeLen)

	if err := exec.Run(fn, tape); err != nil {
		return fmt.Errorf("%s: run %s: %w", be.Name(), fn.Name(), err)
	}

	return nil
}

// Persisted writes the program to disk. The tape is a zeroed array local to
// the entry function, which returns a zero status
type Persisted struct {
	TapeLen  int
	Outfile  string
	Assembly bool
	Opt      backend.OptLevel
}

// NewPersisted returns a Persisted mode at the most aggressive optimization
// level
func NewPersisted(tapeLen int, outfile string, assembly bool) Persisted {
	return Persisted{TapeLen: tapeLen, Outfile: outfile, Assembly: assembly, Opt: backend.OptAggressive}
}

// Signature implements Mode
func (m Persisted) Signature() backend.Signature {
	return backend.Signature{Ret: backend.Int32Type}
}

// SeedTape implements Mode
func (m Persisted) SeedTape(b backend.Builder) (backend.Value, error) {
	if m.TapeLen <= 0 {
		return nil, fmt.Errorf("invalid tape length %d", m.TapeLen)
	}

	tapeType := backend.ArrayType(m.TapeLen)
	tape := b.Alloca(tapeType, "tape")
	b.Store(tape, b.Zero(tapeType))
	return tape, nil
}

// Finalize implements Mode
func (m Persisted) Finalize(b backend.Builder) {
	b.Ret(b.ConstInt(backend.Int32Type, 0))
}

// FileType is the kind of artifact Produce writes
func (m Persisted) FileType() backend.FileType {
	if m.Assembly {
		return backend.AssemblyFile
	}
	return backend.ObjectFile
}

// Produce implements Mode. The artifact is lowered for the backend's host
// target into a temporary file next to Outfile that replaces Outfile only
// once it is complete
func (m Persisted) Produce(ctx context.Context, be backend.Backend, mod backend.Module, fn backend.Function) (err error) {
	if m.Outfile == "" {
		return fmt.Errorf("no output file given")
	}

	target, err := be.HostTarget()
	if err != nil {
		return fmt.Errorf("%s: host target: %w", be.Name(), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.Outfile), "."+filepath.Base(m.Outfile)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	log.Infof("emitting %s for %s at %s optimization", m.FileType(), target, m.Opt)

	if err = mod.Emit(tmp, target, m.Opt, m.FileType()); err != nil {
		return fmt.Errorf("%s: emit %s: %w", be.Name(), m.FileType(), err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", m.Outfile, err)
	}

	if err = os.Rename(tmp.Name(), m.Outfile); err != nil {
		return fmt.Errorf("write %s: %w", m.Outfile, err)
	}

	return nil
}
