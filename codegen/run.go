package codegen

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/frontend"
	"github.com/isaacev/bfjit/source"
)

// Options are the debugging aids Run supports. Nil writers disable the
// corresponding dump
type Options struct {
	// IR receives the module's IR once the entry function is terminated and
	// verified, before the mode produces anything
	IR io.Writer

	// Instructions receives the compacted instruction list
	Instructions io.Writer
}

// Run compiles `file` with `be` and hands the result to `mode`. The backend
// module only lives for the duration of the call
func Run(ctx context.Context, be backend.Backend, file *source.File, mode Mode, opts Options) error {
	insts := frontend.Compact(file)
	log.Debugf("compacted %s into %d instructions", file.Filename, len(insts))

	if opts.Instructions != nil {
		if _, err := io.WriteString(opts.Instructions, frontend.Stringify(insts)); err != nil {
			return fmt.Errorf("dump instructions: %w", err)
		}
	}

	mod, err := be.NewModule(moduleName(file))
	if err != nil {
		return fmt.Errorf("%s: create module: %w", be.Name(), err)
	}
	defer mod.Dispose()

	u, err := NewUnit(mod, file, mode)
	if err != nil {
		return fmt.Errorf("%s: %w", be.Name(), err)
	}

	if err := u.Generate(ctx, insts); err != nil {
		return err
	}

	if err := u.Finish(); err != nil {
		return err
	}

	if opts.IR != nil {
		if err := mod.WriteIR(opts.IR); err != nil {
			return fmt.Errorf("dump IR: %w", err)
		}
	}

	return mode.Produce(ctx, be, mod, u.Function())
}

func moduleName(file *source.File) string {
	base := filepath.Base(file.Filename)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" && name != "." {
		return name
	}
	return "bfjit"
}
