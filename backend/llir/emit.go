package llir

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/isaacev/bfjit/backend"
)

// llcArgs builds the llc command line lowering `input` into `output`
func llcArgs(target backend.Target, opt backend.OptLevel, ft backend.FileType, input, output string) []string {
	filetype := "obj"
	if ft == backend.AssemblyFile {
		filetype = "asm"
	}

	args := []string{
		fmt.Sprintf("-O%d", int(opt)),
		"-filetype=" + filetype,
		"-mtriple=" + target.Triple,
	}

	if target.CPU != "" {
		args = append(args, "-mcpu="+target.CPU)
	}
	if target.Features != "" {
		args = append(args, "-mattr="+target.Features)
	}

	return append(args, "-o", output, input)
}

// Emit implements backend.Module by writing the IR to a scratch directory and
// running llc on it
func (mod *Module) Emit(w io.Writer, target backend.Target, opt backend.OptLevel, ft backend.FileType) error {
	if err := mod.Verify(); err != nil {
		return err
	}

	llc, err := exec.LookPath(mod.backend.llc)
	if err != nil {
		return fmt.Errorf("llir: cannot find llc: %w", err)
	}

	dir, err := os.MkdirTemp("", "bfjit-llir-")
	if err != nil {
		return fmt.Errorf("llir: %w", err)
	}
	defer os.RemoveAll(dir)

	mod.m.TargetTriple = target.Triple

	input := filepath.Join(dir, "module.ll")
	if err := os.WriteFile(input, []byte(mod.m.String()), 0644); err != nil {
		return fmt.Errorf("llir: write IR: %w", err)
	}

	output := filepath.Join(dir, "module.out")
	args := llcArgs(target, opt, ft, input, output)
	log.Debugf("running %s %s", llc, strings.Join(args, " "))

	cmd := exec.Command(llc, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("llc for %s: %s: %w", target, strings.TrimSpace(string(out)), err)
	}

	f, err := os.Open(output)
	if err != nil {
		return fmt.Errorf("llir: read llc output: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("llir: copy llc output: %w", err)
	}

	return nil
}
