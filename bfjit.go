package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/backend/llir"
	"github.com/isaacev/bfjit/backend/vm"
	"github.com/isaacev/bfjit/codegen"
	"github.com/isaacev/bfjit/config"
	"github.com/isaacev/bfjit/feedback"
	"github.com/isaacev/bfjit/frontend"
	"github.com/isaacev/bfjit/source"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"
	"github.com/urfave/cli"

	_ "github.com/tliron/commonlog/simple"
)

var errorNoColor bool
var verbose bool

// exitStatus carries the status returned by an executed object
type exitStatus int

func (s exitStatus) Error() string {
	return fmt.Sprintf("program exited with status %d", int(s))
}

func readSourceFile(c *cli.Context) (*source.File, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one source file, got %d", c.NArg())
	}

	filename, err := filepath.Abs(c.Args().First())
	if err != nil {
		return nil, fmt.Errorf("could not find '%s': %w", c.Args().First(), err)
	}

	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return source.NewFile(filename, string(buf)), nil
}

// loadConfig reads bfjit.toml relative to `dir` and lets the command's flags
// override it
func loadConfig(c *cli.Context, dir string) (*config.Config, error) {
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}

	if c.IsSet("tape-len") {
		cfg.Run.TapeLen = c.Int("tape-len")
	}
	if c.IsSet("backend") {
		cfg.Run.Backend = c.String("backend")
	}
	if c.IsSet("step-limit") {
		cfg.VM.StepLimit = c.Uint64("step-limit")
	}
	if c.Bool("ir") {
		cfg.Run.IR = true
	}
	if c.Bool("debug-instructions") {
		cfg.Run.DebugInstructions = true
	}
	if c.Bool("asm") {
		cfg.Compile.Assembly = true
	}
	if errorNoColor {
		cfg.Log.Color = false
	}
	if verbose && cfg.Log.Verbosity < 2 {
		cfg.Log.Verbosity = 2
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	commonlog.Configure(cfg.Log.Verbosity, nil)
	color.NoColor = !cfg.Log.Color
	return cfg, nil
}

// targetOverride replaces the host target a backend reports with the one
// configured in bfjit.toml
type targetOverride struct {
	backend.Backend
	target backend.Target
}

func (t targetOverride) HostTarget() (backend.Target, error) {
	return t.target, nil
}

func newBackend(cfg *config.Config) (backend.Backend, error) {
	switch cfg.Run.Backend {
	case vm.Name:
		var opts []vm.Option
		if cfg.VM.StepLimit > 0 {
			opts = append(opts, vm.WithStepLimit(cfg.VM.StepLimit))
		}
		return vm.New(opts...), nil
	case llir.Name:
		opts := []llir.Option{llir.WithLLC(cfg.Tools.LLC)}
		if target, ok := cfg.HostTarget(); ok {
			opts = append(opts, llir.WithTarget(target))
		}
		return llir.New(opts...), nil
	}

	be, err := backend.Lookup(cfg.Run.Backend)
	if err != nil {
		return nil, err
	}

	if target, ok := cfg.HostTarget(); ok {
		return targetOverride{Backend: be, target: target}, nil
	}
	return be, nil
}

func newMode(c *cli.Context, cfg *config.Config) (codegen.Mode, error) {
	opt, err := cfg.OptLevel()
	if err != nil {
		return nil, err
	}

	if outfile := c.String("outfile"); outfile != "" {
		mode := codegen.NewPersisted(cfg.Run.TapeLen, outfile, cfg.Compile.Assembly)
		mode.Opt = opt
		return mode, nil
	}

	return codegen.Interactive{TapeLen: cfg.Run.TapeLen, Opt: opt}, nil
}

func runFile(ctx context.Context, c *cli.Context) error {
	file, err := readSourceFile(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c, filepath.Dir(file.Filename))
	if err != nil {
		return err
	}

	for _, msg := range frontend.Lint(file, frontend.Compact(file)) {
		fmt.Fprintln(os.Stderr, msg.Make(cfg.Log.Color))
	}

	be, err := newBackend(cfg)
	if err != nil {
		return err
	}

	mode, err := newMode(c, cfg)
	if err != nil {
		return err
	}

	var opts codegen.Options
	if cfg.Run.IR {
		opts.IR = os.Stderr
	}
	if cfg.Run.DebugInstructions {
		opts.Instructions = os.Stderr
	}

	return codegen.Run(ctx, be, file, mode, opts)
}

func execObject(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one object file, got %d", c.NArg())
	}

	filename := c.Args().First()
	cfg, err := loadConfig(c, filepath.Dir(filename))
	if err != nil {
		return err
	}

	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	obj, err := vm.Load(f)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}

	var opts []vm.Option
	if cfg.VM.StepLimit > 0 {
		opts = append(opts, vm.WithStepLimit(cfg.VM.StepLimit))
	}

	exec := vm.NewExecutor(obj, opts...)
	defer exec.Close()

	status, err := exec.Call(codegen.EntryName, nil)
	if err != nil {
		return err
	}
	if status != 0 {
		return exitStatus(status)
	}
	return nil
}

func printStats(w io.Writer, file *source.File) {
	insts := frontend.Compact(file)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(filepath.Base(file.Filename))
	t.AppendHeader(table.Row{"Op", "Char", "Instructions", "Source chars"})

	runs, total := 0, 0
	for _, stat := range frontend.Summarize(insts) {
		t.AppendRow(table.Row{stat.Op, string(stat.Op), stat.Runs, stat.Total})
		runs += stat.Runs
		total += stat.Total
	}

	t.AppendFooter(table.Row{"", "", runs, total})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// report prints `err` to stderr. Source-located errors are rendered with
// their excerpt
func report(err error) {
	var fe feedback.Error
	if errors.As(err, &fe) {
		fmt.Fprintln(os.Stderr, fe.Make(!color.NoColor))
		return
	}

	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	atexit.Register(stop)

	app := cli.NewApp()
	app.Name = "bfjit"
	app.Usage = "compile and run brainfuck programs"

	noColorFlag := cli.BoolFlag{
		Name:        "no-color",
		Usage:       "hide colors in error and warning messages",
		Destination: &errorNoColor,
	}

	verboseFlag := cli.BoolFlag{
		Name:        "v",
		Usage:       "log what the compiler is doing",
		Destination: &verbose,
	}

	tapeLenFlag := cli.IntFlag{
		Name:  "tape-len",
		Value: codegen.DefaultTapeLen,
		Usage: "number of cells on the tape",
	}

	stepLimitFlag := cli.Uint64Flag{
		Name:  "step-limit",
		Usage: "abort vm programs after this many instructions (0 is unlimited)",
	}

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Aliases:   []string{"r"},
			Usage:     "Compile a file and run it, or write it to --outfile",
			ArgsUsage: "infile",
			Flags: []cli.Flag{
				tapeLenFlag,
				cli.StringFlag{
					Name:  "outfile, o",
					Usage: "write an object file instead of running the program",
				},
				cli.BoolFlag{
					Name:  "asm",
					Usage: "with --outfile, write assembly instead of an object file",
				},
				cli.BoolFlag{
					Name:  "ir",
					Usage: "show the generated IR",
				},
				cli.StringFlag{
					Name:  "backend",
					Value: vm.Name,
					Usage: fmt.Sprintf("code generator to use %v", backend.Names()),
				},
				cli.BoolFlag{
					Name:  "debug-instructions",
					Usage: "show the compacted instruction list",
				},
				stepLimitFlag,
				noColorFlag,
				verboseFlag,
			},
			Action: func(c *cli.Context) error {
				return runFile(ctx, c)
			},
		},
		{
			Name:      "exec",
			Aliases:   []string{"x"},
			Usage:     "Run an object file written by the vm backend",
			ArgsUsage: "objfile",
			Flags: []cli.Flag{
				stepLimitFlag,
				noColorFlag,
				verboseFlag,
			},
			Action: execObject,
		},
		{
			Name:      "stats",
			Aliases:   []string{"s"},
			Usage:     "Summarize the compacted instructions of a file",
			ArgsUsage: "infile",
			Flags: []cli.Flag{
				noColorFlag,
			},
			Action: func(c *cli.Context) error {
				file, err := readSourceFile(c)
				if err != nil {
					return err
				}
				color.NoColor = errorNoColor
				printStats(os.Stdout, file)
				return nil
			},
		},
	}

	app.Action = func(c *cli.Context) error {
		if c.NArg() == 0 {
			cli.ShowAppHelp(c)
			return nil
		}
		return runFile(ctx, c)
	}

	if err := app.Run(os.Args); err != nil {
		var status exitStatus
		if errors.As(err, &status) {
			atexit.Exit(int(status))
		}

		report(err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
