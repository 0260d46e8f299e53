// Package config handles bfjit.toml configuration. Every setting has a
// default so a missing file is not an error; command line flags override
// whatever the file says.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/isaacev/bfjit/backend"
)

// FileName is the name of the configuration file
const FileName = "bfjit.toml"

// Config represents a bfjit.toml file
type Config struct {
	Run     Run     `toml:"run"`
	Compile Compile `toml:"compile"`
	Target  Target  `toml:"target"`
	Tools   Tools   `toml:"tools"`
	VM      VM      `toml:"vm"`
	Log     Log     `toml:"log"`

	// Path of the file the configuration was read from, empty for defaults
	Path string `toml:"-"`
}

// Run configures compilation in general
type Run struct {
	TapeLen           int    `toml:"tape-len"`
	Backend           string `toml:"backend"`
	IR                bool   `toml:"ir"`
	DebugInstructions bool   `toml:"debug-instructions"`
}

// Compile configures persisted output
type Compile struct {
	Assembly bool   `toml:"assembly"`
	Opt      string `toml:"opt"`
}

// Target overrides the host target detected by the backend. Only the llir
// backend honors it
type Target struct {
	Triple   string `toml:"triple"`
	CPU      string `toml:"cpu"`
	Features string `toml:"features"`
}

// Tools locates external programs
type Tools struct {
	LLC string `toml:"llc"`
}

// VM configures the vm backend's interpreter
type VM struct {
	StepLimit uint64 `toml:"step-limit"`
}

// Log configures diagnostics output
type Log struct {
	Verbosity int  `toml:"verbosity"`
	Color     bool `toml:"color"`
}

// Default returns the configuration used when no bfjit.toml exists
func Default() *Config {
	return &Config{
		Run: Run{
			TapeLen: 30000,
			Backend: "vm",
		},
		Compile: Compile{
			Opt: backend.OptAggressive.String(),
		},
		Tools: Tools{
			LLC: "llc",
		},
		Log: Log{
			Color: true,
		},
	}
}

// OptLevel parses the configured optimization level
func (c *Config) OptLevel() (backend.OptLevel, error) {
	return backend.ParseOptLevel(c.Compile.Opt)
}

// HostTarget returns the configured target override, if any
func (c *Config) HostTarget() (backend.Target, bool) {
	if c.Target.Triple == "" {
		return backend.Target{}, false
	}

	t := backend.Target{Triple: c.Target.Triple, CPU: c.Target.CPU, Features: c.Target.Features}
	if t.CPU == "" {
		t.CPU = "generic"
	}
	return t, true
}

// Validate reports settings that can never work
func (c *Config) Validate() error {
	if c.Run.TapeLen <= 0 {
		return fmt.Errorf("tape-len must be positive, got %d", c.Run.TapeLen)
	}

	if c.Run.Backend == "" {
		return fmt.Errorf("backend must not be empty")
	}

	if _, err := c.OptLevel(); err != nil {
		return err
	}

	return nil
}

// Load parses a bfjit.toml file from the given directory. Settings missing
// from the file keep their defaults
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown setting %q in %s", undecoded[0].String(), path)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	return c, nil
}

// FindAndLoad walks up from startDir to find a bfjit.toml file, then loads
// and returns it. The defaults are returned if no file is found
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
