package codegen

import (
	"os"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/backend/vm"
)

// foreignTarget is a vm backend that claims to run on a machine the vm
// cannot emit code for
type foreignTarget struct {
	backend.Backend
}

func (foreignTarget) HostTarget() (backend.Target, error) {
	return backend.Target{Triple: "x86_64-unknown-linux-gnu", CPU: "native"}, nil
}

func loadObject(path string) (*vm.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return vm.Load(f)
}

func readFile(path string) (string, error) {
	buf, err := os.ReadFile(path)
	return string(buf), err
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
