package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/backend/llir"
	"github.com/isaacev/bfjit/backend/vm"
	"github.com/isaacev/bfjit/config"
	"github.com/isaacev/bfjit/source"
)

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, source.NewFile("/tmp/hello.b", "+++[->++<]>."))
	out := buf.String()

	for _, want := range []string{"hello.b", "IncrCell", "MoveRight", "LoopStart", "Output"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in\n%s", want, out)
		}
	}
}

func TestNewBackend(t *testing.T) {
	cfg := config.Default()

	be, err := newBackend(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := be.(*vm.Backend); !ok {
		t.Errorf("expected the vm backend, got %T", be)
	}

	cfg.Run.Backend = llir.Name
	cfg.Target.Triple = "aarch64-apple-darwin"
	be, err = newBackend(cfg)
	if err != nil {
		t.Fatal(err)
	}
	target, err := be.HostTarget()
	if err != nil {
		t.Fatal(err)
	}
	if target.Triple != "aarch64-apple-darwin" || target.CPU != "generic" {
		t.Errorf("expected the configured target, got %v", target)
	}

	cfg.Run.Backend = "nonexistent"
	if _, err := newBackend(cfg); err == nil {
		t.Error("expected an unknown backend error")
	}
}

func TestTargetOverride(t *testing.T) {
	want := backend.Target{Triple: "bfvm-unknown-none", CPU: "generic"}
	be := targetOverride{Backend: vm.New(), target: want}

	got, err := be.HostTarget()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
	if be.Name() != vm.Name {
		t.Errorf("expected name %s, got %s", vm.Name, be.Name())
	}
}

func TestExitStatus(t *testing.T) {
	if got := exitStatus(3).Error(); got != "program exited with status 3" {
		t.Errorf("unexpected message %q", got)
	}
}
