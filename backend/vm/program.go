package vm

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/isaacev/bfjit/backend"
)

// ObjectFormat identifies the serialized object layout
const ObjectFormat = "bfvm/1"

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Program is the assembled form of one function: its signature, how many
// registers a call frame needs and the raw bytecode to execute
type Program struct {
	Name      string            `cbor:"1,keyasint"`
	Signature backend.Signature `cbor:"2,keyasint"`
	NumRegs   uint32            `cbor:"3,keyasint"`
	Bytecode  Bytecode          `cbor:"4,keyasint"`
}

// Bytecode is a byte-slice of raw compiled instructions. Bytecode can't be
// executed without the context of its Program
type Bytecode struct {
	Size  int    `cbor:"1,keyasint"`
	Bytes []byte `cbor:"2,keyasint"`
}

// Write implements io.Writer for the Bytecode struct so that during assembly
// instructions can more easily write their bytes to the byte buffer
func (b *Bytecode) Write(p []byte) (n int, err error) {
	b.Size += len(p)
	b.Bytes = append(b.Bytes, p...)
	return len(p), nil
}

// Object is the persisted form of a whole module, what the vm backend emits
// as an object file
type Object struct {
	Format   string         `cbor:"1,keyasint"`
	Module   string         `cbor:"2,keyasint"`
	Target   backend.Target `cbor:"3,keyasint"`
	Programs []*Program     `cbor:"4,keyasint"`
}

// Lookup finds the program for the function called `name`
func (o *Object) Lookup(name string) (*Program, error) {
	for _, prog := range o.Programs {
		if prog.Name == name {
			return prog, nil
		}
	}

	return nil, fmt.Errorf("object %s has no function %q", o.Module, name)
}

// WriteTo encodes the object with canonical CBOR
func (o *Object) WriteTo(w io.Writer) (int64, error) {
	data, err := cborEncMode.Marshal(o)
	if err != nil {
		return 0, fmt.Errorf("vm: marshal object: %w", err)
	}

	n, err := w.Write(data)
	return int64(n), err
}

// Load decodes an object previously written by the vm backend
func Load(r io.Reader) (*Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var o Object
	if err := cbor.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("vm: unmarshal object: %w", err)
	}

	if o.Format != ObjectFormat {
		return nil, fmt.Errorf("vm: unsupported object format %q", o.Format)
	}

	for _, prog := range o.Programs {
		if prog.Bytecode.Size != len(prog.Bytecode.Bytes) {
			return nil, fmt.Errorf("vm: corrupt bytecode in %s", prog.Name)
		}
	}

	return &o, nil
}
