package vm

import (
	"fmt"
	"io"

	"github.com/isaacev/bfjit/backend"
)

const (
	hostReadByte  uint8 = uint8(backend.HostReadByte)
	hostWriteByte uint8 = uint8(backend.HostWriteByte)
)

// Function collects the blocks of one function while it is being built. The
// blocks are only turned into bytecode by `assemble`, once every branch
// target is known
type Function struct {
	name       string
	sig        backend.Signature
	blocks     []*block
	blockNames map[string]int
	numRegs    uint32
}

// Name implements backend.Function
func (fn *Function) Name() string { return fn.name }

// Signature implements backend.Function
func (fn *Function) Signature() backend.Signature { return fn.sig }

type block struct {
	name       string
	fn         *Function
	insts      []Instruction
	terminated bool
}

func (b *block) Name() string { return b.name }

type value struct {
	reg  RegisterAddress
	typ  backend.Type
	zero bool // zero array constant, only valid as the value of a Store
}

func (v *value) Type() backend.Type { return v.typ }

type callee struct {
	host backend.Host
}

func (c *callee) Host() backend.Host { return c.host }

// placeholder records a spot in the bytecode holding the address of a block
// that hadn't been laid out yet when the branch was written
type placeholder struct {
	at     BytecodeAddress
	target *block
}

// branch is the terminator of a block. Conditional branches are encoded as a
// BrTrue to the `then` block followed by a BrAlways to the `els` block
type branch struct {
	conditional bool
	test        RegisterAddress
	then        *block
	els         *block
}

// Generate converts this instruction to raw bytes with zeroed addresses
func (br *branch) Generate() []byte {
	if !br.conditional {
		return BrAlways{}.Generate()
	}

	return append(BrTrue{Test: br.test}.Generate(), BrAlways{}.Generate()...)
}

func (br *branch) String() string {
	if !br.conditional {
		return fmt.Sprintf("br label %%%s", br.then.name)
	}
	return fmt.Sprintf("br r%d, label %%%s, label %%%s", br.test, br.then.name, br.els.name)
}

// placeholders lists the address fields of the encoded branch relative to
// its first byte
func (br *branch) placeholders() []placeholder {
	if !br.conditional {
		return []placeholder{{at: 1, target: br.then}}
	}

	return []placeholder{
		{at: 1 + BytecodeAddress(bytesInInt32), target: br.then},
		{at: 2 + 2*BytecodeAddress(bytesInInt32), target: br.els},
	}
}

// assemble lays out every block in creation order and patches the branch
// placeholders with the final block addresses
func (fn *Function) assemble() (*Program, error) {
	if len(fn.blocks) == 0 {
		return nil, fmt.Errorf("function %s has no body", fn.name)
	}

	code := &Bytecode{}
	addrs := make(map[*block]BytecodeAddress, len(fn.blocks))
	var held []placeholder

	for _, blk := range fn.blocks {
		if !blk.terminated {
			return nil, fmt.Errorf("block %%%s in function %s has no terminator", blk.name, fn.name)
		}

		addrs[blk] = BytecodeAddress(code.Size)

		for _, inst := range blk.insts {
			start := BytecodeAddress(code.Size)
			code.Write(inst.Generate())

			if br, ok := inst.(*branch); ok {
				for _, ph := range br.placeholders() {
					ph.at += start
					held = append(held, ph)
				}
			}
		}
	}

	// Overwrite the empty address field at each place-held location
	for _, ph := range held {
		copy(code.Bytes[ph.at:], addressToBytes(addrs[ph.target]))
	}

	log.Debugf("assembled %s: %d bytes, %d registers, %d blocks", fn.name, code.Size, fn.numRegs, len(fn.blocks))

	return &Program{
		Name:      fn.name,
		Signature: fn.sig,
		NumRegs:   fn.numRegs,
		Bytecode:  *code,
	}, nil
}

func (fn *Function) writeIR(w io.Writer) error {
	params := ""
	for i, p := range fn.sig.Params {
		if i > 0 {
			params += ", "
		}
		params += p.String()
	}

	if _, err := fmt.Fprintf(w, "define %s @%s(%s) {\n", fn.sig.Ret, fn.name, params); err != nil {
		return err
	}

	for i, blk := range fn.blocks {
		if i > 0 {
			fmt.Fprintln(w)
		}

		fmt.Fprintf(w, "%s:\n", blk.name)
		for _, inst := range blk.insts {
			fmt.Fprintf(w, "  %s\n", inst)
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// Builder implements backend.Builder for vm functions
type Builder struct {
	fn  *Function
	cur *block
}

// NewBlock appends a new block to the function. Names are made unique by
// appending a counter, the way LLVM does
func (b *Builder) NewBlock(name string) backend.Block {
	n := b.fn.blockNames[name]
	b.fn.blockNames[name] = n + 1

	if n > 0 {
		name = fmt.Sprintf("%s%d", name, n)
	}

	blk := &block{name: name, fn: b.fn}
	b.fn.blocks = append(b.fn.blocks, blk)
	return blk
}

// SetInsertPoint moves the builder to the end of `blk`
func (b *Builder) SetInsertPoint(blk backend.Block) {
	b.cur = b.block(blk)
}

// InsertBlock returns the block instructions are currently appended to
func (b *Builder) InsertBlock() backend.Block {
	if b.cur == nil {
		return nil
	}
	return b.cur
}

func (b *Builder) block(blk backend.Block) *block {
	vb, ok := blk.(*block)
	if !ok || vb.fn != b.fn {
		panic(fmt.Sprintf("vm: block %v does not belong to function %s", blk, b.fn.name))
	}
	return vb
}

func (b *Builder) operand(v backend.Value) *value {
	vv, ok := v.(*value)
	if !ok {
		panic(fmt.Sprintf("vm: foreign value %v", v))
	}
	if vv.zero {
		panic("vm: zero array constant can only be stored")
	}
	return vv
}

func (b *Builder) emit(inst Instruction) {
	if b.cur == nil {
		panic("vm: builder has no insertion point")
	}
	if b.cur.terminated {
		panic(fmt.Sprintf("vm: block %%%s is already terminated", b.cur.name))
	}
	b.cur.insts = append(b.cur.insts, inst)
}

func (b *Builder) terminate(inst Instruction) {
	b.emit(inst)
	b.cur.terminated = true
}

func (b *Builder) newValue(t backend.Type) *value {
	v := &value{reg: RegisterAddress(b.fn.numRegs), typ: t}
	b.fn.numRegs++
	return v
}

func widthOf(t backend.Type) uint8 {
	switch t.Kind {
	case backend.Bool:
		return 1
	case backend.Byte:
		return 8
	case backend.Int32:
		return 32
	default:
		panic(fmt.Sprintf("vm: %s is not an integer type", t))
	}
}

// Param reads argument `i` of the current call
func (b *Builder) Param(i int) backend.Value {
	if i < 0 || i >= len(b.fn.sig.Params) {
		panic(fmt.Sprintf("vm: function %s has no parameter %d", b.fn.name, i))
	}

	v := b.newValue(b.fn.sig.Params[i])
	b.emit(Param{Index: uint32(i), Dest: v.reg})
	return v
}

// Alloca reserves call-local storage and returns a pointer to it
func (b *Builder) Alloca(t backend.Type, name string) backend.Value {
	v := b.newValue(backend.PointerType)

	size := uint32(0)
	if t.Kind == backend.Array {
		size = uint32(t.Len)
	}

	b.emit(Alloca{Size: size, Dest: v.reg})
	return v
}

// Zero returns the zero value of `t`
func (b *Builder) Zero(t backend.Type) backend.Value {
	if t.Kind == backend.Array {
		return &value{typ: t, zero: true}
	}
	return b.ConstInt(t, 0)
}

// ConstInt materializes an integer constant truncated to the width of `t`
func (b *Builder) ConstInt(t backend.Type, n int64) backend.Value {
	v := b.newValue(t)
	b.emit(IntConst{Value: int32(wrap(n, widthOf(t))), Dest: v.reg})
	return v
}

// Load reads a value of type `t` through a pointer
func (b *Builder) Load(t backend.Type, addr backend.Value, name string) backend.Value {
	ptr := b.operand(addr)
	v := b.newValue(t)

	switch t.Kind {
	case backend.Byte:
		b.emit(LoadByte{Addr: ptr.reg, Dest: v.reg})
	case backend.Bool, backend.Int32, backend.Pointer:
		b.emit(LoadSlot{Addr: ptr.reg, Dest: v.reg})
	default:
		panic(fmt.Sprintf("vm: cannot load a value of type %s", t))
	}

	return v
}

// Store writes `v` through a pointer
func (b *Builder) Store(addr backend.Value, v backend.Value) {
	ptr := b.operand(addr)

	if zv, ok := v.(*value); ok && zv.zero {
		b.emit(ZeroFill{Addr: ptr.reg, Size: uint32(zv.typ.Len)})
		return
	}

	val := b.operand(v)
	if val.typ.Kind == backend.Byte {
		b.emit(StoreByte{Addr: ptr.reg, Source: val.reg})
	} else {
		b.emit(StoreSlot{Addr: ptr.reg, Source: val.reg})
	}
}

// Offset moves a pointer by `delta` bytes
func (b *Builder) Offset(addr backend.Value, delta backend.Value, name string) backend.Value {
	ptr := b.operand(addr)
	d := b.operand(delta)
	v := b.newValue(backend.PointerType)
	b.emit(Offset{Addr: ptr.reg, Delta: d.reg, Dest: v.reg})
	return v
}

func (b *Builder) binaryOperands(x, y backend.Value) (*value, *value) {
	l, r := b.operand(x), b.operand(y)
	if l.typ != r.typ {
		panic(fmt.Sprintf("vm: mismatched operand types %s and %s", l.typ, r.typ))
	}
	return l, r
}

// Add returns x + y wrapped to the operands' width
func (b *Builder) Add(x, y backend.Value, name string) backend.Value {
	l, r := b.binaryOperands(x, y)
	v := b.newValue(l.typ)
	b.emit(IntAdd{Width: widthOf(l.typ), Left: l.reg, Right: r.reg, Dest: v.reg})
	return v
}

// Sub returns x - y wrapped to the operands' width
func (b *Builder) Sub(x, y backend.Value, name string) backend.Value {
	l, r := b.binaryOperands(x, y)
	v := b.newValue(l.typ)
	b.emit(IntSub{Width: widthOf(l.typ), Left: l.reg, Right: r.reg, Dest: v.reg})
	return v
}

// ICmpEQ compares two integers for equality
func (b *Builder) ICmpEQ(x, y backend.Value, name string) backend.Value {
	l, r := b.binaryOperands(x, y)
	v := b.newValue(backend.BoolType)
	b.emit(IntEq{Left: l.reg, Right: r.reg, Dest: v.reg})
	return v
}

// Br terminates the current block with a jump to `dest`
func (b *Builder) Br(dest backend.Block) {
	b.terminate(&branch{then: b.block(dest)})
}

// CondBr terminates the current block with a two way branch
func (b *Builder) CondBr(cond backend.Value, then, els backend.Block) {
	c := b.operand(cond)
	b.terminate(&branch{
		conditional: true,
		test:        c.reg,
		then:        b.block(then),
		els:         b.block(els),
	})
}

// Call invokes a host function. readByte returns a Byte value, writeByte
// returns nil
func (b *Builder) Call(c backend.Callee, args []backend.Value, name string) backend.Value {
	switch c.Host() {
	case backend.HostReadByte:
		v := b.newValue(backend.ByteType)
		b.emit(CallHost{Host: hostReadByte, Dest: v.reg})
		return v
	case backend.HostWriteByte:
		if len(args) != 1 {
			panic("vm: writeByte takes exactly one argument")
		}
		b.emit(CallHost{Host: hostWriteByte, Arg: b.operand(args[0]).reg})
		return nil
	default:
		panic(fmt.Sprintf("vm: unknown host function %v", c.Host()))
	}
}

// Ret terminates the current block returning `v`
func (b *Builder) Ret(v backend.Value) {
	b.terminate(Return{Source: b.operand(v).reg})
}

// RetVoid terminates the current block without a return value
func (b *Builder) RetVoid() {
	b.terminate(ReturnVoid{})
}
