//go:build llvm

package llvm

import (
	"fmt"

	"github.com/isaacev/bfjit/backend"
	"tinygo.org/x/go-llvm"
)

// Function implements backend.Function
type Function struct {
	name       string
	sig        backend.Signature
	typ        llvm.Type
	v          llvm.Value
	blockNames map[string]int
}

// Name implements backend.Function
func (fn *Function) Name() string { return fn.name }

// Signature implements backend.Function
func (fn *Function) Signature() backend.Signature { return fn.sig }

type block struct {
	name string
	bb   llvm.BasicBlock
	fn   *Function
}

func (b *block) Name() string { return b.name }

// operand wraps an LLVM value. `array` is set on pointers to the first
// element of an array alloca so the whole array can be cleared
type operand struct {
	v     llvm.Value
	typ   backend.Type
	array llvm.Value
	zero  bool
}

func (o *operand) Type() backend.Type { return o.typ }

type callee struct {
	host backend.Host
	typ  llvm.Type
	v    llvm.Value
}

func (c *callee) Host() backend.Host { return c.host }

// Builder implements backend.Builder with an LLVM IR builder
type Builder struct {
	mod *Module
	fn  *Function
	cur *block
}

func (b *Builder) ir() llvm.Builder {
	if b.cur == nil {
		panic("llvm: builder has no insertion point")
	}
	b.mod.builder.SetInsertPointAtEnd(b.cur.bb)
	return b.mod.builder
}

func (b *Builder) operand(v backend.Value) *operand {
	o, ok := v.(*operand)
	if !ok {
		panic(fmt.Sprintf("llvm: foreign value %v", v))
	}
	if o.zero {
		panic("llvm: zero array constant can only be stored")
	}
	return o
}

func (b *Builder) block(blk backend.Block) *block {
	lb, ok := blk.(*block)
	if !ok || lb.fn != b.fn {
		panic(fmt.Sprintf("llvm: block %v does not belong to function %s", blk, b.fn.name))
	}
	return lb
}

// NewBlock appends a uniquely named block to the function
func (b *Builder) NewBlock(name string) backend.Block {
	n := b.fn.blockNames[name]
	b.fn.blockNames[name] = n + 1
	if n > 0 {
		name = fmt.Sprintf("%s%d", name, n)
	}

	return &block{name: name, bb: b.mod.ctx.AddBasicBlock(b.fn.v, name), fn: b.fn}
}

// SetInsertPoint moves the builder to the end of `blk`
func (b *Builder) SetInsertPoint(blk backend.Block) {
	b.cur = b.block(blk)
}

// InsertBlock returns the current block
func (b *Builder) InsertBlock() backend.Block {
	if b.cur == nil {
		return nil
	}
	return b.cur
}

// Param returns argument `i` of the function
func (b *Builder) Param(i int) backend.Value {
	return &operand{v: b.fn.v.Param(i), typ: b.fn.sig.Params[i]}
}

// Alloca reserves stack storage, arrays decay to a pointer to their first
// element
func (b *Builder) Alloca(t backend.Type, name string) backend.Value {
	lt := b.mod.mustLower(t)
	alloca := b.ir().CreateAlloca(lt, name)

	if t.Kind != backend.Array {
		return &operand{v: alloca, typ: backend.PointerType}
	}

	zero := llvm.ConstInt(b.mod.ctx.Int32Type(), 0, false)
	first := b.ir().CreateGEP(lt, alloca, []llvm.Value{zero, zero}, name+".first")
	return &operand{v: first, typ: backend.PointerType, array: alloca}
}

// Zero returns the zero value of `t`
func (b *Builder) Zero(t backend.Type) backend.Value {
	if t.Kind == backend.Array {
		return &operand{v: llvm.ConstNull(b.mod.mustLower(t)), typ: t, zero: true}
	}
	return b.ConstInt(t, 0)
}

// ConstInt returns an integer constant of type `t`
func (b *Builder) ConstInt(t backend.Type, n int64) backend.Value {
	return &operand{v: llvm.ConstInt(b.mod.mustLower(t), uint64(n), true), typ: t}
}

// Load reads a value of type `t` through a pointer
func (b *Builder) Load(t backend.Type, addr backend.Value, name string) backend.Value {
	return &operand{v: b.ir().CreateLoad(b.mod.mustLower(t), b.operand(addr).v, name), typ: t}
}

// Store writes `v` through a pointer
func (b *Builder) Store(addr backend.Value, v backend.Value) {
	ptr := b.operand(addr)

	if zv, ok := v.(*operand); ok && zv.zero {
		if ptr.array.IsNil() {
			panic("llvm: zero array stored through a pointer that is not an array alloca")
		}
		b.ir().CreateStore(zv.v, ptr.array)
		return
	}

	b.ir().CreateStore(b.operand(v).v, ptr.v)
}

// Offset moves a byte pointer by `delta` elements
func (b *Builder) Offset(addr backend.Value, delta backend.Value, name string) backend.Value {
	gep := b.ir().CreateGEP(b.mod.ctx.Int8Type(), b.operand(addr).v, []llvm.Value{b.operand(delta).v}, name)
	return &operand{v: gep, typ: backend.PointerType}
}

// Add returns x + y
func (b *Builder) Add(x, y backend.Value, name string) backend.Value {
	l, r := b.operand(x), b.operand(y)
	return &operand{v: b.ir().CreateAdd(l.v, r.v, name), typ: l.typ}
}

// Sub returns x - y
func (b *Builder) Sub(x, y backend.Value, name string) backend.Value {
	l, r := b.operand(x), b.operand(y)
	return &operand{v: b.ir().CreateSub(l.v, r.v, name), typ: l.typ}
}

// ICmpEQ compares two integers for equality
func (b *Builder) ICmpEQ(x, y backend.Value, name string) backend.Value {
	l, r := b.operand(x), b.operand(y)
	return &operand{v: b.ir().CreateICmp(llvm.IntEQ, l.v, r.v, name), typ: backend.BoolType}
}

// Br terminates the current block with a jump
func (b *Builder) Br(dest backend.Block) {
	b.ir().CreateBr(b.block(dest).bb)
}

// CondBr terminates the current block with a two way branch
func (b *Builder) CondBr(cond backend.Value, then, els backend.Block) {
	b.ir().CreateCondBr(b.operand(cond).v, b.block(then).bb, b.block(els).bb)
}

// Call invokes a host function, converting between bytes and the i32 used
// by the C library
func (b *Builder) Call(c backend.Callee, args []backend.Value, name string) backend.Value {
	lc, ok := c.(*callee)
	if !ok {
		panic(fmt.Sprintf("llvm: foreign callee %v", c))
	}

	irb := b.ir()
	switch lc.host {
	case backend.HostReadByte:
		ch := irb.CreateCall(lc.typ, lc.v, nil, name)
		return &operand{v: irb.CreateTrunc(ch, b.mod.ctx.Int8Type(), name), typ: backend.ByteType}
	case backend.HostWriteByte:
		if len(args) != 1 {
			panic("llvm: writeByte takes exactly one argument")
		}
		wide := irb.CreateZExt(b.operand(args[0]).v, b.mod.ctx.Int32Type(), "")
		irb.CreateCall(lc.typ, lc.v, []llvm.Value{wide}, "")
		return nil
	default:
		panic(fmt.Sprintf("llvm: unknown host function %v", lc.host))
	}
}

// Ret terminates the current block returning `v`
func (b *Builder) Ret(v backend.Value) {
	b.ir().CreateRet(b.operand(v).v)
}

// RetVoid terminates the current block without a value
func (b *Builder) RetVoid() {
	b.ir().CreateRetVoid()
}
