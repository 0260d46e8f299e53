package llir

import (
	"fmt"

	"github.com/isaacev/bfjit/backend"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func lower(t backend.Type) (types.Type, error) {
	switch t.Kind {
	case backend.Void:
		return types.Void, nil
	case backend.Bool:
		return types.I1, nil
	case backend.Byte:
		return types.I8, nil
	case backend.Int32:
		return types.I32, nil
	case backend.Pointer:
		return types.I8Ptr, nil
	case backend.Array:
		return types.NewArray(uint64(t.Len), types.I8), nil
	default:
		return nil, fmt.Errorf("llir: cannot lower %s", t)
	}
}

func mustLower(t backend.Type) types.Type {
	lt, err := lower(t)
	if err != nil {
		panic(err)
	}
	return lt
}

// Function implements backend.Function
type Function struct {
	name       string
	sig        backend.Signature
	f          *ir.Func
	blockNames map[string]int
}

// Name implements backend.Function
func (fn *Function) Name() string { return fn.name }

// Signature implements backend.Function
func (fn *Function) Signature() backend.Signature { return fn.sig }

type block struct {
	b  *ir.Block
	fn *Function
}

func (b *block) Name() string { return b.b.LocalName }

// operand wraps an LLVM value. Array allocas are handed out as a pointer to
// their first element, `array` keeps the alloca itself so the array can
// still be cleared as a whole
type operand struct {
	v     value.Value
	typ   backend.Type
	array *ir.InstAlloca
	zero  bool
}

func (o *operand) Type() backend.Type { return o.typ }

type callee struct {
	host backend.Host
	f    *ir.Func
}

func (c *callee) Host() backend.Host { return c.host }

// Builder implements backend.Builder on top of llir/llvm
type Builder struct {
	fn  *Function
	cur *block
}

// NewBlock appends a uniquely named block to the function
func (b *Builder) NewBlock(name string) backend.Block {
	n := b.fn.blockNames[name]
	b.fn.blockNames[name] = n + 1
	if n > 0 {
		name = fmt.Sprintf("%s%d", name, n)
	}

	return &block{b: b.fn.f.NewBlock(name), fn: b.fn}
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

func (b *Builder) block(blk backend.Block) *block {
	lb, ok := blk.(*block)
	if !ok || lb.fn != b.fn {
		panic(fmt.Sprintf("llir: block %v does not belong to function %s", blk, b.fn.name))
	}
	return lb
}

func (b *Builder) at() *ir.Block {
	if b.cur == nil {
		panic("llir: builder has no insertion point")
	}
	if b.cur.b.Term != nil {
		panic(fmt.Sprintf("llir: block %%%s is already terminated", b.cur.b.LocalName))
	}
	return b.cur.b
}

func (b *Builder) operand(v backend.Value) *operand {
	o, ok := v.(*operand)
	if !ok {
		panic(fmt.Sprintf("llir: foreign value %v", v))
	}
	if o.zero {
		panic("llir: zero array constant can only be stored")
	}
	return o
}

// Param returns argument `i` of the function
func (b *Builder) Param(i int) backend.Value {
	if i < 0 || i >= len(b.fn.f.Params) {
		panic(fmt.Sprintf("llir: function %s has no parameter %d", b.fn.name, i))
	}
	return &operand{v: b.fn.f.Params[i], typ: b.fn.sig.Params[i]}
}

// Alloca reserves stack storage. Arrays decay to a pointer to their first
// element so the result is always a byte pointer or a scalar slot
func (b *Builder) Alloca(t backend.Type, name string) backend.Value {
	blk := b.at()
	alloca := blk.NewAlloca(mustLower(t))
	alloca.SetName(name)

	if t.Kind != backend.Array {
		return &operand{v: alloca, typ: backend.PointerType}
	}

	zero := constant.NewInt(types.I32, 0)
	first := blk.NewGetElementPtr(alloca.ElemType, alloca, zero, zero)
	return &operand{v: first, typ: backend.PointerType, array: alloca}
}

// Zero returns the zero value of `t`
func (b *Builder) Zero(t backend.Type) backend.Value {
	if t.Kind == backend.Array {
		return &operand{v: constant.NewZeroInitializer(mustLower(t)), typ: t, zero: true}
	}
	return b.ConstInt(t, 0)
}

// ConstInt returns an integer constant truncated to the width of `t`
func (b *Builder) ConstInt(t backend.Type, n int64) backend.Value {
	switch t.Kind {
	case backend.Bool:
		return &operand{v: constant.NewInt(types.I1, n&1), typ: t}
	case backend.Byte:
		return &operand{v: constant.NewInt(types.I8, int64(int8(uint8(n)))), typ: t}
	case backend.Int32:
		return &operand{v: constant.NewInt(types.I32, int64(int32(n))), typ: t}
	default:
		panic(fmt.Sprintf("llir: %s is not an integer type", t))
	}
}

// Load reads a value of type `t` through a pointer
func (b *Builder) Load(t backend.Type, addr backend.Value, name string) backend.Value {
	return &operand{v: b.at().NewLoad(mustLower(t), b.operand(addr).v), typ: t}
}

// Store writes `v` through a pointer
func (b *Builder) Store(addr backend.Value, v backend.Value) {
	ptr := b.operand(addr)

	if zv, ok := v.(*operand); ok && zv.zero {
		if ptr.array == nil {
			panic("llir: zero array stored through a pointer that is not an array alloca")
		}
		b.at().NewStore(zv.v, ptr.array)
		return
	}

	b.at().NewStore(b.operand(v).v, ptr.v)
}

// Offset moves a byte pointer by `delta` elements
func (b *Builder) Offset(addr backend.Value, delta backend.Value, name string) backend.Value {
	gep := b.at().NewGetElementPtr(types.I8, b.operand(addr).v, b.operand(delta).v)
	return &operand{v: gep, typ: backend.PointerType}
}

// Add returns x + y
func (b *Builder) Add(x, y backend.Value, name string) backend.Value {
	l, r := b.operand(x), b.operand(y)
	return &operand{v: b.at().NewAdd(l.v, r.v), typ: l.typ}
}

// Sub returns x - y
func (b *Builder) Sub(x, y backend.Value, name string) backend.Value {
	l, r := b.operand(x), b.operand(y)
	return &operand{v: b.at().NewSub(l.v, r.v), typ: l.typ}
}

// ICmpEQ compares two integers for equality
func (b *Builder) ICmpEQ(x, y backend.Value, name string) backend.Value {
	l, r := b.operand(x), b.operand(y)
	return &operand{v: b.at().NewICmp(enum.IPredEQ, l.v, r.v), typ: backend.BoolType}
}

// Br terminates the current block with a jump
func (b *Builder) Br(dest backend.Block) {
	b.at().NewBr(b.block(dest).b)
}

// CondBr terminates the current block with a two way branch
func (b *Builder) CondBr(cond backend.Value, then, els backend.Block) {
	b.at().NewCondBr(b.operand(cond).v, b.block(then).b, b.block(els).b)
}

// Call invokes a host function. getchar and putchar deal in i32 so the
// conversions to and from bytes happen here
func (b *Builder) Call(c backend.Callee, args []backend.Value, name string) backend.Value {
	lc, ok := c.(*callee)
	if !ok {
		panic(fmt.Sprintf("llir: foreign callee %v", c))
	}

	blk := b.at()
	switch lc.host {
	case backend.HostReadByte:
		ch := blk.NewCall(lc.f)
		return &operand{v: blk.NewTrunc(ch, types.I8), typ: backend.ByteType}
	case backend.HostWriteByte:
		if len(args) != 1 {
			panic("llir: writeByte takes exactly one argument")
		}
		blk.NewCall(lc.f, blk.NewZExt(b.operand(args[0]).v, types.I32))
		return nil
	default:
		panic(fmt.Sprintf("llir: unknown host function %v", lc.host))
	}
}

// Ret terminates the current block returning `v`
func (b *Builder) Ret(v backend.Value) {
	b.at().NewRet(b.operand(v).v)
}

// RetVoid terminates the current block without a value
func (b *Builder) RetVoid() {
	b.at().NewRet(nil)
}
