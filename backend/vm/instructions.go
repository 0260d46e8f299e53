package vm

import (
	"fmt"
)

// Instruction is anything that can be written into a function's bytecode.
// `String` renders the instruction the way `WriteIR` prints it
type Instruction interface {
	Generate() []byte
	String() string
}

// Nop
//   - takes no arguments, does nothing
type Nop struct{}

// Generate converts this instruction to raw bytes
func (inst Nop) Generate() (blob []byte) {
	return append(blob, OpcodeNop)
}

func (inst Nop) String() string {
	return "nop"
}

// IntConst <32 bit integer value> <destination register>
//   - the value is stored already truncated to the constant's type
type IntConst struct {
	Value int32
	Dest  RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst IntConst) Generate() (blob []byte) {
	blob = append(blob, OpcodeIntConst)
	blob = append(blob, int32ToBytes(inst.Value)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst IntConst) String() string {
	return fmt.Sprintf("r%d = const %d", inst.Dest, inst.Value)
}

// Param <parameter index> <destination register>
//   - copies an argument of the current call into a register
type Param struct {
	Index uint32
	Dest  RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst Param) Generate() (blob []byte) {
	blob = append(blob, OpcodeParam)
	blob = append(blob, uint32ToBytes(inst.Index)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst Param) String() string {
	return fmt.Sprintf("r%d = param %d", inst.Dest, inst.Index)
}

// Alloca <size in bytes> <destination register>
//   - creates a new memory segment owned by the current call and stores a
//     pointer to its first element in the destination register. A size of 0
//     creates a scalar slot able to hold one register value
type Alloca struct {
	Size uint32
	Dest RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst Alloca) Generate() (blob []byte) {
	blob = append(blob, OpcodeAlloca)
	blob = append(blob, uint32ToBytes(inst.Size)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst Alloca) String() string {
	if inst.Size == 0 {
		return fmt.Sprintf("r%d = alloca slot", inst.Dest)
	}
	return fmt.Sprintf("r%d = alloca [%d x i8]", inst.Dest, inst.Size)
}

// ZeroFill <pointer register> <size in bytes>
//   - clears `size` bytes starting at the pointer
type ZeroFill struct {
	Addr RegisterAddress
	Size uint32
}

// Generate converts this instruction to raw bytes
func (inst ZeroFill) Generate() (blob []byte) {
	blob = append(blob, OpcodeZeroFill)
	blob = append(blob, registerToBytes(inst.Addr)...)
	blob = append(blob, uint32ToBytes(inst.Size)...)
	return blob
}

func (inst ZeroFill) String() string {
	return fmt.Sprintf("zerofill r%d, %d", inst.Addr, inst.Size)
}

// LoadByte <pointer register> <destination register>
type LoadByte struct {
	Addr RegisterAddress
	Dest RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst LoadByte) Generate() (blob []byte) {
	blob = append(blob, OpcodeLoadByte)
	blob = append(blob, registerToBytes(inst.Addr)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst LoadByte) String() string {
	return fmt.Sprintf("r%d = load.i8 r%d", inst.Dest, inst.Addr)
}

// StoreByte <pointer register> <source register>
//   - stores the low 8 bits of the source register
type StoreByte struct {
	Addr   RegisterAddress
	Source RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst StoreByte) Generate() (blob []byte) {
	blob = append(blob, OpcodeStoreByte)
	blob = append(blob, registerToBytes(inst.Addr)...)
	blob = append(blob, registerToBytes(inst.Source)...)
	return blob
}

func (inst StoreByte) String() string {
	return fmt.Sprintf("store.i8 r%d, r%d", inst.Source, inst.Addr)
}

// LoadSlot <pointer register> <destination register>
//   - reads a whole register value (pointers and integers wider than a byte)
type LoadSlot struct {
	Addr RegisterAddress
	Dest RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst LoadSlot) Generate() (blob []byte) {
	blob = append(blob, OpcodeLoadSlot)
	blob = append(blob, registerToBytes(inst.Addr)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst LoadSlot) String() string {
	return fmt.Sprintf("r%d = load r%d", inst.Dest, inst.Addr)
}

// StoreSlot <pointer register> <source register>
type StoreSlot struct {
	Addr   RegisterAddress
	Source RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst StoreSlot) Generate() (blob []byte) {
	blob = append(blob, OpcodeStoreSlot)
	blob = append(blob, registerToBytes(inst.Addr)...)
	blob = append(blob, registerToBytes(inst.Source)...)
	return blob
}

func (inst StoreSlot) String() string {
	return fmt.Sprintf("store r%d, r%d", inst.Source, inst.Addr)
}

// Offset <pointer register> <delta register> <destination register>
//   - the destination points `delta` bytes away from the source pointer
//     within the same segment
type Offset struct {
	Addr  RegisterAddress
	Delta RegisterAddress
	Dest  RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst Offset) Generate() (blob []byte) {
	blob = append(blob, OpcodeOffset)
	blob = append(blob, registerToBytes(inst.Addr)...)
	blob = append(blob, registerToBytes(inst.Delta)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst Offset) String() string {
	return fmt.Sprintf("r%d = offset r%d, r%d", inst.Dest, inst.Addr, inst.Delta)
}

// IntEq <left register> <right register> <destination register>
type IntEq struct {
	Left  RegisterAddress
	Right RegisterAddress
	Dest  RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst IntEq) Generate() (blob []byte) {
	blob = append(blob, OpcodeIntEq)
	blob = append(blob, registerToBytes(inst.Left)...)
	blob = append(blob, registerToBytes(inst.Right)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst IntEq) String() string {
	return fmt.Sprintf("r%d = eq r%d, r%d", inst.Dest, inst.Left, inst.Right)
}

// IntAdd <width> <left register> <right register> <destination register>
//   - the sum wraps around at `width` bits
type IntAdd struct {
	Width uint8
	Left  RegisterAddress
	Right RegisterAddress
	Dest  RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst IntAdd) Generate() (blob []byte) {
	blob = append(blob, OpcodeIntAdd, inst.Width)
	blob = append(blob, registerToBytes(inst.Left)...)
	blob = append(blob, registerToBytes(inst.Right)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst IntAdd) String() string {
	return fmt.Sprintf("r%d = add.i%d r%d, r%d", inst.Dest, inst.Width, inst.Left, inst.Right)
}

// IntSub <width> <left register> <right register> <destination register>
//   - the difference wraps around at `width` bits
type IntSub struct {
	Width uint8
	Left  RegisterAddress
	Right RegisterAddress
	Dest  RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst IntSub) Generate() (blob []byte) {
	blob = append(blob, OpcodeIntSub, inst.Width)
	blob = append(blob, registerToBytes(inst.Left)...)
	blob = append(blob, registerToBytes(inst.Right)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst IntSub) String() string {
	return fmt.Sprintf("r%d = sub.i%d r%d, r%d", inst.Dest, inst.Width, inst.Left, inst.Right)
}

// BrAlways <bytecode address>
type BrAlways struct {
	Addr BytecodeAddress
}

// Generate converts this instruction to raw bytes
func (inst BrAlways) Generate() (blob []byte) {
	blob = append(blob, OpcodeBrAlways)
	blob = append(blob, addressToBytes(inst.Addr)...)
	return blob
}

func (inst BrAlways) String() string {
	return fmt.Sprintf("br @%d", inst.Addr)
}

// BrTrue <test register> <bytecode address>
//   - jumps when the test register holds a nonzero value
type BrTrue struct {
	Test RegisterAddress
	Addr BytecodeAddress
}

// Generate converts this instruction to raw bytes
func (inst BrTrue) Generate() (blob []byte) {
	blob = append(blob, OpcodeBrTrue)
	blob = append(blob, registerToBytes(inst.Test)...)
	blob = append(blob, addressToBytes(inst.Addr)...)
	return blob
}

func (inst BrTrue) String() string {
	return fmt.Sprintf("br.true r%d, @%d", inst.Test, inst.Addr)
}

// CallHost <host function> <argument register> <destination register>
//   - readByte ignores the argument, writeByte ignores the destination
type CallHost struct {
	Host uint8
	Arg  RegisterAddress
	Dest RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst CallHost) Generate() (blob []byte) {
	blob = append(blob, OpcodeCallHost, inst.Host)
	blob = append(blob, registerToBytes(inst.Arg)...)
	blob = append(blob, registerToBytes(inst.Dest)...)
	return blob
}

func (inst CallHost) String() string {
	if inst.Host == hostReadByte {
		return fmt.Sprintf("r%d = call readByte()", inst.Dest)
	}
	return fmt.Sprintf("call writeByte(r%d)", inst.Arg)
}

// Return <source register>
type Return struct {
	Source RegisterAddress
}

// Generate converts this instruction to raw bytes
func (inst Return) Generate() (blob []byte) {
	blob = append(blob, OpcodeReturn)
	blob = append(blob, registerToBytes(inst.Source)...)
	return blob
}

func (inst Return) String() string {
	return fmt.Sprintf("ret r%d", inst.Source)
}

// ReturnVoid
type ReturnVoid struct{}

// Generate converts this instruction to raw bytes
func (inst ReturnVoid) Generate() (blob []byte) {
	return append(blob, OpcodeReturnVoid)
}

func (inst ReturnVoid) String() string {
	return "ret void"
}

// instructionSize maps each opcode to its encoded width including the opcode
// byte itself
var instructionSize = map[uint8]int{
	OpcodeNop:        1,
	OpcodeIntConst:   9,
	OpcodeParam:      9,
	OpcodeBrAlways:   5,
	OpcodeBrTrue:     9,
	OpcodeReturn:     5,
	OpcodeReturnVoid: 1,
	OpcodeCallHost:   10,
	OpcodeAlloca:     9,
	OpcodeZeroFill:   9,
	OpcodeLoadByte:   9,
	OpcodeStoreByte:  9,
	OpcodeLoadSlot:   9,
	OpcodeStoreSlot:  9,
	OpcodeOffset:     13,
	OpcodeIntEq:      13,
	OpcodeIntAdd:     14,
	OpcodeIntSub:     14,
}
