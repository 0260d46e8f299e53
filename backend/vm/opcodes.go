package vm

// Every instruction starts with one opcode byte followed by fixed width
// operands. Registers and addresses are 32 bit big-endian values
const (
	// Basic opcodes
	OpcodeNop        uint8 = 0x01
	OpcodeIntConst   uint8 = 0x04
	OpcodeParam      uint8 = 0x05
	OpcodeBrAlways   uint8 = 0x0B
	OpcodeBrTrue     uint8 = 0x0C
	OpcodeReturn     uint8 = 0x0F
	OpcodeReturnVoid uint8 = 0x10
	OpcodeCallHost   uint8 = 0x11

	// Memory (0x20...0x2F)
	OpcodeAlloca    uint8 = 0x20
	OpcodeZeroFill  uint8 = 0x21
	OpcodeLoadByte  uint8 = 0x22
	OpcodeStoreByte uint8 = 0x23
	OpcodeLoadSlot  uint8 = 0x24
	OpcodeStoreSlot uint8 = 0x25
	OpcodeOffset    uint8 = 0x26

	// Integer manipulation (0x70...0x7F)
	OpcodeIntEq  uint8 = 0x74
	OpcodeIntAdd uint8 = 0x75
	OpcodeIntSub uint8 = 0x76
)

// opcodeNames is used by the disassembler
var opcodeNames = map[uint8]string{
	OpcodeNop:        "Nop",
	OpcodeIntConst:   "IntConst",
	OpcodeParam:      "Param",
	OpcodeBrAlways:   "BrAlways",
	OpcodeBrTrue:     "BrTrue",
	OpcodeReturn:     "Return",
	OpcodeReturnVoid: "ReturnVoid",
	OpcodeCallHost:   "CallHost",
	OpcodeAlloca:     "Alloca",
	OpcodeZeroFill:   "ZeroFill",
	OpcodeLoadByte:   "LoadByte",
	OpcodeStoreByte:  "StoreByte",
	OpcodeLoadSlot:   "LoadSlot",
	OpcodeStoreSlot:  "StoreSlot",
	OpcodeOffset:     "Offset",
	OpcodeIntEq:      "IntEq",
	OpcodeIntAdd:     "IntAdd",
	OpcodeIntSub:     "IntSub",
}
