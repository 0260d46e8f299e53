package vm

// BytecodeAddress is a byte offset into a Program's bytecode
type BytecodeAddress uint32

// RegisterAddress names one register of a call frame
type RegisterAddress uint32

// Register holds either an integer or a pointer. A pointer stores the 1-based
// index of the memory segment it points into in `Seg` and the byte offset
// within that segment in `Int`. Integers leave `Seg` at 0
type Register struct {
	Int int64
	Seg int32
}

// IsPointer reports whether the register holds a pointer
func (r Register) IsPointer() bool {
	return r.Seg > 0
}

// segment is a block of memory reachable through pointers. Byte arrays (the
// tape, stack allocated arrays) use `bytes`, scalar slots use `slot`
type segment struct {
	bytes []byte
	slot  Register
}

// Frame is the activation record of one call. All segments allocated by the
// call live exactly as long as the frame
type Frame struct {
	Registers []Register
	args      []Register
	segments  []*segment
}

func newFrame(numRegs uint32) *Frame {
	return &Frame{Registers: make([]Register, numRegs)}
}

// addSegment appends a segment to the frame and returns a pointer to its first
// element
func (f *Frame) addSegment(seg *segment) Register {
	f.segments = append(f.segments, seg)
	return Register{Seg: int32(len(f.segments))}
}
