package vm

const bytesInInt32 int = 4

func int32ToBytes(val int32) (blob []byte) {
	return uint32ToBytes(uint32(val))
}

func uint32ToBytes(val uint32) (blob []byte) {
	var b0, b1, b2, b3 byte
	b0 = byte((val >> 0x00) & 0xff)
	b1 = byte((val >> 0x08) & 0xff)
	b2 = byte((val >> 0x10) & 0xff)
	b3 = byte((val >> 0x18) & 0xff)

	// Arrange bytes in Big-Endian order
	return []byte{b3, b2, b1, b0}
}

func registerToBytes(reg RegisterAddress) (blob []byte) {
	return uint32ToBytes(uint32(reg))
}

func addressToBytes(addr BytecodeAddress) (blob []byte) {
	return uint32ToBytes(uint32(addr))
}

func bytesToInt32(b0, b1, b2, b3 byte) int32 {
	return int32(bytesToUint32(b0, b1, b2, b3))
}

func bytesToUint32(b0, b1, b2, b3 byte) uint32 {
	return uint32(b3) | (uint32(b2) << 8) | (uint32(b1) << 16) | (uint32(b0) << 24)
}

// wrap truncates an integer to `width` bits, bytes are unsigned and 32 bit
// integers are signed
func wrap(val int64, width uint8) int64 {
	switch width {
	case 1:
		return val & 1
	case 8:
		return int64(uint8(val))
	case 32:
		return int64(int32(val))
	default:
		return val
	}
}
