package codecs

// Shared bit-level primitives used by the vendor wire policies. These
// reproduce the exact transforms the reverse-engineered firmwares apply;
// do not "fix" constants without captures from real hardware.

// whiten applies the BLE LFSR whitening used by several vendor stacks.
// The transform is its own inverse for a given seed.
func whiten(buf []byte, seed byte) []byte {
	out := make([]byte, len(buf))
	r := seed
	for i, val := range buf {
		var b byte
		for j := 0; j < 8; j++ {
			r <<= 1
			if r&0x80 != 0 {
				r ^= 0x11
				b |= 1 << j
			}
			r &= 0x7F
		}
		out[i] = val ^ b
	}
	return out
}

// reverseByte mirrors the bits of a byte: 1100 1010 => 0101 0011.
func reverseByte(x byte) byte {
	x = ((x & 0x55) << 1) | ((x & 0xAA) >> 1)
	x = ((x & 0x33) << 2) | ((x & 0xCC) >> 2)
	return ((x & 0x0F) << 4) | ((x & 0xF0) >> 4)
}

// reverseAll mirrors the bits of every byte in the buffer.
func reverseAll(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i, x := range buf {
		out[i] = reverseByte(x)
	}
	return out
}

// crc16LE computes the reflected CRC16 used by the Zhijia family
// (ISO 14443-A/B, poly 0x8408, input and output complemented).
func crc16LE(buf []byte, seed uint16) uint16 {
	crc := seed ^ 0xFFFF
	for _, b := range buf {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc ^ 0xFFFF
}

// crcCCITT computes the MSB-first CRC16-CCITT used by the FanLamp family
// (poly 0x1021, caller-supplied initial value, no final XOR).
func crcCCITT(buf []byte, seed uint16) uint16 {
	crc := seed
	for _, b := range buf {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// le16 / le24 / le32 are little-endian helpers for the id fields.
func le16(b0, b1 byte) uint32 { return uint32(b0) | uint32(b1)<<8 }

func le24(b0, b1, b2 byte) uint32 { return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 }

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// xorAll XORs every byte of the buffer with the pivot.
func xorAll(buf []byte, pivot byte) []byte {
	out := make([]byte, len(buf))
	for i, x := range buf {
		out[i] = x ^ pivot
	}
	return out
}
