package codecs

// Agarce ("Smart Light") wire policy. The body is XORed against a fixed
// matrix and the two seed bytes in an alternating pattern, wrapped in two
// additive checksums. Pairing frames smuggle the prefix high nibble and the
// sub-device index through the argument bytes.

var agarceMatrix = [8]byte{0xAA, 0xBB, 0xCC, 0xDD, 0x5A, 0xA5, 0xA5, 0x5A}

func agarceCrypt(buf []byte, seed uint16) []byte {
	p0, p1 := byte(seed), byte(seed>>8)
	out := make([]byte, len(buf))
	for i, x := range buf {
		p := p0
		if ((i+1)/2)%2 != 0 {
			p = p1
		}
		out[i] = x ^ agarceMatrix[i%8] ^ p
	}
	return out
}

func byteSum(buf []byte) byte {
	var s byte
	for _, x := range buf {
		s += x
	}
	return s
}

type agarceWire struct{}

func (agarceWire) decrypt(buf []byte) ([]byte, bool) {
	if byteSum(buf[:len(buf)-1]) != buf[len(buf)-1] {
		return nil, false
	}
	seed := uint16(buf[1]) | uint16(buf[2])<<8
	d := agarceCrypt(buf[3:len(buf)-1], seed)
	if byteSum(d[:len(d)-1]) != d[len(d)-1] {
		return nil, false
	}
	isPair := d[8]&0xF0 == 0
	// Group frames carry a zero index; receivers address them differently
	// and they must not be mistaken for pairing.
	if isPair && d[12] == 0 {
		return nil, false
	}
	prefix := buf[0]
	if isPair {
		prefix |= (d[10] & 0x0F) << 4
		d[12] = (d[12]&0x0F)<<4 + d[11]
		d[11] = 0
		d[10] = 0
	} else {
		d[12] = (d[12]&0x0F)<<4 + (d[8] & 0x0F)
	}
	return append([]byte{prefix, buf[1], buf[2]}, d[:len(d)-1]...), true
}

func (agarceWire) encrypt(buf []byte) []byte {
	d := append([]byte{}, buf[3:]...)
	isPair := d[8] == 0
	prefix := buf[0]
	if isPair {
		d[10] = (prefix & 0xF0) >> 4
		d[11] = d[12] & 0x0F
		d[12] = (d[12]>>4)&0x0F + 0xC0
		prefix &= 0x0F
	} else {
		d[8] |= d[12] & 0x0F
		d[12] = (d[12] >> 4) & 0x0F
	}
	d = append(d, byteSum(d))
	seed := uint16(buf[1]) | uint16(buf[2])<<8
	out := append([]byte{prefix, buf[1], buf[2]}, agarceCrypt(d, seed)...)
	return append(out, byteSum(out))
}

func (agarceWire) unpack(d []byte) (EncodedCmd, Session, bool) {
	enc := EncodedCmd{Cmd: d[10] & 0xF0, Arg0: d[11], Arg1: d[12], Arg2: d[13]}
	s := Session{
		ID:           le32(d[6:10]),
		Index:        d[14],
		TxCount:      d[2],
		RestartCount: d[3],
		Seed:         uint16(d[0]) | uint16(d[1])<<8,
	}
	return enc, s, true
}

func (agarceWire) pack(enc EncodedCmd, s Session) []byte {
	return []byte{
		byte(s.Seed), byte(s.Seed >> 8),
		s.TxCount,
		s.RestartCount,
		0x00, 0x10,
		byte(s.ID), byte(s.ID >> 8), byte(s.ID >> 16), byte(s.ID >> 24),
		enc.Cmd,
		enc.Arg0, enc.Arg1, enc.Arg2,
		s.Index,
	}
}

// agarceTable maps the four Agarce opcodes. The fan frame is a full state
// write: every aspect travels in one opcode, with a changed-aspect bitmask
// in the last argument.
func agarceTable() []translator {
	const fanChanged = 0x1B // speed, direction, power and oscillation

	return []translator{
		trans(isPair, fixed(EncodedCmd{Cmd: 0x00, Arg0: 1}), encIsArg0(0x00, 1), fixedCmd(PairRequest{})),
		trans(isUnpair, fixed(EncodedCmd{Cmd: 0x00, Arg0: 0}), encIsArg0(0x00, 0), fixedCmd(UnpairRequest{})),
		trans(isColorTemp(0),
			func(c Command) EncodedCmd {
				l := c.(LightCommand)
				return EncodedCmd{Cmd: 0x20, Arg0: 100 - *l.ColorTemp, Arg1: l.Brightness}
			},
			encIs(0x20),
			func(e EncodedCmd) Command {
				return LightCommand{On: true, Brightness: e.Arg1, ColorTemp: Level(100 - e.Arg0)}
			}),
		trans(isLightOn(0), fixed(EncodedCmd{Cmd: 0x10, Arg0: 1}), encIsArg0(0x10, 1), fixedCmd(LightCommand{On: true})),
		trans(isLightOff(0), fixed(EncodedCmd{Cmd: 0x10, Arg0: 0}), encIsArg0(0x10, 0), fixedCmd(LightCommand{})),
		trans(isFanState(6),
			func(c Command) EncodedCmd {
				f := c.(FanCommand)
				arg0 := f.Speed & 0x0F
				if f.On {
					arg0 |= 0x80
				}
				if !*f.Forward {
					arg0 |= 0x10
				}
				var arg1 uint8
				if *f.Oscillate {
					arg1 = 1
				}
				return EncodedCmd{Cmd: 0x80, Arg0: arg0, Arg1: arg1, Arg2: fanChanged}
			},
			encIs(0x80),
			func(e EncodedCmd) Command {
				return FanCommand{
					On:         e.Arg0&0x80 != 0,
					Speed:      e.Arg0 & 0x0F,
					SpeedCount: 6,
					Forward:    Flag(e.Arg0&0x10 == 0),
					Oscillate:  Flag(e.Arg1 != 0),
				}
			}),
		trans(isBlink(0), fixed(EncodedCmd{Cmd: 0x10, Arg0: 1}), nil, nil).noReverse(),
	}
}

// agarceCodecs builds the Agarce registrations. The app advertises short
// fast bursts compared to the other vendors.
func agarceCodecs() []*Codec {
	reg := func(id string, prefix byte) *Codec {
		return newCodec(codecSpec{
			id:         id,
			header:     []byte{0xF9, 0x09},
			prefix:     []byte{prefix},
			bleType:    0xFF,
			adFlag:     0x19,
			length:     18,
			seedMax:    0xFFF5,
			repeat:     60,
			intervalMS: 10,
			durationMS: 400,
		}, agarceWire{}, agarceTable())
	}
	return []*Codec{
		reg("agarce_v3", 0x83),
		reg("agarce_v4", 0x84),
	}
}
