package codecs

import "crypto/aes"

// FanLamp Pro / LampSmart Pro wire policies. The v1 generation whitens a
// bit-reversed body and protects it with two CRC16-CCITT values; the v2/v3
// generation substitutes bytes through a boxed table keyed by a rolling
// seed, with v3 adding an AES-ECB signature over the body.

// fanlampV1Wire carries the per-variant device-type byte the receivers
// filter on and the CRC parameters derived from the shared prefix.
type fanlampV1Wire struct {
	arg2           byte
	arg2OnlyOnPair bool
	xor1           bool
	header0        byte
	crc2Seed       uint16
	withCRC2       bool
}

func newFanlampV1Wire(prefix []byte, header0, arg2 byte, arg2OnlyOnPair bool) fanlampV1Wire {
	return fanlampV1Wire{
		arg2:           arg2,
		arg2OnlyOnPair: arg2OnlyOnPair,
		header0:        header0,
		crc2Seed:       crcCCITT(prefix[1:6], 0xFFFF),
		withCRC2:       true,
	}
}

// getArg2 is the device-type byte policy: always sent on pair, echoed on
// RGB writes, and on every opcode except the secondary light for variants
// that tag all traffic.
func (w fanlampV1Wire) getArg2(cmd, arg2 byte) byte {
	if cmd == 0x22 {
		return arg2
	}
	if cmd == 0x28 {
		return w.arg2
	}
	if !w.arg2OnlyOnPair && cmd != 0x12 && cmd != 0x13 && cmd != 0x1E && cmd != 0x1F {
		return w.arg2
	}
	return 0
}

func (fanlampV1Wire) decrypt(buf []byte) ([]byte, bool) {
	return reverseAll(whiten(buf, 0x6F)), true
}

func (fanlampV1Wire) encrypt(buf []byte) []byte {
	return whiten(reverseAll(buf), 0x6F)
}

func (w fanlampV1Wire) unpack(d []byte) (EncodedCmd, Session, bool) {
	seed := uint16(d[10])<<8 | uint16(d[11])
	seed8 := byte(seed)
	if crcCCITT(d[:12], seed^0xFFFF) != uint16(d[12])<<8|uint16(d[13]) {
		return EncodedCmd{}, Session{}, false
	}
	if w.getArg2(d[0], d[5]) != d[5] {
		return EncodedCmd{}, Session{}, false
	}
	r2 := seed8
	if w.xor1 {
		r2 = seed8 ^ 1
	}
	if d[9] != r2 {
		return EncodedCmd{}, Session{}, false
	}
	if w.withCRC2 && crcCCITT(d[:14], w.crc2Seed) != uint16(d[14])<<8|uint16(d[15]) {
		return EncodedCmd{}, Session{}, false
	}

	gi := le16(d[1], d[2])
	s := Session{
		ID:      (gi & 0xF0FF) | uint32(seed8^d[8])<<16,
		Index:   byte((gi & 0x0F00) >> 8),
		TxCount: d[6],
		Seed:    seed,
	}
	enc := EncodedCmd{Cmd: d[0]}
	if enc.Cmd != 0x28 {
		enc.Param, enc.Arg0, enc.Arg1 = d[7], d[3], d[4]
		if enc.Cmd == 0x22 {
			enc.Arg2 = d[5]
		}
	} else {
		if w.arg2 != 0 {
			enc.Param = d[7]
		}
		if byte(s.ID) != d[3] || byte(s.ID>>8)&0xF0 != d[4] {
			return EncodedCmd{}, Session{}, false
		}
	}
	return enc, s, true
}

func (w fanlampV1Wire) pack(enc EncodedCmd, s Session) []byte {
	isPair := enc.Cmd == 0x28
	out := make([]byte, 0, 16)
	out = append(out, enc.Cmd)
	gi := (s.ID & 0xF0FF) | uint32(s.Index&0x0F)<<8
	out = append(out, byte(gi), byte(gi>>8))
	if isPair {
		out = append(out, byte(s.ID), byte(s.ID>>8)&0xF0)
	} else {
		out = append(out, enc.Arg0, enc.Arg1)
	}
	out = append(out, w.getArg2(enc.Cmd, enc.Arg2))
	out = append(out, s.TxCount)
	if w.arg2 == 0 && isPair {
		out = append(out, w.header0)
	} else {
		out = append(out, enc.Param)
	}
	seed8 := byte(s.Seed)
	if w.xor1 {
		out = append(out, seed8^1, seed8^1)
	} else {
		out = append(out, seed8^byte(s.ID>>16), seed8)
	}
	out = append(out, byte(s.Seed>>8), byte(s.Seed))
	crc := crcCCITT(out, s.Seed^0xFFFF)
	out = append(out, byte(crc>>8), byte(crc))
	if w.withCRC2 {
		crc2 := crcCCITT(out, w.crc2Seed)
		out = append(out, byte(crc2>>8), byte(crc2))
	} else {
		out = append(out, 0xAA)
	}
	return out
}

// fanlampXboxes is the substitution table of the v2/v3 whitening; the
// prefix selects which 32-byte block applies.
var fanlampXboxes = [128]byte{
	0xB7, 0xFD, 0x93, 0x26, 0x36, 0x3F, 0xF7, 0xCC, 0x34, 0xA5, 0xE5, 0xF1, 0x71, 0xD8, 0x31, 0x15,
	0x04, 0xC7, 0x23, 0xC3, 0x18, 0x96, 0x05, 0x9A, 0x07, 0x12, 0x80, 0xE2, 0xEB, 0x27, 0xB2, 0x75,
	0xD0, 0xEF, 0xAA, 0xFB, 0x43, 0x4D, 0x33, 0x85, 0x45, 0xF9, 0x02, 0x7F, 0x50, 0x3C, 0x9F, 0xA8,
	0x51, 0xA3, 0x40, 0x8F, 0x92, 0x9D, 0x38, 0xF5, 0xBC, 0xB6, 0xDA, 0x21, 0x10, 0xFF, 0xF3, 0xD2,
	0xE0, 0x32, 0x3A, 0x0A, 0x49, 0x06, 0x24, 0x5C, 0xC2, 0xD3, 0xAC, 0x62, 0x91, 0x95, 0xE4, 0x79,
	0xE7, 0xC8, 0x37, 0x6D, 0x8D, 0xD5, 0x4E, 0xA9, 0x6C, 0x56, 0xF4, 0xEA, 0x65, 0x7A, 0xAE, 0x08,
	0xE1, 0xF8, 0x98, 0x11, 0x69, 0xD9, 0x8E, 0x94, 0x9B, 0x1E, 0x87, 0xE9, 0xCE, 0x55, 0x28, 0xDF,
	0x8C, 0xA1, 0x89, 0x0D, 0xBF, 0xE6, 0x42, 0x68, 0x41, 0x99, 0x2D, 0x0F, 0xB0, 0x54, 0xBB, 0x16,
}

type fanlampV2Wire struct {
	deviceType uint16
	withSign   bool
	salt       int
}

func newFanlampV2Wire(prefix []byte, deviceType uint16, withSign bool) fanlampV2Wire {
	return fanlampV2Wire{deviceType: deviceType, withSign: withSign, salt: int(prefix[1]&0x3) << 5}
}

func (w fanlampV2Wire) whiten(buf []byte, seed byte) []byte {
	out := make([]byte, len(buf))
	for i, val := range buf {
		out[i] = fanlampXboxes[((int(seed)+i+9)&0x1F)+w.salt] ^ seed ^ val
	}
	return out
}

// sign computes the v3 authenticity tag: AES-ECB over the body with a key
// derived from the seed and counter; an all-zero tag is remapped to 0xFFFF.
func (fanlampV2Wire) sign(buf []byte, txCount byte, seed uint16) uint16 {
	key := []byte{
		byte(seed), byte(seed >> 8), txCount,
		0x0D, 0xBF, 0xE6, 0x42, 0x68, 0x41, 0x99, 0x2D, 0x0F, 0xB0, 0x54, 0xBB, 0x16,
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return 0xFFFF
	}
	var ct [16]byte
	block.Encrypt(ct[:], buf)
	s := uint16(ct[0]) | uint16(ct[1])<<8
	if s == 0 {
		s = 0xFFFF
	}
	return s
}

func (w fanlampV2Wire) decrypt(buf []byte) ([]byte, bool) {
	seed := uint16(le16(buf[len(buf)-4], buf[len(buf)-3]))
	crcMsg := uint16(le16(buf[len(buf)-2], buf[len(buf)-1]))
	if crcCCITT(buf[:len(buf)-2], seed^0xFFFF) != crcMsg {
		return nil, false
	}
	base := append([]byte{buf[0], buf[1]}, w.whiten(buf[2:len(buf)-5], byte(seed))...)
	sign := uint16(le16(base[len(base)-2], base[len(base)-1]))
	if w.withSign {
		if w.sign(base[1:17], base[3], seed) != sign {
			return nil, false
		}
	} else if sign != 0 {
		return nil, false
	}
	// The seed travels at the tail of the readable buffer so unpack can
	// recover it.
	return append(base[:len(base)-2], buf[len(buf)-4], buf[len(buf)-3]), true
}

func (w fanlampV2Wire) encrypt(buf []byte) []byte {
	seed := uint16(le16(buf[len(buf)-2], buf[len(buf)-1]))
	body := append([]byte{}, buf[:len(buf)-2]...)
	var sign uint16
	if w.withSign {
		sign = w.sign(body[1:17], body[3], seed)
	}
	body = append(body, byte(sign), byte(sign>>8), 0x00)
	out := append([]byte{body[0], body[1]}, w.whiten(body[2:], byte(seed))...)
	out = append(out, byte(seed), byte(seed>>8))
	crc := crcCCITT(out, seed^0xFFFF)
	return append(out, byte(crc), byte(crc>>8))
}

func (w fanlampV2Wire) unpack(d []byte) (EncodedCmd, Session, bool) {
	if le16(d[1], d[2]) != uint32(w.deviceType) {
		return EncodedCmd{}, Session{}, false
	}
	s := Session{
		ID:      le32(d[3:7]),
		Index:   d[7],
		TxCount: d[0],
		Seed:    uint16(le16(d[14], d[15])),
	}
	enc := EncodedCmd{Cmd: d[8], Param: d[10], Arg0: d[11], Arg1: d[12], Arg2: d[13]}
	return enc, s, true
}

func (w fanlampV2Wire) pack(enc EncodedCmd, s Session) []byte {
	return []byte{
		s.TxCount,
		byte(w.deviceType), byte(w.deviceType >> 8),
		byte(s.ID), byte(s.ID >> 8), byte(s.ID >> 16), byte(s.ID >> 24),
		s.Index,
		enc.Cmd,
		0x00,
		enc.Param,
		enc.Arg0, enc.Arg1, enc.Arg2,
		byte(s.Seed), byte(s.Seed >> 8),
	}
}

// fanlampLights are the on/off opcodes shared by both generations.
func fanlampLights() []translator {
	return []translator{
		trans(isLightOn(0), fixed(EncodedCmd{Cmd: 0x10}), encIs(0x10), fixedCmd(LightCommand{On: true})),
		trans(isLightOff(0), fixed(EncodedCmd{Cmd: 0x11}), encIs(0x11), fixedCmd(LightCommand{})),
		trans(isLightOn(1), fixed(EncodedCmd{Cmd: 0x12}), encIs(0x12), fixedCmd(LightCommand{Index: 1, On: true})),
		trans(isLightOff(1), fixed(EncodedCmd{Cmd: 0x13}), encIs(0x13), fixedCmd(LightCommand{Index: 1})),
		trans(isBlink(0), fixed(EncodedCmd{Cmd: 0x10}), nil, nil).noReverse(),
		trans(isBlink(1), fixed(EncodedCmd{Cmd: 0x12}), nil, nil).noReverse(),
	}
}

// fanlampCWW is the combined cold/warm write. The two generations place the
// channel levels in different argument bytes; pick reads the levels back
// out of an observed frame.
func fanlampCWW(toEnc func(a, b uint8) EncodedCmd, modeOf func(EncodedCmd) uint8, pick func(EncodedCmd) (uint8, uint8)) []translator {
	decode := func(e EncodedCmd) Command {
		a, b := pick(e)
		return LightCommand{On: true, ChannelA: Level(scaleFrom(a, 255)), ChannelB: Level(scaleFrom(b, 255))}
	}
	return []translator{
		trans(isChannels(0),
			func(c Command) EncodedCmd {
				l := c.(LightCommand)
				return toEnc(scaleTo(*l.ChannelA, 255), scaleTo(*l.ChannelB, 255))
			},
			func(e EncodedCmd) bool { return e.Cmd == 0x21 && modeOf(e) == 0 },
			decode),
		// Night-mode shortcut and the remote's alternate mode byte,
		// observed only.
		trans(nil, nil, encIs(0x23),
			fixedCmd(LightCommand{On: true, ChannelA: Level(10), ChannelB: Level(10)})).noDirect(),
		trans(nil, nil,
			func(e EncodedCmd) bool { return e.Cmd == 0x21 && modeOf(e) == 0x40 },
			decode).noDirect(),
	}
}

func fanlampRGB() []translator {
	return []translator{
		trans(isRGB(1),
			func(c Command) EncodedCmd {
				l := c.(LightCommand)
				return EncodedCmd{Cmd: 0x22, Arg0: scaleTo(*l.Red, 255), Arg1: scaleTo(*l.Green, 255), Arg2: scaleTo(*l.Blue, 255)}
			},
			encIs(0x22),
			func(e EncodedCmd) Command {
				return LightCommand{Index: 1, On: true,
					Red: Level(scaleFrom(e.Arg0, 255)), Green: Level(scaleFrom(e.Arg1, 255)), Blue: Level(scaleFrom(e.Arg2, 255))}
			}),
	}
}

// fanlampFanAspects are the direction and oscillation opcodes, identical in
// both generations.
func fanlampFanAspects() []translator {
	return []translator{
		trans(isFanDirection(true), fixed(EncodedCmd{Cmd: 0x15, Arg0: 0}), encIsArg0(0x15, 0), fixedCmd(FanCommand{On: true, Forward: Flag(true)})),
		trans(isFanDirection(false), fixed(EncodedCmd{Cmd: 0x15, Arg0: 1}), encIsArg0(0x15, 1), fixedCmd(FanCommand{On: true, Forward: Flag(false)})),
		trans(isFanOscillate(true), fixed(EncodedCmd{Cmd: 0x16, Arg0: 1}), encIsArg0(0x16, 1), fixedCmd(FanCommand{On: true, Oscillate: Flag(true)})),
		trans(isFanOscillate(false), fixed(EncodedCmd{Cmd: 0x16, Arg0: 0}), encIsArg0(0x16, 0), fixedCmd(FanCommand{On: true, Oscillate: Flag(false)})),
	}
}

func fanlampDevice() []translator {
	return []translator{
		trans(isPair, fixed(EncodedCmd{Cmd: 0x28}), encIs(0x28), fixedCmd(PairRequest{})),
		trans(isUnpair, fixed(EncodedCmd{Cmd: 0x45}), encIs(0x45), fixedCmd(UnpairRequest{})),
	}
}

func fanlampTableV1() []translator {
	t := fanlampLights()
	t = append(t, fanlampCWW(
		func(a, b uint8) EncodedCmd { return EncodedCmd{Cmd: 0x21, Param: 0, Arg0: a, Arg1: b} },
		func(e EncodedCmd) uint8 { return e.Param },
		func(e EncodedCmd) (uint8, uint8) { return e.Arg0, e.Arg1 },
	)...)
	t = append(t, fanlampRGB()...)
	t = append(t,
		trans(isFanOff, fixed(EncodedCmd{Cmd: 0x31, Arg0: 0, Arg1: 0}),
			func(e EncodedCmd) bool { return e.Cmd == 0x31 && e.Arg0 == 0 && e.Arg1 == 0 },
			fixedCmd(FanCommand{})),
		trans(isFanSpeedRange(6, 1, 6),
			func(c Command) EncodedCmd { return EncodedCmd{Cmd: 0x32, Arg0: c.(FanCommand).Speed, Arg1: 6} },
			func(e EncodedCmd) bool { return e.Cmd == 0x32 && e.Arg1 == 6 && e.Arg0 >= 1 },
			func(e EncodedCmd) Command { return FanCommand{On: true, Speed: e.Arg0, SpeedCount: 6} }),
		trans(nil, nil,
			func(e EncodedCmd) bool { return e.Cmd == 0x32 && e.Arg1 == 0 && e.Arg0 >= 1 },
			func(e EncodedCmd) Command { return FanCommand{On: true, Speed: e.Arg0, SpeedCount: 6} }).noDirect(),
		trans(isFanSpeedRange(3, 1, 3),
			func(c Command) EncodedCmd { return EncodedCmd{Cmd: 0x31, Arg0: c.(FanCommand).Speed, Arg1: 0} },
			func(e EncodedCmd) bool { return e.Cmd == 0x31 && e.Arg1 == 0 && e.Arg0 >= 1 },
			func(e EncodedCmd) Command { return FanCommand{On: true, Speed: e.Arg0, SpeedCount: 3} }),
	)
	t = append(t, fanlampFanAspects()...)
	t = append(t, fanlampDevice()...)
	t = append(t,
		// v1 carries the timer in a single minute byte; longer durations
		// have no representation and fail the encode.
		trans(isTimerMaxMinutes(255),
			func(c Command) EncodedCmd { return EncodedCmd{Cmd: 0x51, Arg0: uint8(c.(TimerRequest).Minutes)} },
			encIs(0x51),
			func(e EncodedCmd) Command { return TimerRequest{Minutes: uint16(e.Arg0)} }),
	)
	return t
}

func fanlampTableV2() []translator {
	t := fanlampLights()
	t = append(t, fanlampCWW(
		func(a, b uint8) EncodedCmd { return EncodedCmd{Cmd: 0x21, Arg0: 0, Arg1: a, Arg2: b} },
		func(e EncodedCmd) uint8 { return e.Arg0 },
		func(e EncodedCmd) (uint8, uint8) { return e.Arg1, e.Arg2 },
	)...)
	t = append(t, fanlampRGB()...)
	t = append(t,
		trans(isFanOffCount(6), fixed(EncodedCmd{Cmd: 0x31, Arg0: 0x20, Arg1: 0}),
			func(e EncodedCmd) bool { return e.Cmd == 0x31 && e.Arg0 == 0x20 && e.Arg1 == 0 },
			fixedCmd(FanCommand{SpeedCount: 6})),
		trans(isFanSpeedRange(6, 1, 6),
			func(c Command) EncodedCmd { return EncodedCmd{Cmd: 0x31, Arg0: 0x20, Arg1: c.(FanCommand).Speed} },
			func(e EncodedCmd) bool { return e.Cmd == 0x31 && e.Arg0 == 0x20 && e.Arg1 >= 1 },
			func(e EncodedCmd) Command { return FanCommand{On: true, Speed: e.Arg1, SpeedCount: 6} }),
		trans(isFanOff, fixed(EncodedCmd{Cmd: 0x31, Arg0: 0, Arg1: 0}),
			func(e EncodedCmd) bool { return e.Cmd == 0x31 && e.Arg0 == 0 && e.Arg1 == 0 },
			fixedCmd(FanCommand{SpeedCount: 3})),
		trans(isFanSpeedRange(3, 1, 3),
			func(c Command) EncodedCmd { return EncodedCmd{Cmd: 0x31, Arg0: 0, Arg1: c.(FanCommand).Speed} },
			func(e EncodedCmd) bool { return e.Cmd == 0x31 && e.Arg0 == 0 && e.Arg1 >= 1 },
			func(e EncodedCmd) Command { return FanCommand{On: true, Speed: e.Arg1, SpeedCount: 3} }),
	)
	t = append(t, fanlampFanAspects()...)
	t = append(t, fanlampDevice()...)
	t = append(t,
		trans(isTimer,
			func(c Command) EncodedCmd {
				m := c.(TimerRequest).Minutes
				return EncodedCmd{Cmd: 0x41, Arg0: uint8(m), Arg1: uint8(m >> 8)}
			},
			encIs(0x41),
			func(e EncodedCmd) Command { return TimerRequest{Minutes: uint16(e.Arg1)<<8 | uint16(e.Arg0)} }),
	)
	return t
}

var fanlampV1Prefix = []byte{0xAA, 0x98, 0x43, 0xAF, 0x0B, 0x46, 0x46, 0x46}

// fanlampCodecs builds the FanLamp Pro and LampSmart Pro registrations.
func fanlampCodecs() []*Codec {
	headerV1 := []byte{0x77, 0xF8}
	headerV2 := []byte{0xF0, 0x08}

	v1 := func(id string, arg2 byte, arg2OnlyOnPair bool) *Codec {
		return newCodec(codecSpec{
			id:      id,
			header:  headerV1,
			prefix:  fanlampV1Prefix,
			bleType: 0x03,
			adFlag:  0x19,
			length:  24,
			seedMax: 0xFFF5,
		}, newFanlampV1Wire(fanlampV1Prefix, headerV1[0], arg2, arg2OnlyOnPair), fanlampTableV1())
	}
	v2 := func(id string, deviceType uint16, withSign bool, prefix []byte) *Codec {
		return newCodec(codecSpec{
			id:      id,
			header:  headerV2,
			prefix:  prefix,
			bleType: 0x03,
			adFlag:  0x19,
			length:  24,
			seedMax: 0xFFF5,
		}, newFanlampV2Wire(prefix, deviceType, withSign), fanlampTableV2())
	}

	return []*Codec{
		v1("fanlamp_pro_v1", 0x83, false),
		v2("fanlamp_pro_v2", 0x0400, false, []byte{0x10, 0x80, 0x00}),
		v2("fanlamp_pro_v3", 0x0400, true, []byte{0x20, 0x80, 0x00}),
		v1("lampsmart_pro_v1", 0x81, true),
		v2("lampsmart_pro_v2", 0x0100, false, []byte{0x10, 0x80, 0x00}),
		v2("lampsmart_pro_v3", 0x0100, true, []byte{0x30, 0x80, 0x00}),
	}
}
