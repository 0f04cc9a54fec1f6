package codecs

// translator maps one Command shape onto one vendor opcode form and back.
// Tables are evaluated in order; the first matching entry wins, which keeps
// encode deterministic and decode unambiguous.
type translator struct {
	// direct entries encode host-issued Commands; reverse entries decode
	// observed traffic. Most are both; remote-only button shapes are
	// reverse-only, convenience shapes (blink) are direct-only.
	direct  bool
	reverse bool

	match    func(Command) bool
	toEnc    func(Command) EncodedCmd
	matchEnc func(EncodedCmd) bool
	toCmd    func(EncodedCmd) Command
}

func (t translator) noDirect() translator {
	t.direct = false
	return t
}

func (t translator) noReverse() translator {
	t.reverse = false
	return t
}

// trans builds a bidirectional translator.
func trans(match func(Command) bool, toEnc func(Command) EncodedCmd,
	matchEnc func(EncodedCmd) bool, toCmd func(EncodedCmd) Command) translator {
	return translator{direct: true, reverse: true, match: match, toEnc: toEnc, matchEnc: matchEnc, toCmd: toCmd}
}

// scaleTo converts a 0-100 percentage onto a protocol argument range,
// rounding to nearest. scaleFrom is its inverse.
func scaleTo(pct uint8, max int) uint8 {
	v := (int(pct)*max + 50) / 100
	if v > max {
		v = max
	}
	return uint8(v)
}

func scaleFrom(raw uint8, max int) uint8 {
	v := (int(raw)*100 + max/2) / max
	if v > 100 {
		v = 100
	}
	return uint8(v)
}

// Command shape predicates shared across vendor tables.

func isLightOn(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.Brightness == 0 &&
			l.ColorTemp == nil && l.ChannelA == nil && l.ChannelB == nil && l.Red == nil
	}
}

func isLightOff(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && !l.On
	}
}

// isBrightness matches a plain brightness change on a CWW or dimmable light.
func isBrightness(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.Brightness > 0 &&
			l.ColorTemp == nil && l.ChannelA == nil && l.Red == nil
	}
}

// isColorTemp matches a colour-temperature change on a CWW light.
func isColorTemp(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.ColorTemp != nil && l.ChannelA == nil
	}
}

// isChannels matches a combined two-channel level write.
func isChannels(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.ChannelA != nil && l.ChannelB != nil
	}
}

// isChannelA / isChannelB match single-channel level writes for split
// fixtures that address the cold and warm channels independently.
func isChannelA(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.ChannelA != nil && l.ChannelB == nil
	}
}

func isChannelB(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.ChannelB != nil && l.ChannelA == nil
	}
}

func isTimerMinutes(minutes uint16) func(Command) bool {
	return func(c Command) bool {
		t, ok := c.(TimerRequest)
		return ok && t.Minutes == minutes
	}
}

// isTimerHours matches off-timer requests a protocol stores as whole hours
// in a single argument byte. Durations that don't divide into hours have no
// wire representation and fail the encode instead of rounding.
func isTimerHours(c Command) bool {
	t, ok := c.(TimerRequest)
	return ok && t.Minutes > 0 && t.Minutes%60 == 0 && t.Minutes/60 <= 255
}

// isTimerMaxMinutes bounds timers to what a single minute byte can carry.
func isTimerMaxMinutes(max uint16) func(Command) bool {
	return func(c Command) bool {
		t, ok := c.(TimerRequest)
		return ok && t.Minutes > 0 && t.Minutes <= max
	}
}

func isRGB(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.Red != nil && l.Green != nil && l.Blue != nil
	}
}

func isRGBBrightness(index int) func(Command) bool {
	return func(c Command) bool {
		l, ok := c.(LightCommand)
		return ok && l.Index == index && l.On && l.Brightness > 0 && l.Red == nil &&
			l.ColorTemp == nil && l.ChannelA == nil
	}
}

func isFanOff(c Command) bool {
	f, ok := c.(FanCommand)
	return ok && !f.On
}

func isFanOffCount(speedCount uint8) func(Command) bool {
	return func(c Command) bool {
		f, ok := c.(FanCommand)
		return ok && !f.On && f.SpeedCount == speedCount
	}
}

func isFanSpeed(speedCount, speed uint8) func(Command) bool {
	return func(c Command) bool {
		f, ok := c.(FanCommand)
		return ok && f.On && f.SpeedCount == speedCount && f.Speed == speed &&
			f.Forward == nil && f.Oscillate == nil
	}
}

func isFanSpeedRange(speedCount, min, max uint8) func(Command) bool {
	return func(c Command) bool {
		f, ok := c.(FanCommand)
		return ok && f.On && f.SpeedCount == speedCount && f.Speed >= min && f.Speed <= max &&
			f.Forward == nil && f.Oscillate == nil
	}
}

func isFanDirection(forward bool) func(Command) bool {
	return func(c Command) bool {
		f, ok := c.(FanCommand)
		return ok && f.On && f.Speed == 0 && f.Oscillate == nil &&
			f.Forward != nil && *f.Forward == forward
	}
}

func isFanOscillate(osc bool) func(Command) bool {
	return func(c Command) bool {
		f, ok := c.(FanCommand)
		return ok && f.On && f.Speed == 0 && f.Forward == nil &&
			f.Oscillate != nil && *f.Oscillate == osc
	}
}

// isFanState matches a full fan state write for protocols that carry every
// fan aspect in a single frame.
func isFanState(speedCount uint8) func(Command) bool {
	return func(c Command) bool {
		f, ok := c.(FanCommand)
		return ok && f.SpeedCount == speedCount && f.Forward != nil && f.Oscillate != nil
	}
}

func isPair(c Command) bool {
	_, ok := c.(PairRequest)
	return ok
}

func isUnpair(c Command) bool {
	_, ok := c.(UnpairRequest)
	return ok
}

func isTimer(c Command) bool {
	_, ok := c.(TimerRequest)
	return ok
}

func isBlink(index int) func(Command) bool {
	return func(c Command) bool {
		b, ok := c.(BlinkRequest)
		return ok && b.EntityIndex == index
	}
}

// Encoded side predicates.

func encIs(cmd uint8) func(EncodedCmd) bool {
	return func(e EncodedCmd) bool { return e.Cmd == cmd }
}

func encIsArg0(cmd, arg0 uint8) func(EncodedCmd) bool {
	return func(e EncodedCmd) bool { return e.Cmd == cmd && e.Arg0 == arg0 }
}

func encIsArgs(cmd, arg0, arg1 uint8) func(EncodedCmd) bool {
	return func(e EncodedCmd) bool { return e.Cmd == cmd && e.Arg0 == arg0 && e.Arg1 == arg1 }
}

// fixed builds an EncodedCmd constructor ignoring the command payload.
func fixed(enc EncodedCmd) func(Command) EncodedCmd {
	return func(Command) EncodedCmd { return enc }
}

// fixedCmd builds a Command constructor ignoring the encoded payload.
func fixedCmd(cmd Command) func(EncodedCmd) Command {
	return func(EncodedCmd) Command { return cmd }
}
