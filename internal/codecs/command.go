package codecs

import "fmt"

// Command is the vendor-neutral representation of one action a device
// entity performs. Exactly one variant is active per message; fields that
// a variant leaves nil are meaningless, not zero.
type Command interface {
	isCommand()
}

// LightCommand drives one logical light. Brightness and the optional fields
// are percentages (0-100). For split cold/warm fixtures ChannelA carries the
// cold channel level and ChannelB the warm channel level; the codec never
// merges the two into a colour-temperature value.
type LightCommand struct {
	Index      int
	On         bool
	Brightness uint8

	// ColorTemp is the colour temperature for single-entity CWW fixtures:
	// 0 is fully cold, 100 fully warm.
	ColorTemp *uint8

	// ChannelA / ChannelB are independent channel levels for split control.
	ChannelA *uint8
	ChannelB *uint8

	// Red / Green / Blue are percentage levels for RGB fixtures.
	Red   *uint8
	Green *uint8
	Blue  *uint8
}

// FanCommand drives one logical fan. Direction and oscillation are
// optional: vendor protocols address each aspect with its own opcode, so a
// nil field means "not part of this command", not a default.
type FanCommand struct {
	Index int
	On    bool

	// Speed is 1..SpeedCount while on; 0 when the command does not change
	// the speed.
	Speed      uint8
	SpeedCount uint8

	// Forward selects the rotation direction when set.
	Forward *bool

	// Oscillate toggles oscillation when set.
	Oscillate *bool
}

// PairRequest asks the device to bind to the sender's forced id. Devices
// accept it only while in their native pairing window (power-cycle).
type PairRequest struct{}

// UnpairRequest asks the device to forget the sender's forced id.
type UnpairRequest struct{}

// BlinkRequest is a distinguishing command used during validation: the
// device visibly reacts (light toggles on) so an operator can confirm a
// candidate identity.
type BlinkRequest struct {
	EntityIndex int
}

// TimerRequest arms the device's native off-timer.
type TimerRequest struct {
	Minutes uint16
}

func (LightCommand) isCommand()  {}
func (FanCommand) isCommand()    {}
func (PairRequest) isCommand()   {}
func (UnpairRequest) isCommand() {}
func (BlinkRequest) isCommand()  {}
func (TimerRequest) isCommand()  {}

// Level is a convenience constructor for optional percentage fields.
func Level(v uint8) *uint8 {
	return &v
}

func (c LightCommand) String() string {
	s := fmt.Sprintf("light_%d{on:%t br:%d", c.Index, c.On, c.Brightness)
	if c.ColorTemp != nil {
		s += fmt.Sprintf(" ct:%d", *c.ColorTemp)
	}
	if c.ChannelA != nil || c.ChannelB != nil {
		s += fmt.Sprintf(" a:%s b:%s", levelString(c.ChannelA), levelString(c.ChannelB))
	}
	if c.Red != nil {
		s += fmt.Sprintf(" rgb:%s/%s/%s", levelString(c.Red), levelString(c.Green), levelString(c.Blue))
	}
	return s + "}"
}

func (c FanCommand) String() string {
	return fmt.Sprintf("fan_%d{on:%t speed:%d/%d fwd:%s osc:%s}",
		c.Index, c.On, c.Speed, c.SpeedCount, boolString(c.Forward), boolString(c.Oscillate))
}

func boolString(v *bool) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%t", *v)
}

// Flag is a convenience constructor for optional boolean fields.
func Flag(v bool) *bool {
	return &v
}

func levelString(v *uint8) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// flagEq compares two optional booleans, treating nil as absent.
func flagEq(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// levelEq compares two optional levels, treating nil as absent.
func levelEq(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CommandsEqual reports whether two Commands describe the same device state.
// Used by the synchronization mirror to suppress redundant updates.
func CommandsEqual(a, b Command) bool {
	switch av := a.(type) {
	case LightCommand:
		bv, ok := b.(LightCommand)
		return ok && av.Index == bv.Index && av.On == bv.On && av.Brightness == bv.Brightness &&
			levelEq(av.ColorTemp, bv.ColorTemp) &&
			levelEq(av.ChannelA, bv.ChannelA) && levelEq(av.ChannelB, bv.ChannelB) &&
			levelEq(av.Red, bv.Red) && levelEq(av.Green, bv.Green) && levelEq(av.Blue, bv.Blue)
	case FanCommand:
		bv, ok := b.(FanCommand)
		return ok && av.Index == bv.Index && av.On == bv.On &&
			av.Speed == bv.Speed && av.SpeedCount == bv.SpeedCount &&
			flagEq(av.Forward, bv.Forward) && flagEq(av.Oscillate, bv.Oscillate)
	case PairRequest:
		_, ok := b.(PairRequest)
		return ok
	case UnpairRequest:
		_, ok := b.(UnpairRequest)
		return ok
	case BlinkRequest:
		bv, ok := b.(BlinkRequest)
		return ok && av == bv
	case TimerRequest:
		bv, ok := b.(TimerRequest)
		return ok && av == bv
	default:
		return false
	}
}
