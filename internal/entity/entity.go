package entity

import (
	"fmt"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// Type enumerates the supported entity kinds. The string values are stable:
// they appear in configuration files and must not change once released.
type Type string

const (
	// TypeRGB is a full-colour lamp with brightness and RGB levels.
	TypeRGB Type = "rgb"

	// TypeCWW is a cold-white/warm-white lamp controlled as one entity via
	// brightness plus colour temperature.
	TypeCWW Type = "cww"

	// TypeCold and TypeWarm are the two halves of a split cold/warm
	// fixture, each exposed as an independent brightness-only entity. On
	// the wire both halves drive the device's primary light.
	TypeCold Type = "cold"
	TypeWarm Type = "warm"

	// TypeBinary is a bare on/off light with no dimming.
	TypeBinary Type = "binary"

	// TypeFan3 and TypeFan6 are fans with 3 and 6 speed steps.
	TypeFan3 Type = "fan3"
	TypeFan6 Type = "fan6"
)

// ParseType validates a configuration string against the enumeration.
// Accepted tokens: "rgb" (full-colour lamp), "cww" (cold/warm white driven
// as one entity via brightness and colour temperature), "cold" and "warm"
// (the two halves of a split cold/warm fixture), "binary" (on/off, no
// dimming), "fan3" and "fan6" (fans with 3 and 6 speed steps).
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeRGB, TypeCWW, TypeCold, TypeWarm, TypeBinary, TypeFan3, TypeFan6:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Config describes one logical entity of a device.
type Config struct {
	Type Type `yaml:"type"`

	// Index is the slot the entity occupies on the device's MQTT topics.
	// Indexes are unique per device; split cold/warm halves each get their
	// own slot and share the primary light on the wire.
	Index int `yaml:"index"`

	// MinBrightness is the lowest brightness percentage the fixture can
	// drive while on. Commands below it are rejected, not rounded up.
	MinBrightness uint8 `yaml:"min_brightness"`

	// RefreshOnStart makes the host re-send the last known state when the
	// process starts, re-synchronising the device's rolling counter.
	RefreshOnStart bool `yaml:"refresh_on_start"`
}

// Validate checks the Config against the enumeration and field ranges.
func (c Config) Validate() error {
	if _, err := ParseType(string(c.Type)); err != nil {
		return err
	}
	if c.Index < 0 {
		return fmt.Errorf("entity: index %d must not be negative", c.Index)
	}
	if c.MinBrightness > 100 {
		return fmt.Errorf("entity: min_brightness %d exceeds 100", c.MinBrightness)
	}
	return nil
}

// IsFan reports whether the entity is a fan type.
func (c Config) IsFan() bool {
	return c.Type == TypeFan3 || c.Type == TypeFan6
}

// SpeedCount returns the fan speed step count, 0 for light types.
func (c Config) SpeedCount() uint8 {
	switch c.Type {
	case TypeFan3:
		return 3
	case TypeFan6:
		return 6
	default:
		return 0
	}
}

// LightState is a desired light state. At most one optional aspect is acted
// on per command: colour temperature wins over RGB, RGB over brightness.
type LightState struct {
	On         bool
	Brightness uint8
	ColorTemp  *uint8
	Red        *uint8
	Green      *uint8
	Blue       *uint8
}

// FanState is a desired fan state. Forward and Oscillate follow the Command
// convention: nil means the aspect is not part of this change.
type FanState struct {
	On        bool
	Speed     uint8
	Forward   *bool
	Oscillate *bool
}

// wireIndex is the light index commands address on the radio: split
// cold/warm halves drive the primary light, everything else its own slot.
func (c Config) wireIndex() int {
	if c.Type == TypeCold || c.Type == TypeWarm {
		return 0
	}
	return c.Index
}

// LightCommand builds the single Command that realises st on this entity.
//
// Brightness is clamped to 100 and must meet the configured floor while on.
// Split cold/warm entities emit a single-channel level on the primary
// light; the codec forces the other channel's argument to zero so every
// encode is a full rewrite.
func (c Config) LightCommand(st LightState) (codecs.Command, error) {
	if c.IsFan() {
		return nil, fmt.Errorf("%w: light state for %s entity %d", ErrWrongType, c.Type, c.Index)
	}
	if !st.On {
		return codecs.LightCommand{Index: c.wireIndex(), On: false}, nil
	}
	if c.Type == TypeBinary {
		return codecs.LightCommand{Index: c.Index, On: true}, nil
	}

	br := st.Brightness
	if br > 100 {
		br = 100
	}
	if br < c.MinBrightness {
		return nil, fmt.Errorf("%w: %d < %d on entity %d", ErrBelowMinimum, br, c.MinBrightness, c.Index)
	}

	switch c.Type {
	case TypeCold:
		return codecs.LightCommand{Index: c.wireIndex(), On: true, ChannelA: codecs.Level(br)}, nil
	case TypeWarm:
		return codecs.LightCommand{Index: c.wireIndex(), On: true, ChannelB: codecs.Level(br)}, nil
	case TypeCWW:
		if st.ColorTemp != nil {
			ct := *st.ColorTemp
			if ct > 100 {
				ct = 100
			}
			return codecs.LightCommand{Index: c.Index, On: true, ColorTemp: codecs.Level(ct)}, nil
		}
		return codecs.LightCommand{Index: c.Index, On: true, Brightness: br}, nil
	case TypeRGB:
		if st.Red != nil && st.Green != nil && st.Blue != nil {
			return codecs.LightCommand{
				Index: c.Index, On: true,
				Red: capLevel(st.Red), Green: capLevel(st.Green), Blue: capLevel(st.Blue),
			}, nil
		}
		return codecs.LightCommand{Index: c.Index, On: true, Brightness: br}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
}

// FanCommand builds the single Command that realises st on this entity.
func (c Config) FanCommand(st FanState) (codecs.Command, error) {
	if !c.IsFan() {
		return nil, fmt.Errorf("%w: fan state for %s entity %d", ErrWrongType, c.Type, c.Index)
	}
	count := c.SpeedCount()
	if !st.On {
		return codecs.FanCommand{Index: c.Index, On: false, SpeedCount: count}, nil
	}
	if st.Speed > count {
		return nil, fmt.Errorf("%w: %d > %d on entity %d", ErrSpeedRange, st.Speed, count, c.Index)
	}
	return codecs.FanCommand{
		Index:      c.Index,
		On:         true,
		Speed:      st.Speed,
		SpeedCount: count,
		Forward:    st.Forward,
		Oscillate:  st.Oscillate,
	}, nil
}

// BlinkCommand builds the validation blink for this entity.
func (c Config) BlinkCommand() codecs.Command {
	return codecs.BlinkRequest{EntityIndex: c.wireIndex()}
}

func capLevel(v *uint8) *uint8 {
	if *v > 100 {
		return codecs.Level(100)
	}
	return codecs.Level(*v)
}
