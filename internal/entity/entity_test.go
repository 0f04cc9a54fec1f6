package entity

import (
	"errors"
	"testing"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

func TestParseType_Enumeration(t *testing.T) {
	valid := []string{"rgb", "cww", "cold", "warm", "binary", "fan3", "fan6"}
	for _, s := range valid {
		if _, err := ParseType(s); err != nil {
			t.Errorf("ParseType(%q) error = %v, want nil", s, err)
		}
	}
	for _, s := range []string{"", "fan", "cold_warm", "RGB"} {
		if _, err := ParseType(s); !errors.Is(err, ErrUnknownType) {
			t.Errorf("ParseType(%q) error = %v, want ErrUnknownType", s, err)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid cold", Config{Type: TypeCold, Index: 0, MinBrightness: 3}, false},
		{"valid fan", Config{Type: TypeFan6, Index: 1}, false},
		{"unknown type", Config{Type: "strobe"}, true},
		{"negative index", Config{Type: TypeCWW, Index: -1}, true},
		{"floor over 100", Config{Type: TypeCWW, MinBrightness: 101}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_LightCommand_SplitChannels(t *testing.T) {
	cold := Config{Type: TypeCold, Index: 0, MinBrightness: 3}
	warm := Config{Type: TypeWarm, Index: 0, MinBrightness: 3}

	got, err := cold.LightCommand(LightState{On: true, Brightness: 50})
	if err != nil {
		t.Fatalf("cold LightCommand() error = %v", err)
	}
	want := codecs.LightCommand{Index: 0, On: true, ChannelA: codecs.Level(50)}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("cold command = %v, want %v", got, want)
	}

	got, err = warm.LightCommand(LightState{On: true, Brightness: 30})
	if err != nil {
		t.Fatalf("warm LightCommand() error = %v", err)
	}
	want = codecs.LightCommand{Index: 0, On: true, ChannelB: codecs.Level(30)}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("warm command = %v, want %v", got, want)
	}

	// A warm half on its own slot still drives the primary light.
	warmSlot1 := Config{Type: TypeWarm, Index: 1, MinBrightness: 3}
	got, err = warmSlot1.LightCommand(LightState{On: true, Brightness: 30})
	if err != nil {
		t.Fatalf("warm slot 1 LightCommand() error = %v", err)
	}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("warm slot 1 command = %v, want %v", got, want)
	}
}

// TestConfig_ColdEntityEndToEnd drives the split cold channel through the
// split codec and back: the cold level must survive the round trip and the
// warm channel argument must be forced to zero on the wire.
func TestConfig_ColdEntityEndToEnd(t *testing.T) {
	reg := codecs.DefaultRegistry()
	codec, err := reg.Find("zhijia_v2_split")
	if err != nil {
		t.Fatalf("Find(zhijia_v2_split) error = %v", err)
	}

	cfg := Config{Type: TypeCold, Index: 0, MinBrightness: 3}
	cmd, err := cfg.LightCommand(LightState{On: true, Brightness: 50})
	if err != nil {
		t.Fatalf("LightCommand() error = %v", err)
	}

	s := codecs.Session{ID: 0x123456, Index: 0, RestartCount: 1}
	adv, err := codec.EncodeCommand(cmd, &s)
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	decoded, ds, ok := codec.DecodeCommand(adv)
	if !ok {
		t.Fatal("DecodeCommand() rejected own encoding")
	}
	if !codecs.CommandsEqual(decoded, cmd) {
		t.Errorf("decoded = %v, want %v", decoded, cmd)
	}
	if ds.ID != s.ID || ds.Index != s.Index {
		t.Errorf("decoded identity = %#x/%d, want %#x/%d", ds.ID, ds.Index, s.ID, s.Index)
	}
}

func TestConfig_LightCommand_BrightnessFloor(t *testing.T) {
	cfg := Config{Type: TypeCold, Index: 0, MinBrightness: 3}

	if _, err := cfg.LightCommand(LightState{On: true, Brightness: 2}); !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("brightness below floor error = %v, want ErrBelowMinimum", err)
	}
	if _, err := cfg.LightCommand(LightState{On: true, Brightness: 0}); !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("zero brightness while on error = %v, want ErrBelowMinimum", err)
	}

	// Off never consults the floor.
	got, err := cfg.LightCommand(LightState{On: false, Brightness: 0})
	if err != nil {
		t.Fatalf("off LightCommand() error = %v", err)
	}
	want := codecs.LightCommand{Index: 0, On: false}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("off command = %v, want %v", got, want)
	}
}

func TestConfig_LightCommand_Shapes(t *testing.T) {
	ct := uint8(40)
	tests := []struct {
		name string
		cfg  Config
		st   LightState
		want codecs.Command
	}{
		{
			"binary ignores brightness",
			Config{Type: TypeBinary, Index: 1},
			LightState{On: true, Brightness: 70},
			codecs.LightCommand{Index: 1, On: true},
		},
		{
			"cww brightness",
			Config{Type: TypeCWW},
			LightState{On: true, Brightness: 80},
			codecs.LightCommand{On: true, Brightness: 80},
		},
		{
			"cww colour temperature wins",
			Config{Type: TypeCWW},
			LightState{On: true, Brightness: 80, ColorTemp: &ct},
			codecs.LightCommand{On: true, ColorTemp: codecs.Level(40)},
		},
		{
			"rgb levels",
			Config{Type: TypeRGB},
			LightState{On: true, Brightness: 5, Red: codecs.Level(10), Green: codecs.Level(20), Blue: codecs.Level(30)},
			codecs.LightCommand{On: true, Red: codecs.Level(10), Green: codecs.Level(20), Blue: codecs.Level(30)},
		},
		{
			"rgb brightness only",
			Config{Type: TypeRGB},
			LightState{On: true, Brightness: 55},
			codecs.LightCommand{On: true, Brightness: 55},
		},
		{
			"brightness clamped to 100",
			Config{Type: TypeCWW},
			LightState{On: true, Brightness: 200},
			codecs.LightCommand{On: true, Brightness: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.LightCommand(tt.st)
			if err != nil {
				t.Fatalf("LightCommand() error = %v", err)
			}
			if !codecs.CommandsEqual(got, tt.want) {
				t.Errorf("LightCommand() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_FanCommand(t *testing.T) {
	fan := Config{Type: TypeFan6, Index: 0}

	got, err := fan.FanCommand(FanState{On: true, Speed: 4})
	if err != nil {
		t.Fatalf("FanCommand() error = %v", err)
	}
	want := codecs.FanCommand{On: true, Speed: 4, SpeedCount: 6}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("speed command = %v, want %v", got, want)
	}

	got, err = fan.FanCommand(FanState{On: true, Forward: codecs.Flag(false)})
	if err != nil {
		t.Fatalf("FanCommand() error = %v", err)
	}
	want = codecs.FanCommand{On: true, SpeedCount: 6, Forward: codecs.Flag(false)}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("direction command = %v, want %v", got, want)
	}

	got, err = fan.FanCommand(FanState{On: false})
	if err != nil {
		t.Fatalf("FanCommand() error = %v", err)
	}
	want = codecs.FanCommand{SpeedCount: 6}
	if !codecs.CommandsEqual(got, want) {
		t.Errorf("off command = %v, want %v", got, want)
	}

	if _, err := fan.FanCommand(FanState{On: true, Speed: 7}); !errors.Is(err, ErrSpeedRange) {
		t.Errorf("overspeed error = %v, want ErrSpeedRange", err)
	}
}

func TestConfig_TypeMismatch(t *testing.T) {
	light := Config{Type: TypeCWW}
	fan := Config{Type: TypeFan3}

	if _, err := light.FanCommand(FanState{On: true, Speed: 1}); !errors.Is(err, ErrWrongType) {
		t.Errorf("fan state on light error = %v, want ErrWrongType", err)
	}
	if _, err := fan.LightCommand(LightState{On: true, Brightness: 50}); !errors.Is(err, ErrWrongType) {
		t.Errorf("light state on fan error = %v, want ErrWrongType", err)
	}
}
