package bridge

import (
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// CommandMessage is the JSON payload accepted on entity command topics
// (bleadv/command/{device}/{entity}). Aspects left out of the payload are
// left out of the radio command; the codec translator picks the opcode from
// what is present.
type CommandMessage struct {
	On         bool   `json:"on"`
	Brightness *uint8 `json:"brightness,omitempty"`
	ColorTemp  *uint8 `json:"color_temp,omitempty"`
	Red        *uint8 `json:"red,omitempty"`
	Green      *uint8 `json:"green,omitempty"`
	Blue       *uint8 `json:"blue,omitempty"`
	Speed      uint8  `json:"speed,omitempty"`
	Forward    *bool  `json:"forward,omitempty"`
	Oscillate  *bool  `json:"oscillate,omitempty"`
}

// StateMessage is the JSON payload published retained on entity state topics
// (bleadv/state/{device}/{entity}). It carries the last aspects observed or
// commanded for the entity.
type StateMessage struct {
	On         bool      `json:"on"`
	Brightness *uint8    `json:"brightness,omitempty"`
	ColorTemp  *uint8    `json:"color_temp,omitempty"`
	Red        *uint8    `json:"red,omitempty"`
	Green      *uint8    `json:"green,omitempty"`
	Blue       *uint8    `json:"blue,omitempty"`
	Speed      *uint8    `json:"speed,omitempty"`
	Forward    *bool     `json:"forward,omitempty"`
	Oscillate  *bool     `json:"oscillate,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeviceCommandMessage is the payload accepted on device-level command
// topics (bleadv/command/{device}/device).
//
// Actions: "pair", "unpair", "blink" (with entity), "timer" (with minutes).
type DeviceCommandMessage struct {
	Action  string `json:"action"`
	Entity  int    `json:"entity,omitempty"`
	Minutes uint16 `json:"minutes,omitempty"`
}

// DeviceEventMessage is published on bleadv/event/{device} for outcomes the
// state topics cannot carry: command failures and observed device-level
// traffic such as pairings.
type DeviceEventMessage struct {
	Type    string    `json:"type"`
	Entity  int       `json:"entity,omitempty"`
	Command string    `json:"command,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// DiscoveryCommandMessage drives discovery sessions from
// bleadv/discovery/command.
//
// Actions: "start" (budget_seconds), "validate" (entity), "confirm",
// "cancel", "manual" (codec, forced_id, index, entity).
type DiscoveryCommandMessage struct {
	Action        string `json:"action"`
	BudgetSeconds int    `json:"budget_seconds,omitempty"`
	Entity        int    `json:"entity,omitempty"`
	Codec         string `json:"codec,omitempty"`
	ForcedID      uint32 `json:"forced_id,omitempty"`
	Index         uint8  `json:"index,omitempty"`
}

// DiscoveryEventMessage reports discovery progress on
// bleadv/discovery/event.
//
// Types: "candidates", "timed_out", "cancelled", "validated",
// "validation_failed", "error".
type DiscoveryEventMessage struct {
	Type       string             `json:"type"`
	Candidates []CandidateMessage `json:"candidates,omitempty"`
	Codec      string             `json:"codec,omitempty"`
	ForcedID   uint32             `json:"forced_id,omitempty"`
	Index      uint8              `json:"index,omitempty"`
	Error      string             `json:"error,omitempty"`
	At         time.Time          `json:"at"`
}

// CandidateMessage is one ranked discovery candidate.
type CandidateMessage struct {
	Codec      string    `json:"codec"`
	ForcedID   uint32    `json:"forced_id"`
	Index      uint8     `json:"index"`
	Confidence int       `json:"confidence"`
	PairSeen   bool      `json:"pair_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// TransmitMessage is the payload published to a radio adapter's tx topic.
// The adapter emits the buffer once per message; repetition cadence is the
// transmit queue's responsibility.
type TransmitMessage struct {
	Raw string `json:"raw"`
}

// stateFromCommand projects a decoded or commanded state change onto the
// published state shape. Returns false for command variants that carry no
// entity state (pair, unpair, blink, timer).
func stateFromCommand(cmd codecs.Command, at time.Time) (StateMessage, int, bool) {
	switch c := cmd.(type) {
	case codecs.LightCommand:
		msg := StateMessage{
			On:        c.On,
			ColorTemp: c.ColorTemp,
			Red:       c.Red,
			Green:     c.Green,
			Blue:      c.Blue,
			UpdatedAt: at,
		}
		if c.On {
			br := c.Brightness
			if br == 0 {
				// Channel-level writes carry no overall brightness; publish
				// the brighter channel so the retained state is not "on at 0".
				if c.ChannelA != nil && *c.ChannelA > br {
					br = *c.ChannelA
				}
				if c.ChannelB != nil && *c.ChannelB > br {
					br = *c.ChannelB
				}
			}
			if br > 0 {
				msg.Brightness = &br
			}
		}
		return msg, c.Index, true
	case codecs.FanCommand:
		msg := StateMessage{
			On:        c.On,
			Forward:   c.Forward,
			Oscillate: c.Oscillate,
			UpdatedAt: at,
		}
		if c.On && c.Speed > 0 {
			sp := c.Speed
			msg.Speed = &sp
		}
		return msg, c.Index, true
	default:
		return StateMessage{}, 0, false
	}
}

// channelState is the published state for one half of a split cold/warm
// fixture: a channel level of zero means that half is off.
func channelState(level uint8, at time.Time) StateMessage {
	msg := StateMessage{On: level > 0, UpdatedAt: at}
	if level > 0 {
		br := level
		msg.Brightness = &br
	}
	return msg
}
