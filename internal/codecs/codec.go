package codecs

import (
	"bytes"
	"math/rand"
)

// Default advertising cadence. Vendor apps repeat each packet for a fixed
// burst; receivers treat re-sightings inside ignDuration as duplicates.
const (
	defaultTxStep      = 1
	defaultTxMax       = 125
	defaultRepeat      = 9
	defaultIntervalMS  = 30
	defaultDurationMS  = 750
	defaultIgnDurMS    = 12000
	restartCounterWrap = 255
)

// wire is the per-variant byte policy: whitening/encryption of the payload
// and the packing of opcode, arguments, forced id and rolling counter into
// the decrypted ("readable") buffer. Implementations are stateless.
type wire interface {
	// decrypt unwhitens an incoming buffer and verifies its integrity
	// (checksum, padding, signature). Returns false to disqualify the
	// codec for this buffer; that is never fatal.
	decrypt(buf []byte) ([]byte, bool)

	// encrypt whitens a readable buffer and appends integrity bytes.
	encrypt(buf []byte) []byte

	// unpack extracts the opcode/args and session fields from a readable
	// buffer (prefix already stripped).
	unpack(decoded []byte) (EncodedCmd, Session, bool)

	// pack lays out opcode/args and session fields as a readable buffer.
	pack(enc EncodedCmd, s Session) []byte
}

// codecSpec is the wrapping and cadence shared by the generic path: fixed
// header/prefix/footer bytes, BLE AD framing, payload length, counter step
// and wrap, and advertising repeat parameters.
type codecSpec struct {
	id      string
	matchID string

	header      []byte
	headerStart int
	prefix      []byte
	footer      []byte

	bleType byte
	adFlag  byte

	// length is the readable payload length, header and footer excluded.
	length int

	txStep  uint8
	txMax   uint8
	seedMax uint16

	repeat     int
	intervalMS int
	durationMS int
	ignDurMS   int
}

// Codec is one vendor protocol variant: a wrapping spec, a wire policy and
// a Command translation table. Immutable after construction.
type Codec struct {
	spec  codecSpec
	wire  wire
	table []translator
}

func newCodec(spec codecSpec, w wire, table []translator) *Codec {
	if spec.matchID == "" {
		spec.matchID = spec.id
	}
	if spec.txStep == 0 {
		spec.txStep = defaultTxStep
	}
	if spec.txMax == 0 {
		spec.txMax = defaultTxMax
	}
	if spec.repeat == 0 {
		spec.repeat = defaultRepeat
	}
	if spec.intervalMS == 0 {
		spec.intervalMS = defaultIntervalMS
	}
	if spec.durationMS == 0 {
		spec.durationMS = defaultDurationMS
	}
	if spec.ignDurMS == 0 {
		spec.ignDurMS = defaultIgnDurMS
	}
	return &Codec{spec: spec, wire: w, table: table}
}

// ID returns the stable codec identifier used by configuration and the
// registry. Adding codecs never changes existing identifiers.
func (c *Codec) ID() string { return c.spec.id }

// MatchID groups codec variants that share wire traffic: a device paired
// under one variant also answers its siblings with the same MatchID.
func (c *Codec) MatchID() string { return c.spec.matchID }

// Repeat / IntervalMS / DurationMS are the advertising cadence the
// transport should use for this protocol.
func (c *Codec) Repeat() int     { return c.spec.repeat }
func (c *Codec) IntervalMS() int { return c.spec.intervalMS }
func (c *Codec) DurationMS() int { return c.spec.durationMS }

// IgnoreDurationMS is how long re-sightings of an identical buffer are
// treated as duplicate transmissions of the same button press.
func (c *Codec) IgnoreDurationMS() int { return c.spec.ignDurMS }

// CounterWrap is the modulus of this protocol's rolling counter.
func (c *Codec) CounterWrap() uint8 { return c.spec.txMax }

// Decode validates the AD framing, wrapping bytes and wire integrity of an
// advertisement and extracts the opcode and session fields. A false return
// disqualifies this codec for the buffer and nothing more: unrelated
// third-party advertisements are expected background noise.
func (c *Codec) Decode(adv Advertisement) (EncodedCmd, Session, bool) {
	lastPos := len(adv.Raw) - len(c.spec.footer)
	wrapped := lastPos - len(c.spec.header) - c.spec.headerStart
	if (adv.BLEType != 0 && adv.BLEType != c.spec.bleType) || wrapped != c.spec.length {
		return EncodedCmd{}, Session{}, false
	}
	if !bytes.HasPrefix(adv.Raw[c.spec.headerStart:], c.spec.header) {
		return EncodedCmd{}, Session{}, false
	}
	if !bytes.Equal(adv.Raw[lastPos:], c.spec.footer) {
		return EncodedCmd{}, Session{}, false
	}

	buf := make([]byte, 0, lastPos-len(c.spec.header))
	buf = append(buf, adv.Raw[:c.spec.headerStart]...)
	buf = append(buf, adv.Raw[c.spec.headerStart+len(c.spec.header):lastPos]...)

	decoded, ok := c.wire.decrypt(buf)
	if !ok || !bytes.HasPrefix(decoded, c.spec.prefix) {
		return EncodedCmd{}, Session{}, false
	}
	return c.wire.unpack(decoded[len(c.spec.prefix):])
}

// Encode lays out, encrypts and wraps an opcode for transmission, advancing
// the session's rolling counter by the codec's declared step (wrapping at
// its declared width — wraparound is normal, devices accept it).
func (c *Codec) Encode(enc EncodedCmd, s *Session) Advertisement {
	s.TxCount = (s.TxCount + c.spec.txStep) % c.spec.txMax
	if s.TxCount == 0 {
		s.RestartCount = (s.RestartCount + 1) % restartCounterWrap
	}
	if s.Seed == 0 && c.spec.seedMax > 0 {
		s.Seed = uint16(1 + rand.Intn(int(c.spec.seedMax)))
	}

	readable := append(append([]byte{}, c.spec.prefix...), c.wire.pack(enc, *s)...)
	encrypted := c.wire.encrypt(readable)

	raw := make([]byte, 0, len(encrypted)+len(c.spec.header)+len(c.spec.footer))
	raw = append(raw, encrypted[:c.spec.headerStart]...)
	raw = append(raw, c.spec.header...)
	raw = append(raw, encrypted[c.spec.headerStart:]...)
	raw = append(raw, c.spec.footer...)

	return Advertisement{BLEType: c.spec.bleType, ADFlag: c.spec.adFlag, Raw: raw}
}

// CommandToEnc translates a vendor-neutral Command to this codec's opcode
// form. Returns ErrUnsupportedCommand when no direct table entry represents
// the command; that is surfaced to the caller before any transmission.
func (c *Codec) CommandToEnc(cmd Command) (EncodedCmd, error) {
	for _, t := range c.table {
		if t.direct && t.match(cmd) {
			return t.toEnc(cmd), nil
		}
	}
	return EncodedCmd{}, ErrUnsupportedCommand
}

// EncToCommand translates an observed opcode back to a Command. Unmatched
// opcodes (vendor functions this table does not model) return false.
func (c *Codec) EncToCommand(enc EncodedCmd) (Command, bool) {
	for _, t := range c.table {
		if t.reverse && t.matchEnc(enc) {
			return t.toCmd(enc), true
		}
	}
	return nil, false
}

// EncodeCommand is the full outbound path: Command to bytes for one
// identity, using the caller-supplied session cell.
func (c *Codec) EncodeCommand(cmd Command, s *Session) (Advertisement, error) {
	enc, err := c.CommandToEnc(cmd)
	if err != nil {
		return Advertisement{}, err
	}
	return c.Encode(enc, s), nil
}

// DecodeCommand is the full inbound path: bytes to Command plus the session
// fields observed on the wire.
func (c *Codec) DecodeCommand(adv Advertisement) (Command, Session, bool) {
	enc, s, ok := c.Decode(adv)
	if !ok {
		return nil, Session{}, false
	}
	cmd, ok := c.EncToCommand(enc)
	if !ok {
		return nil, Session{}, false
	}
	return cmd, s, true
}

// Identity builds the Identity a decoded session belongs to under this codec.
func (c *Codec) Identity(s Session) Identity {
	return Identity{CodecID: c.spec.id, ID: s.ID, Index: s.Index}
}
