package codecs

import "fmt"

// Identity is the triple that disambiguates one physical device's traffic
// from everything else sharing the radio medium. Two devices never share an
// identical triple: the forced id is vendor-assigned or operator-chosen
// during pairing, the index separates logical sub-devices behind one id.
type Identity struct {
	CodecID string

	// ID is the forced id embedded in every advertisement (24-32 bits
	// depending on protocol).
	ID uint32

	// Index is the sub-device index.
	Index uint8
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/0x%08X/%d", i.CodecID, i.ID, i.Index)
}

// EncodedCmd is a vendor opcode with its raw arguments, the intermediate
// form between a Command and wire bytes.
type EncodedCmd struct {
	Cmd   uint8
	Param uint8
	Arg0  uint8
	Arg1  uint8
	Arg2  uint8
	Arg3  uint8
	Arg4  uint8
}

func (e EncodedCmd) String() string {
	return fmt.Sprintf("cmd:0x%02X param:0x%02X args:[%d,%d,%d,%d,%d]", e.Cmd, e.Param, e.Arg0, e.Arg1, e.Arg2, e.Arg3, e.Arg4)
}

// Session is the per-identity protocol bookkeeping carried in every packet:
// the rolling counter, the app-restart counter some protocols echo, and the
// whitening seed. It is not part of command identity.
type Session struct {
	// ID / Index mirror the owning Identity on the wire.
	ID    uint32
	Index uint8

	// TxCount is the rolling replay-protection counter.
	TxCount uint8

	// RestartCount increments each time TxCount wraps, mimicking the vendor
	// apps which bump it on app restart.
	RestartCount uint8

	// Seed is the whitening/encryption seed for protocols that carry one;
	// 0 means "pick a fresh one on next encode".
	Seed uint16
}

func (s Session) String() string {
	return fmt.Sprintf("id:0x%08X index:%d tx:%d seed:0x%04X", s.ID, s.Index, s.TxCount, s.Seed)
}

// newSession seeds Session state for a fresh identity. RestartCount starts
// at 1 to match the vendor apps' first-run behaviour.
func newSession(id Identity) *Session {
	return &Session{ID: id.ID, Index: id.Index, RestartCount: 1}
}
