package codecs

import "fmt"

// Registry is the immutable codec lookup built once at startup. Iteration
// order is registration order, which keeps discovery ranking deterministic.
type Registry struct {
	ordered []*Codec
	byID    map[string]*Codec
}

// NewRegistry builds a registry from the given codecs, rejecting duplicate
// identifiers.
func NewRegistry(codecs ...*Codec) (*Registry, error) {
	r := &Registry{
		ordered: make([]*Codec, 0, len(codecs)),
		byID:    make(map[string]*Codec, len(codecs)),
	}
	for _, c := range codecs {
		if _, dup := r.byID[c.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCodec, c.ID())
		}
		r.byID[c.ID()] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// DefaultRegistry registers every supported vendor protocol.
func DefaultRegistry() *Registry {
	all := zhijiaCodecs()
	all = append(all, fanlampCodecs()...)
	all = append(all, agarceCodecs()...)
	r, err := NewRegistry(all...)
	if err != nil {
		// Identifiers are compile-time constants; a collision is a
		// programming error.
		panic(err)
	}
	return r
}

// Find resolves a codec identifier.
func (r *Registry) Find(id string) (*Codec, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, id)
	}
	return c, nil
}

// Codecs returns the registered codecs in registration order.
func (r *Registry) Codecs() []*Codec {
	out := make([]*Codec, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Match is one successful decode of an advertisement.
type Match struct {
	Codec   *Codec
	Cmd     Command
	Session Session
}

// Identity returns the identity the matched traffic belongs to.
func (m Match) Identity() Identity {
	return m.Codec.Identity(m.Session)
}

// Decode is the identity-first dispatch used in steady state: the owning
// codec is resolved directly and the decoded traffic must belong to the
// given identity. Cost is one codec invocation regardless of how many
// protocols are registered.
func (r *Registry) Decode(id Identity, adv Advertisement) (Command, Session, bool) {
	c, err := r.Find(id.CodecID)
	if err != nil {
		return nil, Session{}, false
	}
	cmd, s, ok := c.DecodeCommand(adv)
	if !ok || s.ID != id.ID || s.Index != id.Index {
		return nil, Session{}, false
	}
	return cmd, s, true
}

// DecodeAll scans every registered codec and returns each successful
// decode. Used only during discovery, when the identity is unknown.
// An empty result is expected background noise, never an error.
func (r *Registry) DecodeAll(adv Advertisement) []Match {
	var out []Match
	for _, c := range r.ordered {
		if cmd, s, ok := c.DecodeCommand(adv); ok {
			out = append(out, Match{Codec: c, Cmd: cmd, Session: s})
		}
	}
	return out
}
