package codecs

import "sync"

// CounterStore owns the per-identity session cells: rolling counter,
// restart counter and whitening seed. All mutation happens under the cell's
// lock, so a host-issued encode and an overheard peer frame racing on the
// same identity serialize; the next transmitted counter always lands past
// whatever was last used or observed.
type CounterStore struct {
	mu    sync.Mutex
	cells map[Identity]*counterCell
}

type counterCell struct {
	mu sync.Mutex
	s  Session
}

func NewCounterStore() *CounterStore {
	return &CounterStore{cells: make(map[Identity]*counterCell)}
}

func (cs *CounterStore) cell(id Identity) *counterCell {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.cells[id]
	if !ok {
		c = &counterCell{s: *newSession(id)}
		cs.cells[id] = c
	}
	return c
}

// WithSession runs fn with exclusive access to the identity's session.
// Changes fn makes to the session are kept.
func (cs *CounterStore) WithSession(id Identity, fn func(*Session)) {
	c := cs.cell(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.s)
}

// Observe folds a session decoded from peer traffic into the local cell:
// the counter baseline follows the peer so the next host-issued encode
// advances past it instead of appearing stale to the device. wrap is the
// protocol's counter modulus; zero uses the default.
//
// The baseline only ever moves forward. A peer counter whose forward
// distance (mod wrap) exceeds half the range is a late or replayed frame,
// and adopting it would drop the local counter below values the device has
// already seen.
func (cs *CounterStore) Observe(id Identity, seen Session, wrap uint8) {
	c := cs.cell(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if wrap == 0 {
		wrap = defaultTxMax
	}
	ahead := (uint16(seen.TxCount) + uint16(wrap) - uint16(c.s.TxCount)) % uint16(wrap)
	if ahead != 0 && ahead <= uint16(wrap)/2 {
		c.s.TxCount = seen.TxCount
	}
	if seen.RestartCount != 0 {
		c.s.RestartCount = seen.RestartCount
	}
}

// Snapshot returns a copy of the identity's current session state.
func (cs *CounterStore) Snapshot(id Identity) Session {
	c := cs.cell(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
