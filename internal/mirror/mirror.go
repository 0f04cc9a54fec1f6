package mirror

import (
	"sync"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// Event is one externally visible device state change.
type Event struct {
	Identity codecs.Identity
	Cmd      codecs.Command
	Received time.Time
}

// Sink receives state-change events. Implementations must not block; the
// daemon wiring fans events out to MQTT and the state history writer.
type Sink interface {
	StateChanged(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) StateChanged(ev Event) { f(ev) }

// Logger defines the logging interface for the mirror.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ownEchoWindow is how long the mirror ignores re-sightings of a buffer it
// transmitted itself; the radio hears its own bursts.
const ownEchoWindow = 5 * time.Second

// pruneAfter bounds the raw-buffer suppression maps.
const pruneAfter = time.Minute

// Mirror decodes observed traffic for configured identities and republishes
// resulting state changes.
type Mirror struct {
	reg      *codecs.Registry
	counters *codecs.CounterStore
	sink     Sink
	logger   Logger

	mu         sync.Mutex
	identities map[codecs.Identity]struct{}
	lastState  map[codecs.Identity]codecs.Command
	recent     map[string]time.Time
	own        map[string]time.Time
	lastPrune  time.Time
}

// New creates a mirror over the given registry and counter store.
func New(reg *codecs.Registry, counters *codecs.CounterStore, sink Sink) *Mirror {
	return &Mirror{
		reg:        reg,
		counters:   counters,
		sink:       sink,
		logger:     noopLogger{},
		identities: make(map[codecs.Identity]struct{}),
		lastState:  make(map[codecs.Identity]codecs.Command),
		recent:     make(map[string]time.Time),
		own:        make(map[string]time.Time),
	}
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	m.logger = logger
}

// Register adds a configured identity to mirror.
func (m *Mirror) Register(id codecs.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[id] = struct{}{}
}

// Unregister removes an identity and forgets its state.
func (m *Mirror) Unregister(id codecs.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, id)
	delete(m.lastState, id)
}

// NoteTransmitted records a buffer the host itself transmitted so its echo
// is not mirrored back as peer traffic. The buffer is keyed by its inner AD
// payload, the same view Handle has after parsing the received frame.
func (m *Mirror) NoteTransmitted(raw []byte, at time.Time) {
	adv := codecs.ParseAdvertisement(raw, at)
	if len(adv.Raw) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.own[string(adv.Raw)] = at
}

// Handle is the inbound advertisement path, compatible with the transport
// Handler signature. Undecodable traffic is expected background noise and
// is dropped silently.
func (m *Mirror) Handle(raw []byte, received time.Time) {
	m.Process(raw, received)
}

// Process is Handle with the decode outcome exposed: when the buffer
// belongs to a configured identity it returns that identity and the decoded
// command, so callers can record the sighting without a second registry
// scan. Own echoes and unmatched traffic report false.
func (m *Mirror) Process(raw []byte, received time.Time) (codecs.Identity, codecs.Command, bool) {
	adv := codecs.ParseAdvertisement(raw, received)
	if len(adv.Raw) == 0 {
		return codecs.Identity{}, nil, false
	}
	key := string(adv.Raw)

	m.mu.Lock()
	if at, ok := m.own[key]; ok && received.Sub(at) < ownEchoWindow {
		m.mu.Unlock()
		return codecs.Identity{}, nil, false
	}
	ids := make([]codecs.Identity, 0, len(m.identities))
	for id := range m.identities {
		ids = append(ids, id)
	}
	m.prune(received)
	m.mu.Unlock()

	// Identity-first dispatch: one codec invocation per configured device.
	for _, id := range ids {
		cmd, s, ok := m.reg.Decode(id, adv)
		if !ok {
			continue
		}
		m.apply(id, cmd, s, key, received)
		return id, cmd, true
	}
	return codecs.Identity{}, nil, false
}

func (m *Mirror) apply(id codecs.Identity, cmd codecs.Command, s codecs.Session, key string, received time.Time) {
	codec, err := m.reg.Find(id.CodecID)
	if err != nil {
		return
	}
	window := time.Duration(codec.IgnoreDurationMS()) * time.Millisecond

	m.mu.Lock()
	if last, ok := m.recent[key]; ok && received.Sub(last) < window {
		m.recent[key] = received
		m.mu.Unlock()
		return
	}
	m.recent[key] = received

	changed := true
	if last, ok := m.lastState[id]; ok && codecs.CommandsEqual(last, cmd) {
		changed = false
	}
	if changed {
		m.lastState[id] = cmd
	}
	m.mu.Unlock()

	// The peer's counter becomes the local baseline either way; a duplicate
	// state still carries the freshest TxCount.
	m.counters.Observe(id, s, codec.CounterWrap())

	if !changed {
		return
	}
	m.logger.Debug("mirrored state change", "identity", id.String())
	m.sink.StateChanged(Event{Identity: id, Cmd: cmd, Received: received})
}

// LastState returns the last mirrored command for an identity.
func (m *Mirror) LastState(id codecs.Identity) (codecs.Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd, ok := m.lastState[id]
	return cmd, ok
}

// prune drops stale raw-buffer entries. Caller holds m.mu.
func (m *Mirror) prune(now time.Time) {
	if now.Sub(m.lastPrune) < pruneAfter {
		return
	}
	m.lastPrune = now
	for k, at := range m.recent {
		if now.Sub(at) > pruneAfter {
			delete(m.recent, k)
		}
	}
	for k, at := range m.own {
		if now.Sub(at) > ownEchoWindow {
			delete(m.own, k)
		}
	}
}
