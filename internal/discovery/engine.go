package discovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// State is the discovery engine's lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateCollecting State = "collecting"
	StateRanked     State = "ranked"
	StateDone       State = "done"
	StateTimedOut   State = "timed_out"
)

// Candidate is one identity proposed by passive listening. Confidence
// counts re-sightings inside the observation window.
type Candidate struct {
	Identity   codecs.Identity
	Confidence int
	LastSeen   time.Time

	// PairSeen marks identities observed through a pair request, typically
	// a phone app caught mid-pairing. These are the strongest candidates.
	PairSeen bool
}

// Logger defines the logging interface for the discovery engines.
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

// Engine proposes candidate identities by passively decoding advertisement
// traffic against every registered codec for a bounded window.
type Engine struct {
	reg    *codecs.Registry
	order  map[string]int
	logger Logger

	mu         sync.Mutex
	state      State
	candidates map[codecs.Identity]*Candidate
}

// NewEngine creates a discovery engine over the given registry.
func NewEngine(reg *codecs.Registry) *Engine {
	order := make(map[string]int)
	for i, c := range reg.Codecs() {
		order[c.ID()] = i
	}
	return &Engine{
		reg:    reg,
		order:  order,
		logger: noopLogger{},
		state:  StateIdle,
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Observe feeds one raw advertisement into the observation window. Outside
// a running window it is a no-op; decoding is stateless and never blocks.
func (e *Engine) Observe(adv codecs.Advertisement) {
	matches := e.reg.DecodeAll(adv)
	if len(matches) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateListening && e.state != StateCollecting {
		return
	}
	e.state = StateCollecting

	for _, m := range matches {
		id := m.Identity()
		_, isPair := m.Cmd.(codecs.PairRequest)
		if c, ok := e.candidates[id]; ok {
			c.Confidence++
			c.PairSeen = c.PairSeen || isPair
			if adv.Received.After(c.LastSeen) {
				c.LastSeen = adv.Received
			}
			continue
		}
		e.candidates[id] = &Candidate{
			Identity:   id,
			Confidence: 1,
			LastSeen:   adv.Received,
			PairSeen:   isPair,
		}
		e.logger.Debug("discovery candidate", "identity", id.String())
	}
}

// Run opens an observation window for the given time budget and returns the
// ranked candidate list. With zero candidates the window reports
// ErrNoCandidates and the engine lands in StateTimedOut; cancellation via
// ctx unblocks immediately and returns the engine to StateIdle.
func (e *Engine) Run(ctx context.Context, budget time.Duration) ([]Candidate, error) {
	e.mu.Lock()
	if e.state != StateIdle && e.state != StateDone && e.state != StateTimedOut {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.state = StateListening
	e.candidates = make(map[codecs.Identity]*Candidate)
	e.mu.Unlock()

	e.logger.Info("discovery window opened", "budget", budget)

	select {
	case <-ctx.Done():
		e.mu.Lock()
		e.state = StateIdle
		e.candidates = nil
		e.mu.Unlock()
		return nil, ctx.Err()
	case <-time.After(budget):
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.candidates) == 0 {
		e.state = StateTimedOut
		e.logger.Info("discovery window expired with no candidates")
		return nil, ErrNoCandidates
	}

	ranked := make([]Candidate, 0, len(e.candidates))
	for _, c := range e.candidates {
		ranked = append(ranked, *c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		if !ranked[i].LastSeen.Equal(ranked[j].LastSeen) {
			return ranked[i].LastSeen.After(ranked[j].LastSeen)
		}
		return e.order[ranked[i].Identity.CodecID] < e.order[ranked[j].Identity.CodecID]
	})

	e.state = StateRanked
	e.logger.Info("discovery ranked", "candidates", len(ranked))
	return ranked, nil
}

// Accept marks the ranked list as handed over to validation.
func (e *Engine) Accept() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRanked {
		e.state = StateDone
	}
}

// Reset returns the engine to idle, discarding any collected candidates.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	e.candidates = nil
}
