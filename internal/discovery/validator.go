package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// Blink transmits an encoded blink advertisement using the cadence the
// codec declares. Implemented by the transmit queue in the daemon wiring.
type Blink func(ctx context.Context, codec *codecs.Codec, adv codecs.Advertisement) error

// Validator walks a ranked candidate list, blinking each identity exactly
// once and waiting for operator confirmation.
type Validator struct {
	reg      *codecs.Registry
	counters *codecs.CounterStore
	blink    Blink
	timeout  time.Duration
	logger   Logger

	mu      sync.Mutex
	running bool
	confirm chan struct{}
}

// NewValidator creates a blink validator. timeout is how long each candidate
// waits for confirmation before the next candidate is tried.
func NewValidator(reg *codecs.Registry, counters *codecs.CounterStore, blink Blink, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Validator{
		reg:      reg,
		counters: counters,
		blink:    blink,
		timeout:  timeout,
		logger:   noopLogger{},
		confirm:  make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the validator.
func (v *Validator) SetLogger(logger Logger) {
	v.logger = logger
}

// Confirm reports that the operator saw the device react to the current
// blink. Safe to call at any time; confirmations arriving outside a wait
// are dropped when the next candidate starts.
func (v *Validator) Confirm() {
	select {
	case v.confirm <- struct{}{}:
	default:
	}
}

// Validate blinks each candidate in order and returns the first confirmed
// identity. Each candidate gets exactly one blink attempt per pass; a
// candidate whose codec cannot express a blink, or whose transmission
// fails, is skipped rather than retried. Exhausting the list returns
// ErrValidationFailed.
func (v *Validator) Validate(ctx context.Context, candidates []Candidate, entityIndex int) (codecs.Identity, error) {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		return codecs.Identity{}, ErrBusy
	}
	v.running = true
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		v.running = false
		v.mu.Unlock()
	}()

	for _, cand := range candidates {
		confirmed, err := v.attempt(ctx, cand.Identity, entityIndex)
		if err != nil {
			return codecs.Identity{}, err
		}
		if confirmed {
			v.logger.Info("candidate confirmed", "identity", cand.Identity.String())
			return cand.Identity, nil
		}
	}
	return codecs.Identity{}, ErrValidationFailed
}

// ValidateManual blinks one operator-supplied identity, bypassing discovery.
func (v *Validator) ValidateManual(ctx context.Context, id codecs.Identity, entityIndex int) error {
	_, err := v.Validate(ctx, []Candidate{{Identity: id, Confidence: 1}}, entityIndex)
	return err
}

// attempt sends one blink and waits for confirmation or timeout. Returns an
// error only on cancellation; encode and transmit failures skip the
// candidate.
func (v *Validator) attempt(ctx context.Context, id codecs.Identity, entityIndex int) (bool, error) {
	codec, err := v.reg.Find(id.CodecID)
	if err != nil {
		v.logger.Warn("candidate names unknown codec", "identity", id.String())
		return false, nil
	}

	var adv codecs.Advertisement
	encErr := error(nil)
	v.counters.WithSession(id, func(s *codecs.Session) {
		adv, encErr = codec.EncodeCommand(codecs.BlinkRequest{EntityIndex: entityIndex}, s)
	})
	if encErr != nil {
		v.logger.Warn("codec cannot express blink", "identity", id.String(), "error", encErr)
		return false, nil
	}

	// Drop confirmations left over from a previous candidate.
	select {
	case <-v.confirm:
	default:
	}

	v.logger.Info("blinking candidate", "identity", id.String())
	if err := v.blink(ctx, codec, adv); err != nil {
		v.logger.Warn("blink transmission failed", "identity", id.String(), "error", err)
		return false, nil
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-v.confirm:
		return true, nil
	case <-time.After(v.timeout):
		return false, nil
	}
}
