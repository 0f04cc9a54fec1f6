package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// blinkRecorder captures the identity behind every blink transmission and
// confirms the ones listed in confirmOn.
type blinkRecorder struct {
	mu        sync.Mutex
	blinked   []codecs.Identity
	confirmOn map[codecs.Identity]bool
	validator *Validator
}

func (r *blinkRecorder) blink(_ context.Context, codec *codecs.Codec, adv codecs.Advertisement) error {
	_, s, ok := codec.Decode(adv)
	if !ok {
		return errors.New("blink advertisement does not decode under its own codec")
	}
	id := codec.Identity(s)

	r.mu.Lock()
	r.blinked = append(r.blinked, id)
	confirm := r.confirmOn[id]
	r.mu.Unlock()

	if confirm {
		r.validator.Confirm()
	}
	return nil
}

func (r *blinkRecorder) ids() []codecs.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]codecs.Identity(nil), r.blinked...)
}

func candidateList(ids ...codecs.Identity) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{Identity: id, Confidence: len(ids) - i}
	}
	return out
}

func TestValidator_ConfirmsSecondCandidateWithoutTryingThird(t *testing.T) {
	reg := codecs.DefaultRegistry()
	a := codecs.Identity{CodecID: "zhijia_v1", ID: 0x111111, Index: 1}
	b := codecs.Identity{CodecID: "zhijia_v1", ID: 0x222222, Index: 1}
	c := codecs.Identity{CodecID: "zhijia_v1", ID: 0x333333, Index: 1}

	rec := &blinkRecorder{confirmOn: map[codecs.Identity]bool{b: true}}
	v := NewValidator(reg, codecs.NewCounterStore(), rec.blink, 20*time.Millisecond)
	rec.validator = v

	got, err := v.Validate(context.Background(), candidateList(a, b, c), 0)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != b {
		t.Errorf("Validate() = %v, want %v", got, b)
	}

	blinked := rec.ids()
	if len(blinked) != 2 || blinked[0] != a || blinked[1] != b {
		t.Errorf("blinked = %v, want [A, B] with C never attempted", blinked)
	}
}

func TestValidator_ExhaustionIsValidationFailed(t *testing.T) {
	reg := codecs.DefaultRegistry()
	a := codecs.Identity{CodecID: "zhijia_v1", ID: 0x111111, Index: 1}
	b := codecs.Identity{CodecID: "agarce_v3", ID: 0x90ABCDEF, Index: 2}

	rec := &blinkRecorder{confirmOn: map[codecs.Identity]bool{}}
	v := NewValidator(reg, codecs.NewCounterStore(), rec.blink, 5*time.Millisecond)
	rec.validator = v

	_, err := v.Validate(context.Background(), candidateList(a, b), 0)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Validate() error = %v, want ErrValidationFailed", err)
	}

	// Exactly one blink per candidate, never a retry.
	blinked := rec.ids()
	if len(blinked) != 2 || blinked[0] != a || blinked[1] != b {
		t.Errorf("blinked = %v, want one attempt each for [A, B]", blinked)
	}
}

func TestValidator_ManualBypass(t *testing.T) {
	reg := codecs.DefaultRegistry()
	id := codecs.Identity{CodecID: "fanlamp_pro_v2", ID: 0x90ABCDEF, Index: 2}

	rec := &blinkRecorder{confirmOn: map[codecs.Identity]bool{id: true}}
	v := NewValidator(reg, codecs.NewCounterStore(), rec.blink, 20*time.Millisecond)
	rec.validator = v

	if err := v.ValidateManual(context.Background(), id, 0); err != nil {
		t.Errorf("ValidateManual() error = %v", err)
	}
}

func TestValidator_SkipsUnknownCodec(t *testing.T) {
	reg := codecs.DefaultRegistry()
	bogus := codecs.Identity{CodecID: "no_such_codec", ID: 1, Index: 0}

	rec := &blinkRecorder{confirmOn: map[codecs.Identity]bool{}}
	v := NewValidator(reg, codecs.NewCounterStore(), rec.blink, 5*time.Millisecond)
	rec.validator = v

	_, err := v.Validate(context.Background(), candidateList(bogus), 0)
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("Validate() error = %v, want ErrValidationFailed", err)
	}
	if blinked := rec.ids(); len(blinked) != 0 {
		t.Errorf("blinked = %v, want no transmissions for an unknown codec", blinked)
	}
}

func TestValidator_CancellationUnblocks(t *testing.T) {
	reg := codecs.DefaultRegistry()
	id := codecs.Identity{CodecID: "zhijia_v1", ID: 0x111111, Index: 1}

	rec := &blinkRecorder{confirmOn: map[codecs.Identity]bool{}}
	v := NewValidator(reg, codecs.NewCounterStore(), rec.blink, time.Hour)
	rec.validator = v

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := v.Validate(ctx, candidateList(id), 0)
		done <- err
	}()

	// Let the blink go out, then cancel the confirmation wait.
	deadline := time.Now().Add(5 * time.Second)
	for len(rec.ids()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("blink never transmitted")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Validate() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Validate() did not unblock on cancellation")
	}
}
