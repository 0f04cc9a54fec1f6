package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTransmitter struct {
	mu    sync.Mutex
	calls [][]byte
	errs  []error
}

func (f *fakeTransmitter) Transmit(_ context.Context, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]byte(nil), raw...))
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakeTransmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransmitter) call(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func waitResult(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for transmission result")
		return nil
	}
}

func fastConfig() Config {
	return Config{QueueDepth: 8, MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestQueue_SerialFIFO(t *testing.T) {
	tx := &fakeTransmitter{}
	q := NewQueue(fastConfig(), tx)
	q.Start(context.Background())
	defer q.Stop()

	bufs := [][]byte{{0x01}, {0x02}, {0x03}}
	results := make([]chan error, len(bufs))
	for i, b := range bufs {
		results[i] = make(chan error, 1)
		req := Request{QueueID: string(rune('a' + i)), Raw: b, Result: results[i]}
		if err := q.Enqueue(req); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	for i := range results {
		if err := waitResult(t, results[i]); err != nil {
			t.Errorf("result[%d] = %v, want nil", i, err)
		}
	}

	if got := tx.callCount(); got != len(bufs) {
		t.Fatalf("transmissions = %d, want %d", got, len(bufs))
	}
	for i, b := range bufs {
		if got := tx.call(i); got[0] != b[0] {
			t.Errorf("transmission %d = %#x, want %#x", i, got, b)
		}
	}
}

func TestQueue_RepeatCadence(t *testing.T) {
	tx := &fakeTransmitter{}
	q := NewQueue(fastConfig(), tx)
	q.Start(context.Background())
	defer q.Stop()

	res := make(chan error, 1)
	req := Request{
		QueueID: "dev",
		Raw:     []byte{0xAB},
		Params:  Params{Repeat: 3, Interval: time.Millisecond},
		Result:  res,
	}
	if err := q.Enqueue(req); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := waitResult(t, res); err != nil {
		t.Fatalf("result = %v, want nil", err)
	}
	if got := tx.callCount(); got != 3 {
		t.Errorf("transmissions = %d, want 3", got)
	}
}

func TestQueue_RetriesUnavailable(t *testing.T) {
	tx := &fakeTransmitter{errs: []error{ErrUnavailable, ErrUnavailable}}
	q := NewQueue(fastConfig(), tx)
	q.Start(context.Background())
	defer q.Stop()

	res := make(chan error, 1)
	if err := q.Enqueue(Request{QueueID: "dev", Raw: []byte{0x01}, Result: res}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := waitResult(t, res); err != nil {
		t.Errorf("result = %v, want nil after retries", err)
	}
	if got := tx.callCount(); got != 3 {
		t.Errorf("transmissions = %d, want 3 (two failures, one success)", got)
	}
}

func TestQueue_RetriesExhausted(t *testing.T) {
	tx := &fakeTransmitter{errs: []error{ErrUnavailable, ErrUnavailable, ErrUnavailable}}
	q := NewQueue(fastConfig(), tx)
	q.Start(context.Background())
	defer q.Stop()

	res := make(chan error, 1)
	if err := q.Enqueue(Request{QueueID: "dev", Raw: []byte{0x01}, Result: res}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := waitResult(t, res); !errors.Is(err, ErrUnavailable) {
		t.Errorf("result = %v, want ErrUnavailable", err)
	}
	// MaxRetries=2 means one initial attempt plus two retries.
	if got := tx.callCount(); got != 3 {
		t.Errorf("transmissions = %d, want 3", got)
	}
}

func TestQueue_SupersedesSameDevice(t *testing.T) {
	tx := &fakeTransmitter{}
	q := NewQueue(fastConfig(), tx)

	// Enqueue before Start so both requests are pending together.
	old := make(chan error, 1)
	if err := q.Enqueue(Request{QueueID: "dev", Raw: []byte{0x01}, Result: old}); err != nil {
		t.Fatalf("Enqueue(old) error = %v", err)
	}
	fresh := make(chan error, 1)
	if err := q.Enqueue(Request{QueueID: "dev", Raw: []byte{0x02}, Result: fresh}); err != nil {
		t.Fatalf("Enqueue(new) error = %v", err)
	}

	if err := waitResult(t, old); !errors.Is(err, ErrSuperseded) {
		t.Errorf("old result = %v, want ErrSuperseded", err)
	}
	if got := q.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	q.Start(context.Background())
	defer q.Stop()

	if err := waitResult(t, fresh); err != nil {
		t.Errorf("new result = %v, want nil", err)
	}
	if got := tx.callCount(); got != 1 {
		t.Fatalf("transmissions = %d, want 1", got)
	}
	if got := tx.call(0); got[0] != 0x02 {
		t.Errorf("transmitted %#x, want the superseding buffer 0x02", got)
	}
}

func TestQueue_DepthLimit(t *testing.T) {
	tx := &fakeTransmitter{}
	q := NewQueue(Config{QueueDepth: 1, RetryBackoff: time.Millisecond}, tx)

	if err := q.Enqueue(Request{QueueID: "a", Raw: []byte{0x01}}); err != nil {
		t.Fatalf("Enqueue(a) error = %v", err)
	}
	if err := q.Enqueue(Request{QueueID: "b", Raw: []byte{0x02}}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue(b) error = %v, want ErrQueueFull", err)
	}
}

func TestQueue_StopFailsPending(t *testing.T) {
	tx := &fakeTransmitter{}
	q := NewQueue(fastConfig(), tx)
	q.Start(context.Background())
	q.Stop()

	if err := q.Enqueue(Request{QueueID: "dev", Raw: []byte{0x01}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after Stop error = %v, want ErrClosed", err)
	}
}

func TestQueue_ContextCancellation(t *testing.T) {
	tx := &fakeTransmitter{}
	q := NewQueue(fastConfig(), tx)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()
	// Stop returns once the worker has observed the cancellation.
	q.Stop()

	if err := q.Enqueue(Request{QueueID: "dev", Raw: []byte{0x01}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue after cancel error = %v, want ErrClosed", err)
	}
}
