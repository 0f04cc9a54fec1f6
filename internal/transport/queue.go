package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/ble-adv-core/internal/codecs"
)

// Transmitter emits one raw advertisement buffer on the radio medium. The
// implementation may be a local adapter or a remote relay; the queue makes
// no assumption beyond the error contract on ErrUnavailable.
type Transmitter interface {
	Transmit(ctx context.Context, raw []byte) error
}

// Handler receives every raw advertisement observed on the medium. Decoding
// is stateless per packet and must not block the transport.
type Handler func(raw []byte, received time.Time)

// Params is the advertising cadence for one transmission: the buffer is
// emitted Repeat times, Interval apart, bounded by Duration.
type Params struct {
	Repeat   int
	Interval time.Duration
	Duration time.Duration
}

// ParamsForCodec derives the cadence a codec declares for its protocol.
func ParamsForCodec(c *codecs.Codec) Params {
	return Params{
		Repeat:   c.Repeat(),
		Interval: time.Duration(c.IntervalMS()) * time.Millisecond,
		Duration: time.Duration(c.DurationMS()) * time.Millisecond,
	}
}

// Request is one outbound transmission.
type Request struct {
	// QueueID keys per-device supersede: a pending request with the same
	// QueueID is replaced by a newer one and completes with ErrSuperseded.
	QueueID string

	Raw    []byte
	Params Params

	// Result, when non-nil, receives the final outcome. It must be
	// buffered; the queue never blocks on delivery.
	Result chan<- error
}

// Config holds transmit queue tuning.
type Config struct {
	// QueueDepth bounds the number of pending requests.
	QueueDepth int

	// MaxRetries is how many times an ErrUnavailable transmission is
	// retried before the failure is surfaced per-command.
	MaxRetries int

	// RetryBackoff is the initial backoff between retries; it doubles per
	// attempt.
	RetryBackoff time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueDepth:   32,
		MaxRetries:   3,
		RetryBackoff: 250 * time.Millisecond,
	}
}

// Logger defines the logging interface for the queue.
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

// Queue serialises transmissions onto a single Transmitter: at most one
// in-flight transmission, FIFO order across devices, newest-wins within a
// device.
type Queue struct {
	cfg    Config
	tx     Transmitter
	logger Logger

	mu     sync.Mutex
	jobs   []Request
	closed bool

	wake   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// NewQueue creates a transmit queue over the given Transmitter.
func NewQueue(cfg Config, tx Transmitter) *Queue {
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = 32
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	return &Queue{
		cfg:    cfg,
		tx:     tx,
		logger: noopLogger{},
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// Start launches the worker. The queue stops when ctx is cancelled or Stop
// is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	go q.run(ctx)
}

// Stop cancels the worker and fails all pending requests with ErrClosed.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	if q.cancel == nil {
		return
	}
	q.cancel()
	<-q.done
}

// Enqueue adds a request. A pending request with the same QueueID is
// superseded rather than queued behind.
func (q *Queue) Enqueue(req Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	for i := range q.jobs {
		if req.QueueID != "" && q.jobs[i].QueueID == req.QueueID {
			deliver(q.jobs[i], ErrSuperseded)
			q.jobs[i] = req
			return nil
		}
	}
	if len(q.jobs) >= q.cfg.QueueDepth {
		return ErrQueueFull
	}
	q.jobs = append(q.jobs, req)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued requests.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		q.mu.Lock()
		var job Request
		have := len(q.jobs) > 0
		if have {
			job = q.jobs[0]
			q.jobs = q.jobs[1:]
		}
		q.mu.Unlock()

		if !have {
			select {
			case <-ctx.Done():
				q.drain()
				return
			case <-q.wake:
				continue
			}
		}

		err := q.transmit(ctx, job)
		if err != nil {
			q.logger.Warn("transmission failed", "queue_id", job.QueueID, "error", err)
		}
		deliver(job, err)

		if ctx.Err() != nil {
			q.drain()
			return
		}
	}
}

// transmit retries ErrUnavailable with doubling backoff; any other error is
// final.
func (q *Queue) transmit(ctx context.Context, job Request) error {
	backoff := q.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := q.emit(ctx, job)
		if err == nil || !errors.Is(err, ErrUnavailable) || attempt >= q.cfg.MaxRetries {
			return err
		}
		q.logger.Debug("transport unavailable, retrying",
			"queue_id", job.QueueID,
			"attempt", attempt+1,
			"backoff", backoff,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// emit performs the advertising cadence: Repeat emissions, Interval apart,
// bounded by Duration.
func (q *Queue) emit(ctx context.Context, job Request) error {
	repeat := job.Params.Repeat
	if repeat <= 0 {
		repeat = 1
	}
	var deadline time.Time
	if job.Params.Duration > 0 {
		deadline = time.Now().Add(job.Params.Duration)
	}

	for i := 0; i < repeat; i++ {
		if err := q.tx.Transmit(ctx, job.Raw); err != nil {
			return err
		}
		if i == repeat-1 {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(job.Params.Interval):
		}
	}
	return nil
}

func (q *Queue) drain() {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.closed = true
	q.mu.Unlock()
	for _, job := range jobs {
		deliver(job, ErrClosed)
	}
}

func deliver(job Request, err error) {
	if job.Result == nil {
		return
	}
	select {
	case job.Result <- err:
	default:
	}
}
