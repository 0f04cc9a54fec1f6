package transport

import "errors"

var (
	// ErrUnavailable is returned by a Transmitter when transmission cannot
	// be attempted. The queue retries with bounded backoff before surfacing
	// it as a per-command failure; other devices on the same transport may
	// still be reachable, so it is never process-fatal.
	ErrUnavailable = errors.New("transport: unavailable")

	// ErrQueueFull is returned when the transmit queue is at capacity.
	ErrQueueFull = errors.New("transport: queue full")

	// ErrClosed is returned when enqueueing after the queue has stopped.
	ErrClosed = errors.New("transport: queue closed")

	// ErrSuperseded reports that a queued request was replaced by a newer
	// one for the same device before it could be transmitted.
	ErrSuperseded = errors.New("transport: request superseded")
)
