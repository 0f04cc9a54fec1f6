package influxdb

import "errors"

// Sentinel errors, matched with errors.Is. Async write failures are not
// returned at all; they arrive through the OnError callback.
var (
	// ErrDisabled means history is switched off in config. The daemon
	// treats this as "run without InfluxDB", not as a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps failures during Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close or before
	// a successful Connect.
	ErrNotConnected = errors.New("influxdb: not connected")
)
