package mqtt

import "errors"

// Sentinel errors for the MQTT client; match with errors.Is.
var (
	// ErrNotConnected: an operation needed a live broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed: the initial dial timed out or was refused.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed / ErrSubscribeFailed / ErrUnsubscribeFailed wrap
	// the per-operation failures with their causes.
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS: QoS must be 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic: empty topic string.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout: a broker acknowledgement did not arrive in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
