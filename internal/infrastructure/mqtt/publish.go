package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB, within common broker
// limits. Entity state and event payloads are a few hundred bytes.
const maxPayloadSize = 1 << 20

// Publish sends one message, waiting for the broker acknowledgement.
//
// Retained publishes are for state topics only: the broker replays the
// last retained message to new subscribers, which is how refresh-on-start
// recovers entity state across daemon restarts. Commands and events must
// not be retained or they replay as ghosts.
//
// Parameters:
//   - topic: Destination topic (see the Topics builders)
//   - payload: Message body, typically JSON, at most 1MB
//   - qos: 0 at-most-once, 1 at-least-once, 2 exactly-once
//   - retained: Store as the topic's retained message
//
// Returns:
//   - error: Validation, connection, or acknowledgement failure
//
// Example:
//
//	err := client.Publish(mqtt.Topics{}.EntityState("kitchen", 0),
//	    payload, 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString publishes a string payload; shorthand for Publish with a
// []byte conversion.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes retained at the configured default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
