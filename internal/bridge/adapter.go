package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/ble-adv-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ble-adv-core/internal/transport"
)

// AdapterTransmitter sends raw advertisements to a remote radio adapter via
// MQTT. The adapter (an ESP proxy or an HCI shim on another host) subscribes
// to its tx topic and emits each buffer once; repetition cadence stays with
// the transmit queue.
type AdapterTransmitter struct {
	mqtt   MQTTClient
	name   string
	qos    byte
	topics mqtt.Topics
}

// NewAdapterTransmitter creates a transmitter bound to one adapter name.
func NewAdapterTransmitter(client MQTTClient, name string, qos byte) *AdapterTransmitter {
	return &AdapterTransmitter{mqtt: client, name: name, qos: qos}
}

// Transmit implements transport.Transmitter. A disconnected broker is
// reported as transport.ErrUnavailable so the queue retries with backoff.
func (t *AdapterTransmitter) Transmit(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.mqtt.IsConnected() {
		return transport.ErrUnavailable
	}

	payload, err := json.Marshal(TransmitMessage{Raw: hex.EncodeToString(raw)})
	if err != nil {
		return fmt.Errorf("marshal transmit message: %w", err)
	}

	if err := t.mqtt.Publish(t.topics.AdapterTx(t.name), payload, t.qos, false); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnavailable, err)
	}
	return nil
}
