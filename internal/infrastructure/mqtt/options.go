package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ble-adv-core/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial broker dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds waiting for a publish acknowledgement.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce (milliseconds) lets in-flight operations
	// drain before the socket closes.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the PINGREQ interval for dead-link detection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the highest MQTT QoS level.
	maxQoS = 2
)

// buildClientOptions translates the config.yaml mqtt section into paho
// options: broker URL (tcp or ssl), client ID, optional credentials,
// clean session, and auto-reconnect with backoff between the configured
// initial and maximum delays.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent broker session: retained state topics carry everything
	// the daemon needs across restarts.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// statusMessage is the payload on bleadv/system/status.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload renders one status message. reason is empty for "online".
func statusPayload(status, clientID, reason string) []byte {
	payload, _ := json.Marshal(statusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return payload
}

// configureLWT registers the broker-side will: if the daemon dies without
// a clean disconnect, the broker publishes an offline status on its
// behalf, retained at QoS 1.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload := statusPayload("offline", clientID, "unexpected_disconnect")
	opts.SetWill(Topics{}.SystemStatus(), string(payload), 1, true)
}
