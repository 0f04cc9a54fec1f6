// Package mqtt wraps the paho client with the connection handling the
// daemon needs: auto-reconnect with subscription restore, a retained
// status announcement plus LWT on bleadv/system/status, and panic
// recovery around message handlers.
//
// MQTT is the host boundary. Mirrored entity state goes out retained on
// state topics so a restarting consumer (or the daemon itself, via
// refresh-on-start) picks up where things left off; commands and events
// are never retained. Radio adapters hang off the same broker on their
// own tx/rx topics, so the daemon needs no local Bluetooth hardware.
//
//	automation platform ↔ broker ↔ bleadvd ↔ broker ↔ radio adapters
//
// Topic construction lives in Topics so the scheme has exactly one
// definition; see topics.go.
//
// Typical use:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntityCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch(topic, payload)
//	    })
//
//	client.Publish(mqtt.Topics{}.EntityState("kitchen-ceiling", 0),
//	    []byte(`{"on":true,"brightness":80}`), 1, true)
//
// TLS (cfg.Broker.TLS) should be on for anything beyond a LAN broker;
// payloads themselves are plain JSON.
package mqtt
