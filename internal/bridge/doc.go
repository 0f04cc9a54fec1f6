// Package bridge orchestrates the daemon's runtime: it joins the codec
// core, the synchronization mirror, the discovery engines and the transmit
// queue to the MQTT surface.
//
// # Responsibilities
//
//   - Entity commands (bleadv/command/{device}/{entity}) are translated to
//     vendor advertisements and queued for transmission; successful commands
//     publish the implied state retained on bleadv/state/{device}/{entity}.
//   - Device commands (bleadv/command/{device}/device) drive pairing,
//     unpairing, blink tests and the vendor off-timer.
//   - Raw traffic from radio adapters (bleadv/adapter/{name}/rx, hex) is fed
//     through the mirror, the discovery engine and the traffic recorder.
//   - State changes made by peer remotes surface through the mirror sink and
//     are published exactly like commanded state.
//   - Discovery sessions are driven from bleadv/discovery/command and report
//     on bleadv/discovery/event.
//
// # Radio adapters
//
// Physical radios live behind MQTT adapter topics: the daemon publishes
// transmit requests to bleadv/adapter/{name}/tx and consumes received
// advertisements from bleadv/adapter/{name}/rx. Any process that can drive
// a BLE radio and speak MQTT can serve as an adapter.
//
// # Refresh on start
//
// Entities configured with refresh_on_start replay their retained state
// topic once at startup, re-synchronising the device's rolling counter
// after a daemon restart.
package bridge
