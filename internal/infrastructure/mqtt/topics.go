package mqtt

import "fmt"

// Topic prefixes for the daemon's MQTT surface.
//
// The scheme is flat: bleadv/{category}/{device}/{entity_or_suffix}.
// Device names come from the configured device inventory; entity indexes
// address individual lights and fans behind one forced ID.
const (
	// TopicPrefix is the base for all daemon topics.
	TopicPrefix = "bleadv"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "bleadv/system"
)

// Topics provides builders for the daemon's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("kitchen-ceiling", 0)
//	// Returns: "bleadv/state/kitchen-ceiling/0"
type Topics struct{}

// EntityState returns the topic for mirrored entity state.
//
// Example: bleadv/state/kitchen-ceiling/0
func (Topics) EntityState(device string, entityIndex int) string {
	return fmt.Sprintf("%s/state/%s/%d", TopicPrefix, device, entityIndex)
}

// EntityCommand returns the topic commands for an entity arrive on.
//
// Example: bleadv/command/kitchen-ceiling/0
func (Topics) EntityCommand(device string, entityIndex int) string {
	return fmt.Sprintf("%s/command/%s/%d", TopicPrefix, device, entityIndex)
}

// DeviceCommand returns the topic for device-level commands (pair, unpair,
// timer).
//
// Example: bleadv/command/kitchen-ceiling/device
func (Topics) DeviceCommand(device string) string {
	return fmt.Sprintf("%s/command/%s/device", TopicPrefix, device)
}

// DeviceEvent returns the topic for device-level events such as observed
// pairings and decoded foreign traffic.
//
// Example: bleadv/event/kitchen-ceiling
func (Topics) DeviceEvent(device string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, device)
}

// DiscoveryCommand returns the topic discovery sessions are driven from.
//
// Example: bleadv/discovery/command
func (Topics) DiscoveryCommand() string {
	return fmt.Sprintf("%s/discovery/command", TopicPrefix)
}

// DiscoveryEvent returns the topic discovery progress is published to.
//
// Example: bleadv/discovery/event
func (Topics) DiscoveryEvent() string {
	return fmt.Sprintf("%s/discovery/event", TopicPrefix)
}

// AdapterTx returns the topic transmit requests for a radio adapter are
// published to.
//
// Example: bleadv/adapter/hci0/tx
func (Topics) AdapterTx(adapter string) string {
	return fmt.Sprintf("%s/adapter/%s/tx", TopicPrefix, adapter)
}

// AdapterRx returns the topic a radio adapter publishes received raw
// advertisements on, hex encoded.
//
// Example: bleadv/adapter/hci0/rx
func (Topics) AdapterRx(adapter string) string {
	return fmt.Sprintf("%s/adapter/%s/rx", TopicPrefix, adapter)
}

// AllAdapterRx returns a pattern matching every adapter's receive topic.
//
// Pattern: bleadv/adapter/+/rx
func (Topics) AllAdapterRx() string {
	return fmt.Sprintf("%s/adapter/+/rx", TopicPrefix)
}

// SystemStatus returns the system status topic, also used as the LWT topic.
//
// Example: bleadv/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEntityCommands returns a pattern matching all entity command topics.
//
// Pattern: bleadv/command/+/+
func (Topics) AllEntityCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllEntityStates returns a pattern matching all mirrored entity states.
//
// Pattern: bleadv/state/+/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllEvents returns a pattern matching all device events.
//
// Pattern: bleadv/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all daemon topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: bleadv/#
func (Topics) AllTopics() string {
	return "bleadv/#"
}
