package mqtt

import "fmt"

// TopicPrefix is the root of all panel topics.
const TopicPrefix = "dzpanel"

// Topics provides builders for the panel's MQTT topics. Using these helpers
// keeps topic naming consistent between publisher and subscribers.
type Topics struct{}

// PanelStatus is the panel's own online/offline topic. Retained, and also
// used as the Last Will topic.
//
// Example: dzpanel/status
func (Topics) PanelStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// ServerStatus carries retained JSON snapshots of the game server state.
//
// Example: dzpanel/server/status
func (Topics) ServerStatus() string {
	return fmt.Sprintf("%s/server/status", TopicPrefix)
}

// ServerEvents carries lifecycle events (started, stopped, crashed, restart).
//
// Example: dzpanel/server/events
func (Topics) ServerEvents() string {
	return fmt.Sprintf("%s/server/events", TopicPrefix)
}

// ServerCommand is the inbound topic for remote commands. Payload is one of
// "start", "stop", or "restart".
//
// Example: dzpanel/server/command
func (Topics) ServerCommand() string {
	return fmt.Sprintf("%s/server/command", TopicPrefix)
}
