package mqtt

import (
	"fmt"
	"strings"
)

// Command names accepted under the set topic.
const (
	CommandPower     = "power"
	CommandGrillTemp = "grill_temp"
	CommandFoodTemp  = "food_temp"
)

// Topics builds the topic tree for one grill: {prefix}/{device_id}/...
type Topics struct {
	Prefix   string
	DeviceID string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.Prefix, t.DeviceID)
}

// State is where the retained JSON status is published.
//
// Example: gmg/GMG1234/state
func (t Topics) State() string {
	return t.base() + "/state"
}

// Availability carries "online", or "offline" from the last will.
func (t Topics) Availability() string {
	return t.base() + "/availability"
}

// Set returns the topic for a single command.
//
// Example: gmg/GMG1234/set/grill_temp
func (t Topics) Set(command string) string {
	return t.base() + "/set/" + command
}

// AllSet is the subscription pattern matching every command topic.
func (t Topics) AllSet() string {
	return t.Set("+")
}

// CommandFromTopic extracts the command name from a set topic.
func (t Topics) CommandFromTopic(topic string) (string, bool) {
	prefix := t.base() + "/set/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	command := strings.TrimPrefix(topic, prefix)
	if command == "" || strings.Contains(command, "/") {
		return "", false
	}
	return command, true
}
