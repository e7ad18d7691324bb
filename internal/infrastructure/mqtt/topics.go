package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the engine uses.
//
//	grayrules/fact/{state}            producer → engine, one fact
//	grayrules/facts                   producer → engine, batch of facts
//	grayrules/command/{op}            engine → actuator, one atomic operation
//	grayrules/chain/{scene}/{event}   engine → observers, dispatched/completed
//	grayrules/notify                  engine → notifier, matched notify rules
//	grayrules/system/status           retained online/offline (LWT)
const TopicPrefix = "grayrules"

const factPrefix = TopicPrefix + "/fact/"

// Topics provides builders for engine MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Fact("door_open") // "grayrules/fact/door_open"
type Topics struct{}

// Fact returns the topic a producer publishes a single state fact on.
// State names may contain '/'; they become extra topic levels.
func (Topics) Fact(state string) string {
	return factPrefix + state
}

// AllFacts returns the wildcard matching every Fact topic.
func (Topics) AllFacts() string {
	return factPrefix + "#"
}

// FactBatch returns the topic carrying an array of facts applied atomically.
func (Topics) FactBatch() string {
	return TopicPrefix + "/facts"
}

// Command returns the topic an operation is published on.
//
// Example: grayrules/command/press
func (Topics) Command(op string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, segment(op))
}

// AllCommands returns the wildcard matching every Command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// ChainEvent returns the topic for a chain lifecycle event.
//
// Example: grayrules/chain/fight/completed
func (Topics) ChainEvent(scene, event string) string {
	return fmt.Sprintf("%s/chain/%s/%s", TopicPrefix, segment(scene), segment(event))
}

// Notification returns the topic notify-rule messages are published on.
func (Topics) Notification() string {
	return TopicPrefix + "/notify"
}

// SystemStatus returns the retained status topic also used for the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// FactName extracts the state name from a Fact topic.
// It returns false for any other topic.
func FactName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, factPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// segment makes s usable as a single publish topic level. Wildcards and
// level separators become '_'; an empty value becomes "_".
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
