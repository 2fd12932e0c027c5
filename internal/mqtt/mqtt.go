// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for lamp switch events.
const Topic = "home/lamp/timer/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/lamp/timer/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a lamp switch event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event represents one lamp switch transition.
type Event struct {
	Timestamp  time.Time
	Type       string // "ON" or "OFF"
	Manual     bool   // transition caused by a manual override
	NextSwitch string // "HH:MM" of the next scheduled transition
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Lamp LampPayload `json:"lamp"`
}

// LampPayload contains the switch event details.
type LampPayload struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Manual     bool   `json:"manual"`
	NextSwitch string `json:"next_switch"`
}

// FormatPayload creates the JSON payload for a lamp switch event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Lamp: LampPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      event.Type,
			Manual:     event.Manual,
			NextSwitch: event.NextSwitch,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
