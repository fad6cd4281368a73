package playback

import (
	"fmt"

	"github.com/desertthunder/doowops/internal/shared"
)

// EventType names the events a playback device emits.
type EventType string

const (
	EventReady        EventType = "ready"
	EventNotReady     EventType = "not_ready"
	EventStateChanged EventType = "state_changed"
)

// Event is one inbound message from the playback device.
type Event struct {
	Type       EventType `json:"type"`
	DeviceID   string    `json:"device_id,omitempty"`
	Paused     bool      `json:"paused,omitempty"`
	PositionMS int       `json:"position_ms,omitempty"`
	DurationMS int       `json:"duration_ms,omitempty"`
}

// Validate rejects unknown types and ready events without a device id.
func (e Event) Validate() error {
	switch e.Type {
	case EventReady, EventNotReady:
		if e.DeviceID == "" {
			return fmt.Errorf("%w: %s event without device_id", shared.ErrInvalidArgument, e.Type)
		}
	case EventStateChanged:
	default:
		return fmt.Errorf("%w: unknown event type %q", shared.ErrInvalidArgument, e.Type)
	}
	return nil
}

// Status is the controller's view of device readiness.
type Status int

const (
	Disconnected Status = iota
	Activating
	Ready
	NotReady
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Activating:
		return "activating"
	case Ready:
		return "ready"
	case NotReady:
		return "not_ready"
	default:
		return ""
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{Disconnected, Activating, Ready, NotReady} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("%w: unknown device status %q", shared.ErrInvalidInput, text)
}
