package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the event payload shape.
type EventType string

const (
	GenerationCompleted EventType = "generation.completed"
	GenerationFailed    EventType = "generation.failed"
)

// BaseEvent carries the metadata shared by every event.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// GenerationCompletedEvent is published after a generation request reached a
// successful terminal state. The media payload itself stays out of the
// event; consumers fetch it from the archive if they need it.
type GenerationCompletedEvent struct {
	BaseEvent
	RequestID      string `json:"request_id"`
	PredictionID   string `json:"prediction_id,omitempty"`
	Prompt         string `json:"prompt"`
	MediaType      string `json:"media_type"`
	ContentType    string `json:"content_type"`
	MediaSizeBytes int64  `json:"media_size_bytes"`
	DurationMs     int64  `json:"duration_ms"`
}

// GenerationFailedEvent is published after a generation request reached a
// failed terminal state.
type GenerationFailedEvent struct {
	BaseEvent
	RequestID    string `json:"request_id"`
	Prompt       string `json:"prompt"`
	MediaType    string `json:"media_type"`
	ErrorKind    string `json:"error_kind"`
	ErrorMessage string `json:"error_message"`
	DurationMs   int64  `json:"duration_ms"`
}

// SerializeEvent marshals an event and returns its type tag.
func SerializeEvent(event any) ([]byte, EventType, error) {
	var eventType EventType

	switch e := event.(type) {
	case GenerationCompletedEvent:
		eventType = e.Type
	case GenerationFailedEvent:
		eventType = e.Type
	default:
		return nil, "", fmt.Errorf("unknown event type: %T", event)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal event: %w", err)
	}

	return data, eventType, nil
}

// DeserializeEvent unmarshals raw data into the struct matching the type tag.
func DeserializeEvent(eventType EventType, data []byte) (any, error) {
	var event any

	switch eventType {
	case GenerationCompleted:
		event = &GenerationCompletedEvent{}
	case GenerationFailed:
		event = &GenerationFailedEvent{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return event, nil
}
