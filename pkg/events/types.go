package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	TurnStarted      EventType = "turn.started"
	TurnCompleted    EventType = "turn.completed"
	IntentClassified EventType = "intent.classified"
	SlotVerified     EventType = "slot.verified"
	TaskDispatched   EventType = "task.dispatched"
	StateReset       EventType = "state.reset"
	SystemError      EventType = "error"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID             string            `json:"id"`
	Type           EventType         `json:"type"`
	Source         string            `json:"source"`
	ConversationID string            `json:"conversation_id"`
	Timestamp      time.Time         `json:"timestamp"`
	Data           json.RawMessage   `json:"data"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// TurnStartedData is the payload for turn.started events.
type TurnStartedData struct {
	UserID    string `json:"user_id"`
	Utterance string `json:"utterance"`
}

// TurnCompletedData is the payload for turn.completed events.
type TurnCompletedData struct {
	Intent     string `json:"intent,omitempty"`
	Completed  bool   `json:"completed"`
	Dispatched bool   `json:"dispatched"`
	DurationMs int64  `json:"duration_ms"`
}

// IntentClassifiedData is the payload for intent.classified events.
type IntentClassifiedData struct {
	Intent       string   `json:"intent,omitempty"`
	MissingSlots []string `json:"missing_slots,omitempty"`
	Completed    bool     `json:"completed"`
}

// SlotVerifiedData is the payload for slot.verified events.
type SlotVerifiedData struct {
	Slot  string `json:"slot"`
	Value string `json:"value"`
}

// TaskDispatchedData is the payload for task.dispatched events.
type TaskDispatchedData struct {
	Intent string `json:"intent"`
	Status string `json:"status"`
}

// ErrorData is the payload for error events.
type ErrorData struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}
