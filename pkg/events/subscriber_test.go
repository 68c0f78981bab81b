package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestAuditSubscriberHandle(t *testing.T) {
	sub := &AuditSubscriber{}

	env := Envelope{
		ID:             "evt-1",
		Type:           TurnCompleted,
		Source:         "assistant",
		ConversationID: "conv-1",
		Timestamp:      time.Now().UTC(),
		Data:           json.RawMessage(`{"completed":true}`),
	}
	raw, _ := json.Marshal(env)

	if err := sub.Handle(context.Background(), nil, raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestAuditSubscriberRejectsGarbage(t *testing.T) {
	sub := &AuditSubscriber{}
	if err := sub.Handle(context.Background(), nil, []byte("not json")); err == nil {
		t.Fatal("expected error for malformed message")
	}
}
