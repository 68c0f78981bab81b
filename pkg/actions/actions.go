package actions

import (
	"context"
	"fmt"

	"github.com/drivemail/drivemail/pkg/mail"
)

// Status classifies a dispatch outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request carries a completed intent to its handler.
type Request struct {
	Intent         string
	Slots          map[string]string
	ConversationID string
	UserID         string
	// ArtifactID references a previously produced artifact (a draft id for
	// confirm_send). Resolved by the dialogue manager, never by handlers.
	ArtifactID string
}

// Outcome is the uniform result shape all handlers produce.
type Outcome struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Errorf builds an error outcome with a formatted message.
func Errorf(format string, args ...any) Outcome {
	return Outcome{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Handler executes one intent against the user's mailbox.
type Handler interface {
	Execute(ctx context.Context, transport mail.Transport, req Request) Outcome
}
