package handler

import "github.com/drivemail/drivemail/pkg/assistant"

// TurnRequest is the payload for POST /api/v1/turns. ConversationID is
// optional; when absent the user's latest conversation is continued (or a
// new one created).
type TurnRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Utterance      string `json:"utterance"`
}

// TurnResult wraps the manager's result for the wire.
type TurnResult struct {
	assistant.Result
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationResponse is the wire form of a conversation record.
type ConversationResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	State      string `json:"state"`
	CreatedAt  string `json:"created_at"`
	ModifiedAt string `json:"modified_at"`
}

// TranscriptTurn is the wire form of one transcript entry.
type TranscriptTurn struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// TaskResponse is the wire form of one recorded dispatch attempt.
type TaskResponse struct {
	ID          string `json:"id"`
	Intent      string `json:"intent"`
	Slots       string `json:"slots"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CredentialRequest is the payload for PUT /api/v1/users/{id}/credentials.
type CredentialRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}
