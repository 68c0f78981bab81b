package store

import (
	"database/sql"

	"github.com/pitabwire/frame/data"
)

// Task status values. A task row is written once per dispatch attempt and
// is immutable afterwards.
const (
	TaskStatusPending = "pending"
	TaskStatusSuccess = "success"
	TaskStatusError   = "error"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation owns the evolving dialogue state for one user. The state
// column is an opaque serialized blob replaced atomically each turn.
type Conversation struct {
	data.BaseModel

	UserID string `gorm:"type:varchar(50);not null;index:idx_conv_user" json:"user_id"`
	State  string `gorm:"type:text;default:'{}'"                        json:"state"`
}

func (Conversation) TableName() string { return "conversations" }

// Turn is one utterance in a conversation. Append-only, never mutated.
type Turn struct {
	data.BaseModel

	ConversationID string `gorm:"type:varchar(50);not null;index:idx_turn_conv" json:"conversation_id"`
	Role           string `gorm:"type:varchar(20);not null"                     json:"role"`
	Content        string `gorm:"type:text;not null"                            json:"content"`
}

func (Turn) TableName() string { return "turns" }

// Task records one dispatch attempt and its outcome. Doubles as the lookup
// mechanism for the most recent draft awaiting send confirmation.
type Task struct {
	data.BaseModel

	ConversationID string       `gorm:"type:varchar(50);not null;index:idx_task_conv" json:"conversation_id"`
	Intent         string       `gorm:"type:varchar(100);not null"                    json:"intent"`
	Slots          string       `gorm:"type:text"                                     json:"slots"`
	Status         string       `gorm:"type:varchar(20);not null"                     json:"status"`
	Result         string       `gorm:"type:text"                                     json:"result,omitempty"`
	CompletedAt    sql.NullTime `json:"completed_at,omitempty"`
}

func (Task) TableName() string { return "tasks" }

// Credential holds one user's mail OAuth tokens.
type Credential struct {
	data.BaseModel

	UserID       string       `gorm:"type:varchar(50);not null;uniqueIndex:idx_cred_user" json:"user_id"`
	AccessToken  string       `gorm:"type:text;not null"                                  json:"-"`
	RefreshToken string       `gorm:"type:text"                                           json:"-"`
	ExpiresAt    sql.NullTime `json:"expires_at,omitempty"`
}

func (Credential) TableName() string { return "credentials" }
