package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pitabwire/frame/datastore/pool"
)

// Repository provides persistence for conversations, turns, tasks and
// credentials.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a conversation repository.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the backing tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(
		&Conversation{}, &Turn{}, &Task{}, &Credential{},
	)
}

// GetLatestOrCreateConversation returns the user's most recently updated
// conversation, creating one with empty state if none exists.
func (r *Repository) GetLatestOrCreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	var conv Conversation
	err := r.db(ctx, false).
		Where("user_id = ?", userID).
		Order("modified_at DESC").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = Conversation{UserID: userID, State: "{}"}
	if err := r.db(ctx, false).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation returns a conversation by id.
func (r *Repository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := r.db(ctx, true).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns a user's conversations, newest first.
func (r *Repository) ListConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	var convs []Conversation
	q := r.db(ctx, true).
		Where("user_id = ?", userID).
		Order("modified_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&convs).Error
	return convs, err
}

// LoadState returns the raw state blob for a conversation.
func (r *Repository) LoadState(ctx context.Context, conversationID string) ([]byte, error) {
	var conv Conversation
	err := r.db(ctx, false).
		Select("state").
		Where("id = ?", conversationID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return []byte(conv.State), nil
}

// SaveState replaces the conversation's state blob. Last writer wins;
// turn serialization happens above this layer.
func (r *Repository) SaveState(ctx context.Context, conversationID string, state []byte) error {
	return r.db(ctx, false).
		Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("state", string(state)).Error
}

// AppendTurn appends one utterance to the conversation transcript.
func (r *Repository) AppendTurn(ctx context.Context, conversationID, role, content string) error {
	turn := Turn{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	return r.db(ctx, false).Create(&turn).Error
}

// ListTurns returns a conversation's transcript in creation order.
func (r *Repository) ListTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	var turns []Turn
	q := r.db(ctx, true).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&turns).Error
	return turns, err
}

// AppendTask records one dispatch attempt. Slots and result are stored as
// JSON snapshots.
func (r *Repository) AppendTask(ctx context.Context, conversationID, intentName string, slots map[string]string, status string, result any) error {
	slotsJSON, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	task := Task{
		ConversationID: conversationID,
		Intent:         intentName,
		Slots:          string(slotsJSON),
		Status:         status,
		Result:         string(resultJSON),
		CompletedAt:    sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}
	return r.db(ctx, false).Create(&task).Error
}

// FindLatestTaskByIntent returns the conversation's most recent successful
// task for the given intent, or nil when none exists.
func (r *Repository) FindLatestTaskByIntent(ctx context.Context, conversationID, intentName string) (*Task, error) {
	var task Task
	err := r.db(ctx, true).
		Where("conversation_id = ? AND intent = ? AND status = ?",
			conversationID, intentName, TaskStatusSuccess).
		Order("created_at DESC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns a conversation's dispatch log, newest first.
func (r *Repository) ListTasks(ctx context.Context, conversationID string, limit int) ([]Task, error) {
	var tasks []Task
	q := r.db(ctx, true).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&tasks).Error
	return tasks, err
}

// GetCredential returns a user's mail credential, or nil when the user has
// not connected a mailbox.
func (r *Repository) GetCredential(ctx context.Context, userID string) (*Credential, error) {
	var cred Credential
	err := r.db(ctx, true).Where("user_id = ?", userID).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// SaveCredential creates or replaces a user's mail credential.
func (r *Repository) SaveCredential(ctx context.Context, cred *Credential) error {
	existing, err := r.GetCredential(ctx, cred.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		cred.ID = existing.ID
		return r.db(ctx, false).Save(cred).Error
	}
	return r.db(ctx, false).Create(cred).Error
}
