package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/drivemail/drivemail/pkg/assistant"
	"github.com/drivemail/drivemail/pkg/store"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// TurnProcessor is the slice of the dialogue manager the handler needs.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, userID, utterance string) (assistant.Result, error)
	ProcessConversationTurn(ctx context.Context, userID, conversationID, utterance string) (assistant.Result, error)
}

// ConversationStore is the slice of the repository the read and credential
// endpoints use.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]store.Conversation, error)
	ListTurns(ctx context.Context, conversationID string, limit int) ([]store.Turn, error)
	ListTasks(ctx context.Context, conversationID string, limit int) ([]store.Task, error)
	SaveCredential(ctx context.Context, cred *store.Credential) error
}

// AssistantHandler provides the REST surface over the dialogue manager and
// the conversation store.
type AssistantHandler struct {
	manager TurnProcessor
	repo    ConversationStore
}

// NewAssistantHandler creates the assistant API handler.
func NewAssistantHandler(manager TurnProcessor, repo ConversationStore) *AssistantHandler {
	return &AssistantHandler{manager: manager, repo: repo}
}

// RegisterRoutes registers all assistant API routes on the given mux.
func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/turns", h.ProcessTurn)
	mux.HandleFunc("GET /api/v1/conversations", h.ListConversations)
	mux.HandleFunc("GET /api/v1/conversations/{id}", h.GetConversation)
	mux.HandleFunc("GET /api/v1/conversations/{id}/turns", h.ListTurns)
	mux.HandleFunc("GET /api/v1/conversations/{id}/tasks", h.ListTasks)
	mux.HandleFunc("PUT /api/v1/users/{id}/credentials", h.SaveCredential)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// ProcessTurn handles POST /api/v1/turns
func (h *AssistantHandler) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Utterance == "" {
		writeError(w, http.StatusBadRequest, "user_id and utterance are required")
		return
	}

	var (
		result assistant.Result
		err    error
	)
	if req.ConversationID != "" {
		result, err = h.manager.ProcessConversationTurn(r.Context(), req.UserID, req.ConversationID, req.Utterance)
	} else {
		result, err = h.manager.ProcessTurn(r.Context(), req.UserID, req.Utterance)
	}
	if err != nil {
		// Internal detail stays in the log; the caller gets a generic,
		// speakable failure.
		slog.ErrorContext(r.Context(), "turn processing failed",
			slog.String("user_id", req.UserID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "could not process the utterance, please try again")
		return
	}

	writeJSON(w, http.StatusOK, TurnResult{Result: result})
}

// ListConversations handles GET /api/v1/conversations?user_id=
func (h *AssistantHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conversations, err := h.repo.ListConversations(r.Context(), userID, queryLimit(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	resp := make([]ConversationResponse, 0, len(conversations))
	for i := range conversations {
		resp = append(resp, toConversationResponse(&conversations[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetConversation handles GET /api/v1/conversations/{id}
func (h *AssistantHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.repo.GetConversation(r.Context(), r.PathValue("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

// ListTurns handles GET /api/v1/conversations/{id}/turns
func (h *AssistantHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := h.repo.ListTurns(r.Context(), r.PathValue("id"), queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}

	resp := make([]TranscriptTurn, 0, len(turns))
	for _, t := range turns {
		resp = append(resp, TranscriptTurn{
			ID:        t.ID,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTasks handles GET /api/v1/conversations/{id}/tasks
func (h *AssistantHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repo.ListTasks(r.Context(), r.PathValue("id"), queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		tr := TaskResponse{
			ID:        t.ID,
			Intent:    t.Intent,
			Slots:     t.Slots,
			Status:    t.Status,
			Result:    t.Result,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		}
		if t.CompletedAt.Valid {
			tr.CompletedAt = t.CompletedAt.Time.Format(time.RFC3339)
		}
		resp = append(resp, tr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SaveCredential handles PUT /api/v1/users/{id}/credentials
func (h *AssistantHandler) SaveCredential(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	userID := r.PathValue("id")

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "access_token is required")
		return
	}

	cred := &store.Credential{
		UserID:       userID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	}
	if req.ExpiresAt != "" {
		expiry, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expires_at must be RFC 3339")
			return
		}
		cred.ExpiresAt = sql.NullTime{Time: expiry, Valid: true}
	}

	if err := h.repo.SaveCredential(r.Context(), cred); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toConversationResponse(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		State:      c.State,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		ModifiedAt: c.ModifiedAt.Format(time.RFC3339),
	}
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
