package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/drivemail/drivemail/pkg/actions"
	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/events"
	"github.com/drivemail/drivemail/pkg/intent"
	"github.com/drivemail/drivemail/pkg/store"
)

const defaultTurnTimeout = 30 * time.Second

// Store is the persistence contract the manager needs: read-last and
// write-new semantics over conversations, turns and tasks.
type Store interface {
	GetLatestOrCreateConversation(ctx context.Context, userID string) (*store.Conversation, error)
	LoadState(ctx context.Context, conversationID string) ([]byte, error)
	SaveState(ctx context.Context, conversationID string, state []byte) error
	AppendTurn(ctx context.Context, conversationID, role, content string) error
	AppendTask(ctx context.Context, conversationID, intentName string, slots map[string]string, status string, result any) error
	FindLatestTaskByIntent(ctx context.Context, conversationID, intentName string) (*store.Task, error)
}

// Dispatcher routes a completed intent to its action handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req actions.Request) actions.Outcome
}

// SchemaSource yields the schema a turn classifies and gates against. It is
// consulted at the start of every turn, so hot-reloaded schema files take
// effect without a restart.
type SchemaSource func() *intent.Schema

// Result is what one processed turn returns to the transport layer.
type Result struct {
	ConversationID string            `json:"conversation_id"`
	Intent         string            `json:"intent,omitempty"`
	Slots          map[string]string `json:"slots"`
	MissingSlots   []string          `json:"missing_slots"`
	Response       string            `json:"response"`
	Completed      bool              `json:"completed"`
}

// Manager is the multi-turn slot-filling dialogue manager. It merges
// classifier output into conversation state, gates completion behind the
// verification policy, dispatches completed intents and records every
// dispatch attempt.
type Manager struct {
	schemas    SchemaSource
	classifier classifier.Classifier
	dispatcher Dispatcher
	store      Store
	publisher  *events.Publisher

	turnTimeout time.Duration
	locks       *keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithTurnTimeout bounds the classifier and handler calls of one turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.turnTimeout = d
		}
	}
}

// WithPublisher attaches an event publisher. Emit failures never fail a turn.
func WithPublisher(pub *events.Publisher) Option {
	return func(m *Manager) { m.publisher = pub }
}

// NewManager creates a dialogue manager.
func NewManager(schemas SchemaSource, cls classifier.Classifier, disp Dispatcher, st Store, opts ...Option) *Manager {
	m := &Manager{
		schemas:     schemas,
		classifier:  cls,
		dispatcher:  disp,
		store:       st,
		turnTimeout: defaultTurnTimeout,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProcessTurn resolves the user's current conversation (latest or freshly
// created) and processes one utterance in it. This is the single entry
// point the surrounding transport layer calls.
func (m *Manager) ProcessTurn(ctx context.Context, userID, utterance string) (Result, error) {
	conv, err := m.store.GetLatestOrCreateConversation(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("resolving conversation: %w", err)
	}
	return m.ProcessConversationTurn(ctx, userID, conv.ID, utterance)
}

// ProcessConversationTurn processes one utterance in an explicitly
// identified conversation. Turns for the same conversation are serialized;
// a second utterance waits until the prior turn's state write committed.
func (m *Manager) ProcessConversationTurn(ctx context.Context, userID, conversationID, utterance string) (Result, error) {
	m.locks.Lock(conversationID)
	defer m.locks.Unlock(conversationID)

	start := time.Now()
	m.emit(ctx, events.TurnStarted, conversationID, &events.TurnStartedData{
		UserID:    userID,
		Utterance: utterance,
	})

	// The user turn is appended before anything can fail; the transcript is
	// an audit trail, not a transactional unit, so it is never rolled back.
	if err := m.store.AppendTurn(ctx, conversationID, store.RoleUser, utterance); err != nil {
		return Result{}, fmt.Errorf("appending user turn: %w", err)
	}

	raw, err := m.store.LoadState(ctx, conversationID)
	if err != nil {
		return Result{}, fmt.Errorf("loading conversation state: %w", err)
	}
	st, err := DecodeState(raw)
	if err != nil {
		return Result{}, err
	}

	turnCtx, cancel := context.WithTimeout(ctx, m.turnTimeout)
	defer cancel()

	// Resolved per turn so a reloaded schema applies to the next utterance.
	schema := m.schemas()

	guess, err := m.classifier.Classify(turnCtx, classifier.Request{
		Schema:    schema,
		State:     classifier.StateView{Intent: st.ActiveIntent, Slots: st.Slots},
		Utterance: utterance,
	})
	if err != nil {
		m.emitError(ctx, conversationID, "classify", err)
		return Result{}, fmt.Errorf("classifying utterance: %w", err)
	}

	prior := st.Clone()
	st.MergeIntent(guess.Intent)
	st.MergeSlots(guess.Slots)

	in, known := schema.Intent(st.ActiveIntent)
	if known {
		advanceVerifications(&st, prior, in, guess.Slots, utterance)
		m.emitVerified(ctx, conversationID, prior, st)
	}

	decision := Gate(in, known, st, guess)

	m.emit(ctx, events.IntentClassified, conversationID, &events.IntentClassifiedData{
		Intent:       st.ActiveIntent,
		MissingSlots: decision.MissingSlots,
		Completed:    decision.Completed,
	})

	response := guess.Response
	if !decision.Completed && decision.AwaitingSlot != "" {
		// The classifier may have proposed anything, including a premature
		// success statement; a pending sensitive slot always turns the
		// response into a confirmation question.
		response = fmt.Sprintf("I understood %s as the %s. Is that correct?",
			decision.AwaitingValue, decision.AwaitingSlot)
	}

	result := Result{
		ConversationID: conversationID,
		Intent:         st.ActiveIntent,
		Slots:          st.Slots,
		MissingSlots:   decision.MissingSlots,
		Completed:      decision.Completed,
	}

	dispatched := false
	var outcome actions.Outcome
	nextState := st

	if decision.Completed {
		artifactID, err := m.resolveArtifact(ctx, conversationID, schema, in)
		if err != nil {
			m.emitError(ctx, conversationID, "resolve_artifact", err)
			return Result{}, err
		}

		outcome = m.dispatcher.Dispatch(turnCtx, actions.Request{
			Intent:         st.ActiveIntent,
			Slots:          st.Slots,
			ConversationID: conversationID,
			UserID:         userID,
			ArtifactID:     artifactID,
		})
		dispatched = true

		if outcome.Status == actions.StatusSuccess {
			// The handler's own message replaces the classifier's generic
			// confirmation, and a fresh topic starts within the same
			// conversation record.
			response = outcome.Message
			nextState = NewState()
			m.emit(ctx, events.StateReset, conversationID, nil)
		} else {
			// Keep merged state so the user can retry without re-supplying
			// slots.
			response = "Error: " + outcome.Message
		}
	}

	encoded, err := nextState.Encode()
	if err != nil {
		return Result{}, err
	}
	if err := m.store.SaveState(ctx, conversationID, encoded); err != nil {
		return Result{}, fmt.Errorf("saving conversation state: %w", err)
	}
	if err := m.store.AppendTurn(ctx, conversationID, store.RoleAssistant, response); err != nil {
		return Result{}, fmt.Errorf("appending assistant turn: %w", err)
	}
	if dispatched {
		status := store.TaskStatusError
		if outcome.Status == actions.StatusSuccess {
			status = store.TaskStatusSuccess
		}
		if err := m.store.AppendTask(ctx, conversationID, st.ActiveIntent, st.Slots, status, outcome); err != nil {
			return Result{}, fmt.Errorf("recording task: %w", err)
		}
	}

	result.Response = response

	slog.InfoContext(ctx, "turn processed",
		slog.String("conversation_id", conversationID),
		slog.String("intent", result.Intent),
		slog.Bool("completed", result.Completed),
		slog.Bool("dispatched", dispatched),
	)
	m.emit(ctx, events.TurnCompleted, conversationID, &events.TurnCompletedData{
		Intent:     result.Intent,
		Completed:  result.Completed,
		Dispatched: dispatched,
		DurationMs: time.Since(start).Milliseconds(),
	})

	return result, nil
}

// resolveArtifact looks up the draft a send-class intent operates on: the
// most recent successful draft task in this conversation. Sending needs an
// artifact id, never re-derived email content.
func (m *Manager) resolveArtifact(ctx context.Context, conversationID string, schema *intent.Schema, in intent.Intent) (string, error) {
	if in.Kind != intent.KindSend {
		return "", nil
	}

	draftIntent, ok := draftIntentName(schema)
	if !ok {
		return "", nil
	}

	task, err := m.store.FindLatestTaskByIntent(ctx, conversationID, draftIntent)
	if err != nil {
		return "", fmt.Errorf("looking up latest draft task: %w", err)
	}
	if task == nil {
		return "", nil
	}

	var result struct {
		Data struct {
			DraftID string `json:"draft_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(task.Result), &result); err != nil {
		// A malformed historical task must not fail the turn; the sender
		// handler reports the missing draft.
		slog.WarnContext(ctx, "unparseable draft task result",
			slog.String("conversation_id", conversationID),
			slog.String("task_id", task.ID),
		)
		return "", nil
	}
	return result.Data.DraftID, nil
}

// draftIntentName returns the schema's draft-producing intent name.
func draftIntentName(schema *intent.Schema) (string, bool) {
	for name, in := range schema.Intents {
		if in.Kind == intent.KindDraft {
			return name, true
		}
	}
	return "", false
}

func (m *Manager) emit(ctx context.Context, et events.EventType, conversationID string, data any) {
	if m.publisher == nil {
		return
	}
	_ = m.publisher.Emit(ctx, et, conversationID, data)
}

func (m *Manager) emitError(ctx context.Context, conversationID, stage string, err error) {
	if m.publisher == nil {
		return
	}
	_ = m.publisher.Emit(ctx, events.SystemError, conversationID, &events.ErrorData{
		Stage: stage,
		Error: err.Error(),
	})
}

func (m *Manager) emitVerified(ctx context.Context, conversationID string, prior, current State) {
	if m.publisher == nil {
		return
	}
	for slot, v := range current.Verifications {
		if v.Status != StatusVerified {
			continue
		}
		if prev, ok := prior.Verifications[slot]; ok && prev.Status == StatusVerified {
			continue
		}
		_ = m.publisher.Emit(ctx, events.SlotVerified, conversationID, &events.SlotVerifiedData{
			Slot:  slot,
			Value: v.Value,
		})
	}
}
