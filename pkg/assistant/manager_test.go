package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/drivemail/drivemail/pkg/actions"
	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/intent"
	"github.com/drivemail/drivemail/pkg/store"
)

type fakeStore struct {
	conversation store.Conversation
	state        []byte
	turns        []store.Turn
	tasks        []store.Task
	stateSaves   int
}

func newFakeStore() *fakeStore {
	fs := &fakeStore{state: []byte("{}")}
	fs.conversation.ID = "conv-1"
	fs.conversation.UserID = "user-1"
	return fs
}

func (f *fakeStore) GetLatestOrCreateConversation(_ context.Context, _ string) (*store.Conversation, error) {
	c := f.conversation
	return &c, nil
}

func (f *fakeStore) LoadState(_ context.Context, _ string) ([]byte, error) {
	return f.state, nil
}

func (f *fakeStore) SaveState(_ context.Context, _ string, state []byte) error {
	f.state = state
	f.stateSaves++
	return nil
}

func (f *fakeStore) AppendTurn(_ context.Context, conversationID, role, content string) error {
	f.turns = append(f.turns, store.Turn{ConversationID: conversationID, Role: role, Content: content})
	return nil
}

func (f *fakeStore) AppendTask(_ context.Context, conversationID, intentName string, slots map[string]string, status string, result any) error {
	rawSlots, _ := json.Marshal(slots)
	rawResult, _ := json.Marshal(result)
	task := store.Task{
		ConversationID: conversationID,
		Intent:         intentName,
		Slots:          string(rawSlots),
		Status:         status,
		Result:         string(rawResult),
	}
	task.ID = "task-1"
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeStore) FindLatestTaskByIntent(_ context.Context, _, intentName string) (*store.Task, error) {
	for i := len(f.tasks) - 1; i >= 0; i-- {
		if f.tasks[i].Intent == intentName && f.tasks[i].Status == store.TaskStatusSuccess {
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, nil
}

type fakeClassifier struct {
	guesses []classifier.Guess
	err     error
	calls   int
}

func (f *fakeClassifier) Classify(_ context.Context, _ classifier.Request) (classifier.Guess, error) {
	if f.err != nil {
		return classifier.Guess{}, f.err
	}
	if f.calls >= len(f.guesses) {
		return classifier.Guess{}, errors.New("fakeClassifier: no guess scripted")
	}
	g := f.guesses[f.calls]
	f.calls++
	return g, nil
}

type fakeDispatcher struct {
	outcome  actions.Outcome
	requests []actions.Request
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req actions.Request) actions.Outcome {
	f.requests = append(f.requests, req)
	return f.outcome
}

func newTestManager(cls *fakeClassifier, disp *fakeDispatcher, fs *fakeStore) *Manager {
	return NewManager(func() *intent.Schema { return intent.Default() }, cls, disp, fs)
}

func decodeTestState(t *testing.T, fs *fakeStore) State {
	t.Helper()
	st, err := DecodeState(fs.state)
	if err != nil {
		t.Fatalf("decoding persisted state: %v", err)
	}
	return st
}

func TestSlotFillingAcrossTurns(t *testing.T) {
	fs := newFakeStore()
	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "send_email", Slots: map[string]string{"recipient": "anna@example.com"}, Response: "What is the subject?"},
		{Intent: "send_email", Slots: map[string]string{"subject": "Lunch"}, Response: "What should the email say?"},
		{Intent: "send_email", Slots: map[string]string{"body": "See you at noon."}, Response: "Draft is ready.", Completed: true},
		{Intent: "send_email", Response: "Okay.", Completed: true},
	}}
	disp := &fakeDispatcher{outcome: actions.Outcome{
		Status:  actions.StatusSuccess,
		Message: "Draft created. Shall I send it?",
		Data:    map[string]any{"draft_id": "draft-1"},
	}}
	m := newTestManager(cls, disp, fs)
	ctx := context.Background()

	// Turn 1: intent and recipient arrive, subject and body missing.
	res, err := m.ProcessTurn(ctx, "user-1", "write anna an email")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if res.Completed {
		t.Fatal("turn 1 must not complete")
	}
	if len(res.MissingSlots) != 2 {
		t.Fatalf("turn 1 missing slots = %v", res.MissingSlots)
	}
	if res.Response != "What is the subject?" {
		t.Errorf("turn 1 response = %q", res.Response)
	}

	// Turn 2: subject fills, body still missing, recipient slot survives.
	res, err = m.ProcessTurn(ctx, "user-1", "subject lunch")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if got := res.Slots["recipient"]; got != "anna@example.com" {
		t.Errorf("turn 2 lost recipient slot: %v", res.Slots)
	}
	if len(res.MissingSlots) != 1 || res.MissingSlots[0] != "body" {
		t.Errorf("turn 2 missing slots = %v", res.MissingSlots)
	}

	// Turn 3: all slots filled, but the recipient has never been confirmed.
	// The manager must ask, not dispatch.
	res, err = m.ProcessTurn(ctx, "user-1", "tell her I'll be there at noon")
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if res.Completed {
		t.Fatal("turn 3 must not complete with an unverified recipient")
	}
	if !strings.Contains(res.Response, "anna@example.com") || !strings.Contains(res.Response, "recipient") {
		t.Errorf("turn 3 must ask for recipient confirmation, got %q", res.Response)
	}
	if len(disp.requests) != 0 {
		t.Fatal("nothing may dispatch before confirmation")
	}

	// Turn 4: affirmation verifies the recipient and the draft dispatches.
	res, err = m.ProcessTurn(ctx, "user-1", "yes")
	if err != nil {
		t.Fatalf("turn 4: %v", err)
	}
	if !res.Completed {
		t.Fatal("turn 4 should complete")
	}
	if len(disp.requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(disp.requests))
	}
	req := disp.requests[0]
	if req.Intent != "send_email" || req.Slots["body"] != "See you at noon." {
		t.Errorf("dispatched request = %+v", req)
	}
	if req.ArtifactID != "" {
		t.Errorf("draft intents carry no artifact, got %q", req.ArtifactID)
	}
	if res.Response != "Draft created. Shall I send it?" {
		t.Errorf("success response must come from the handler, got %q", res.Response)
	}

	// Success resets the conversation state.
	if st := decodeTestState(t, fs); !st.Empty() {
		t.Errorf("state not reset after success: %+v", st)
	}

	// One task row per dispatch attempt, none before.
	if len(fs.tasks) != 1 || fs.tasks[0].Status != store.TaskStatusSuccess {
		t.Errorf("tasks = %+v", fs.tasks)
	}
}

func TestAdvisoryCompletedFlagCannotVerify(t *testing.T) {
	// The classifier claims completion on the very turn the recipient is
	// extracted. The manager must still hold for confirmation.
	fs := newFakeStore()
	cls := &fakeClassifier{guesses: []classifier.Guess{
		{
			Intent: "send_email",
			Slots: map[string]string{
				"recipient": "anna@example.com",
				"subject":   "Lunch",
				"body":      "See you.",
			},
			Response:  "Sending it now!",
			Completed: true,
		},
	}}
	disp := &fakeDispatcher{}
	m := newTestManager(cls, disp, fs)

	res, err := m.ProcessTurn(context.Background(), "user-1", "send anna lunch email saying see you")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Completed {
		t.Fatal("single-turn extract-and-dispatch of a sensitive slot must be impossible")
	}
	if len(disp.requests) != 0 {
		t.Fatal("nothing may dispatch")
	}
	if !strings.Contains(res.Response, "Is that correct?") {
		t.Errorf("expected a confirmation question, got %q", res.Response)
	}
}

func TestHandlerFailureKeepsState(t *testing.T) {
	fs := newFakeStore()
	seed := NewState()
	seed.ActiveIntent = "send_email"
	seed.Slots = map[string]string{"recipient": "anna@example.com", "subject": "Lunch", "body": "See you."}
	seed.Verifications["recipient"] = Verification{Status: StatusPendingConfirmation, Value: "anna@example.com"}
	fs.state, _ = seed.Encode()

	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "send_email", Response: "Okay."},
	}}
	disp := &fakeDispatcher{outcome: actions.Errorf("mailbox unavailable")}
	m := newTestManager(cls, disp, fs)

	res, err := m.ProcessTurn(context.Background(), "user-1", "yes")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !strings.HasPrefix(res.Response, "Error: ") {
		t.Errorf("failure response must carry the error prefix, got %q", res.Response)
	}

	// State survives so the user can retry without re-filling slots.
	st := decodeTestState(t, fs)
	if st.ActiveIntent != "send_email" || st.Slots["subject"] != "Lunch" {
		t.Errorf("state lost after handler failure: %+v", st)
	}
	if len(fs.tasks) != 1 || fs.tasks[0].Status != store.TaskStatusError {
		t.Errorf("failed dispatch must still record a task, got %+v", fs.tasks)
	}
}

func TestConfirmSendResolvesLatestDraft(t *testing.T) {
	fs := newFakeStore()
	_ = fs.AppendTask(context.Background(), "conv-1", "send_email",
		map[string]string{"recipient": "anna@example.com"},
		store.TaskStatusSuccess,
		actions.Outcome{Status: actions.StatusSuccess, Data: map[string]any{"draft_id": "draft-42"}},
	)

	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "confirm_send", Response: "Sending."},
	}}
	disp := &fakeDispatcher{outcome: actions.Outcome{Status: actions.StatusSuccess, Message: "Email sent successfully."}}
	m := newTestManager(cls, disp, fs)

	res, err := m.ProcessTurn(context.Background(), "user-1", "send it")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !res.Completed {
		t.Fatal("confirm_send should complete once classified")
	}
	if len(disp.requests) != 1 || disp.requests[0].ArtifactID != "draft-42" {
		t.Fatalf("expected dispatch with draft-42, got %+v", disp.requests)
	}
	if res.Response != "Email sent successfully." {
		t.Errorf("response = %q", res.Response)
	}
}

func TestConfirmSendWithoutDraft(t *testing.T) {
	fs := newFakeStore()
	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "confirm_send", Response: "Sending."},
	}}
	disp := &fakeDispatcher{outcome: actions.Errorf("no draft found to send, please compose one first")}
	m := newTestManager(cls, disp, fs)

	res, err := m.ProcessTurn(context.Background(), "user-1", "send it")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if len(disp.requests) != 1 || disp.requests[0].ArtifactID != "" {
		t.Fatalf("expected dispatch with empty artifact, got %+v", disp.requests)
	}
	if !strings.HasPrefix(res.Response, "Error: ") {
		t.Errorf("response = %q", res.Response)
	}
}

func TestChitchatNeverDispatchesOrRecords(t *testing.T) {
	fs := newFakeStore()
	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "chitchat", Response: "Doing great, thanks for asking."},
	}}
	disp := &fakeDispatcher{}
	m := newTestManager(cls, disp, fs)

	res, err := m.ProcessTurn(context.Background(), "user-1", "how are you?")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Completed || len(disp.requests) != 0 || len(fs.tasks) != 0 {
		t.Errorf("chitchat must not dispatch or record tasks: %+v", res)
	}
	if res.Response != "Doing great, thanks for asking." {
		t.Errorf("response = %q", res.Response)
	}
}

func TestAmbiguousTurnLeavesStateUntouched(t *testing.T) {
	fs := newFakeStore()
	seed := NewState()
	seed.ActiveIntent = "send_email"
	seed.Slots["recipient"] = "anna@example.com"
	seed.Verifications["recipient"] = Verification{Status: StatusPendingConfirmation, Value: "anna@example.com"}
	fs.state, _ = seed.Encode()

	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "", Response: "Sorry, I did not catch that."},
	}}
	disp := &fakeDispatcher{}
	m := newTestManager(cls, disp, fs)

	res, err := m.ProcessTurn(context.Background(), "user-1", "mumble")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Completed || len(disp.requests) != 0 {
		t.Fatal("ambiguous turn must not dispatch")
	}

	st := decodeTestState(t, fs)
	if st.ActiveIntent != "send_email" || st.Slots["recipient"] != "anna@example.com" {
		t.Errorf("ambiguous turn mutated state: %+v", st)
	}
	if v := st.Verifications["recipient"]; v.Status != StatusPendingConfirmation {
		t.Errorf("ambiguous turn mutated verification: %+v", v)
	}
}

func TestClassifierErrorPreservesState(t *testing.T) {
	fs := newFakeStore()
	seed := NewState()
	seed.ActiveIntent = "send_email"
	seed.Slots["recipient"] = "anna@example.com"
	fs.state, _ = seed.Encode()
	before := string(fs.state)

	cls := &fakeClassifier{err: errors.New("model unavailable")}
	m := newTestManager(cls, &fakeDispatcher{}, fs)

	if _, err := m.ProcessTurn(context.Background(), "user-1", "anything"); err == nil {
		t.Fatal("expected error from failing classifier")
	}
	if string(fs.state) != before {
		t.Error("classifier failure must leave persisted state unchanged")
	}
}

func TestTranscriptRecordsBothRoles(t *testing.T) {
	fs := newFakeStore()
	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "chitchat", Response: "Hello!"},
	}}
	m := newTestManager(cls, &fakeDispatcher{}, fs)

	if _, err := m.ProcessTurn(context.Background(), "user-1", "hi"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if len(fs.turns) != 2 {
		t.Fatalf("expected 2 transcript entries, got %d", len(fs.turns))
	}
	if fs.turns[0].Role != store.RoleUser || fs.turns[0].Content != "hi" {
		t.Errorf("turn 0 = %+v", fs.turns[0])
	}
	if fs.turns[1].Role != store.RoleAssistant || fs.turns[1].Content != "Hello!" {
		t.Errorf("turn 1 = %+v", fs.turns[1])
	}
}

func TestReloadedSchemaAppliesToNextTurn(t *testing.T) {
	// The schema source is consulted every turn, so swapping the schema
	// between turns changes which intents dispatch.
	fs := newFakeStore()
	cls := &fakeClassifier{guesses: []classifier.Guess{
		{Intent: "read_emails", Response: "Reading your emails."},
		{Intent: "read_emails", Response: "Reading your emails."},
	}}
	disp := &fakeDispatcher{outcome: actions.Outcome{Status: actions.StatusSuccess, Message: "Here are your emails."}}

	current := &intent.Schema{
		Name: "drivemail",
		Intents: map[string]intent.Intent{
			"chitchat": {Name: "chitchat", Kind: intent.KindChat},
		},
	}
	m := NewManager(func() *intent.Schema { return current }, cls, disp, fs)
	ctx := context.Background()

	// Turn 1: the schema does not declare read_emails yet, nothing dispatches.
	res, err := m.ProcessTurn(ctx, "user-1", "read my emails")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if res.Completed || len(disp.requests) != 0 {
		t.Fatal("an intent absent from the schema must not dispatch")
	}

	// The schema file reloads between turns.
	current = intent.Default()

	res, err = m.ProcessTurn(ctx, "user-1", "read my emails")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !res.Completed {
		t.Fatal("turn after reload must gate against the new schema")
	}
	if len(disp.requests) != 1 || disp.requests[0].Intent != "read_emails" {
		t.Fatalf("dispatches = %+v", disp.requests)
	}
}
