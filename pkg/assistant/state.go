package assistant

import (
	"encoding/json"
	"fmt"
)

// VerificationStatus is the position of one sensitive slot in its
// confirmation lifecycle.
type VerificationStatus string

const (
	StatusUnverified          VerificationStatus = "unverified"
	StatusPendingConfirmation VerificationStatus = "pending_confirmation"
	StatusVerified            VerificationStatus = "verified"
)

// Verification tracks the confirmation sub-state for one sensitive slot.
// The value is recorded so a changed extraction can be told apart from a
// repeated one.
type Verification struct {
	Status VerificationStatus `json:"status"`
	Value  string             `json:"value,omitempty"`
}

// State is the evolving slot-filling state of one conversation. It is
// persisted as an opaque JSON blob, replaced atomically per turn.
type State struct {
	ActiveIntent  string                  `json:"intent,omitempty"`
	Slots         map[string]string       `json:"slots,omitempty"`
	Verifications map[string]Verification `json:"verifications,omitempty"`
}

// NewState returns an empty conversation state.
func NewState() State {
	return State{
		Slots:         make(map[string]string),
		Verifications: make(map[string]Verification),
	}
}

// DecodeState parses a persisted state blob. Empty and "{}" blobs decode to
// the empty state.
func DecodeState(raw []byte) (State, error) {
	st := NewState()
	if len(raw) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode conversation state: %w", err)
	}
	if st.Slots == nil {
		st.Slots = make(map[string]string)
	}
	if st.Verifications == nil {
		st.Verifications = make(map[string]Verification)
	}
	return st, nil
}

// Encode serializes the state for persistence.
func (s State) Encode() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode conversation state: %w", err)
	}
	return raw, nil
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	cp := State{
		ActiveIntent:  s.ActiveIntent,
		Slots:         make(map[string]string, len(s.Slots)),
		Verifications: make(map[string]Verification, len(s.Verifications)),
	}
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	for k, v := range s.Verifications {
		cp.Verifications[k] = v
	}
	return cp
}

// Empty reports whether the state carries no intent and no slots.
func (s State) Empty() bool {
	return s.ActiveIntent == "" && len(s.Slots) == 0
}

// MergeSlots folds newly extracted slot values into the accumulated set.
// Union with override: a new value replaces an old one for the same key,
// but slots are never dropped outside a full reset.
func (s *State) MergeSlots(extracted map[string]string) {
	for k, v := range extracted {
		if v == "" {
			continue
		}
		s.Slots[k] = v
	}
}

// MergeIntent applies the classifier's intent guess: a non-empty guess
// switches or continues the topic, an empty (ambiguous) one keeps the
// prior intent.
func (s *State) MergeIntent(guessed string) {
	if guessed != "" {
		s.ActiveIntent = guessed
	}
}
