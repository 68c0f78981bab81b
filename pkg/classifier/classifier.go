package classifier

import (
	"context"

	"github.com/drivemail/drivemail/pkg/intent"
)

// StateView is the slice of conversation state a classification call may
// condition on: the active intent and the slots accumulated so far.
type StateView struct {
	Intent string            `json:"intent,omitempty"`
	Slots  map[string]string `json:"slots,omitempty"`
}

// Request carries the inputs for one classification call.
type Request struct {
	Schema    *intent.Schema
	State     StateView
	Utterance string
}

// Guess is the structured output of one classification call. The Completed
// flag is advisory only; the dialogue manager re-validates it.
type Guess struct {
	Intent       string            `json:"intent"`
	Slots        map[string]string `json:"slots"`
	MissingSlots []string          `json:"missing_slots"`
	Response     string            `json:"response"`
	Completed    bool              `json:"completed"`
}

// Classifier turns free text plus prior state into a structured intent guess.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Guess, error)
}

// Generator produces free text for voice output (email formatting,
// summaries, draft bodies).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
