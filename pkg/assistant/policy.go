package assistant

import (
	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/intent"
)

// Decision is the outcome of the completion gate for one turn.
type Decision struct {
	// Completed is the manager's own verdict on whether the intent may
	// dispatch. It overrides the classifier's advisory flag.
	Completed bool
	// MissingSlots lists required slots still absent from merged state.
	MissingSlots []string
	// AwaitingSlot names the sensitive slot whose value still needs the
	// user's confirmation, when that is the only thing blocking dispatch.
	AwaitingSlot string
	// AwaitingValue is the value under confirmation for AwaitingSlot.
	AwaitingValue string
}

// Gate decides whether merged state is actually dispatchable. It never
// trusts the classifier's completed flag: a false positive there would risk
// an unwanted irreversible action, so completion is re-derived from the
// schema, the merged slots and the per-slot verification sub-state.
func Gate(in intent.Intent, known bool, st State, guess classifier.Guess) Decision {
	// Unknown or ambiguous intent: nothing to dispatch. An empty intent in
	// the guess signals net-new ambiguity even when a prior intent exists.
	if !known || !in.Kind.Dispatchable() || guess.Intent == "" {
		return Decision{}
	}

	d := Decision{MissingSlots: in.MissingRequired(st.Slots)}
	if len(d.MissingSlots) > 0 {
		return d
	}

	// Every filled sensitive slot must have been confirmed on an earlier
	// turn. read/summarize intents declare no sensitive slots and pass
	// straight through.
	if slot, pending := pendingSensitiveSlot(st, in); pending {
		d.AwaitingSlot = slot.Name
		d.AwaitingValue = st.Slots[slot.Name]
		return d
	}

	d.Completed = true
	return d
}
