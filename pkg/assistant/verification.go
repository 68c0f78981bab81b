package assistant

import (
	"strings"

	"github.com/drivemail/drivemail/pkg/intent"
)

// affirmations is the closed set of phrases the manager accepts as a
// confirmation of a pending sensitive slot value. Detection is owned by the
// manager, not the classifier: the classifier's completed flag alone must
// never verify anything.
var affirmations = []string{
	"yes", "yeah", "yep", "correct", "right", "exactly",
	"confirm", "confirmed", "that's right", "that is right",
	"sounds good", "go ahead", "ja", "genau", "richtig", "stimmt",
}

// isAffirmative reports whether an utterance reads as a plain confirmation.
func isAffirmative(utterance string) bool {
	u := strings.ToLower(strings.TrimSpace(utterance))
	if u == "" {
		return false
	}
	u = strings.Trim(u, ".,!?")
	for _, a := range affirmations {
		if u == a || strings.HasPrefix(u, a+" ") || strings.HasPrefix(u, a+",") {
			return true
		}
	}
	return false
}

// advanceVerifications moves each sensitive slot of the active intent
// through its confirmation lifecycle after a merge.
//
// Transitions, per slot:
//   - a newly extracted or changed value always lands in
//     pending_confirmation, re-asking even if it was verified before;
//   - pending moves to verified only when the slot was already pending
//     before this turn and the user affirmed. This makes a same-turn
//     extract-and-verify impossible regardless of what the classifier
//     claims.
//
// prior is the state snapshot taken before this turn's merge; extracted is
// the classifier's slot output for this turn.
func advanceVerifications(st *State, prior State, in intent.Intent, extracted map[string]string, utterance string) {
	affirmed := isAffirmative(utterance)

	for _, slot := range in.SensitiveSlots() {
		value := st.Slots[slot.Name]
		if value == "" {
			continue
		}

		prev, hadPrev := prior.Verifications[slot.Name]
		newValue, wasExtracted := extracted[slot.Name]

		switch {
		case !hadPrev:
			st.Verifications[slot.Name] = Verification{Status: StatusPendingConfirmation, Value: value}
		case wasExtracted && newValue != "" && newValue != prev.Value:
			st.Verifications[slot.Name] = Verification{Status: StatusPendingConfirmation, Value: newValue}
		case prev.Status == StatusPendingConfirmation && affirmed:
			st.Verifications[slot.Name] = Verification{Status: StatusVerified, Value: prev.Value}
		default:
			st.Verifications[slot.Name] = prev
		}
	}
}

// pendingSensitiveSlot returns the first sensitive slot of the intent that
// still awaits confirmation, in declaration order.
func pendingSensitiveSlot(st State, in intent.Intent) (intent.Slot, bool) {
	for _, slot := range in.SensitiveSlots() {
		v, ok := st.Verifications[slot.Name]
		if st.Slots[slot.Name] != "" && (!ok || v.Status != StatusVerified) {
			return slot, true
		}
	}
	return intent.Slot{}, false
}
