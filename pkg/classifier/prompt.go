package classifier

import (
	"encoding/json"
	"fmt"
)

// buildClassifyPrompt renders the instruction block for a classification
// call. The schema and current state are embedded as JSON so the model sees
// exactly what the manager sees.
func buildClassifyPrompt(req Request) (string, error) {
	schemaJSON, err := json.MarshalIndent(req.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	stateJSON, err := json.MarshalIndent(req.State, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	return fmt.Sprintf(`You are an intent classifier for a voice email assistant.
Classify the user's intent and extract slot values based on the schema.

Schema:
%s

Current State:
%s

User Input: %q

Instructions:
1. Analyze intent. If an intent is already active in the current state,
   continue with it unless the user explicitly changes topic. If the input
   is ambiguous (for example "I want to send" could mean drafting a new
   email or sending an existing draft), set "intent" to null and ask for
   clarification in "response". Do not confuse drafting with sending:
   "send_email" only composes a draft; "confirm_send" is the only intent
   that actually dispatches an email.
2. Extract slot values declared in the schema. Never invent or guess email
   addresses. If a required slot is missing from both the current state and
   the input, your "response" must be that slot's clarifying prompt.
3. If the user spelled out or dictated a recipient, repeat it back and ask
   for confirmation in "response"; do not set "completed" until they
   confirm.
4. Never claim an email was sent. Success statements belong to the system,
   not to you.

Return only a JSON object, no markdown:
{
  "intent": "string or null",
  "slots": {"slot_name": "extracted value"},
  "missing_slots": ["slot_name"],
  "response": "what to say back to the user",
  "completed": false
}`, schemaJSON, stateJSON, req.Utterance), nil
}
