package intent

import "fmt"

// Validate checks the schema for consistency.
func (s *Schema) Validate() error {
	if len(s.Intents) == 0 {
		return fmt.Errorf("schema %q: at least one intent is required", s.Name)
	}

	for name, in := range s.Intents {
		if name == "" {
			return fmt.Errorf("schema %q: intent with empty name", s.Name)
		}
		if !in.Kind.Dispatchable() && in.Kind != KindChat {
			return fmt.Errorf("schema %q intent %q: unknown kind %q", s.Name, name, in.Kind)
		}

		seen := make(map[string]bool)
		for _, sl := range append(append([]Slot{}, in.Required...), in.Optional...) {
			if sl.Name == "" {
				return fmt.Errorf("schema %q intent %q: slot with empty name", s.Name, name)
			}
			if seen[sl.Name] {
				return fmt.Errorf("schema %q intent %q: duplicate slot %q", s.Name, name, sl.Name)
			}
			seen[sl.Name] = true
			if sl.Sensitive && sl.Prompt == "" {
				return fmt.Errorf("schema %q intent %q: sensitive slot %q needs a clarifying prompt",
					s.Name, name, sl.Name)
			}
		}
	}

	return nil
}

// Default returns the built-in DriveMail schema: reading, summarizing,
// drafting and sending email, plus a chit-chat fallback.
func Default() *Schema {
	return &Schema{
		Name:    "drivemail",
		Version: "1.0",
		Intents: map[string]Intent{
			"read_emails": {
				Name:        "read_emails",
				Kind:        KindRead,
				Description: "Read recent emails aloud, optionally filtered by sender.",
				Optional: []Slot{
					{Name: "limit", Prompt: "How many emails should I read?"},
					{Name: "sender", Prompt: "Whose emails should I read?"},
				},
			},
			"summarize_emails": {
				Name:        "summarize_emails",
				Kind:        KindSummarize,
				Description: "Summarize recent emails in a short spoken digest.",
				Optional: []Slot{
					{Name: "limit", Prompt: "How many emails should I summarize?"},
					{Name: "sender", Prompt: "Whose emails should I summarize?"},
				},
			},
			"send_email": {
				Name:        "send_email",
				Kind:        KindDraft,
				Description: "Compose an email draft. Does not send anything by itself.",
				Required: []Slot{
					{Name: "recipient", Prompt: "Who should the email go to?", Sensitive: true},
					{Name: "subject", Prompt: "What is the subject of the email?"},
					{Name: "body", Prompt: "What should the email say?"},
				},
			},
			"confirm_send": {
				Name:        "confirm_send",
				Kind:        KindSend,
				Description: "Send the most recently drafted email.",
			},
			"chitchat": {
				Name:        "chitchat",
				Kind:        KindChat,
				Description: "Small talk or questions outside the email domain.",
			},
		},
	}
}
