package intent

// Kind classifies what dispatching an intent does to the outside world.
type Kind string

const (
	KindRead      Kind = "read"
	KindSummarize Kind = "summarize"
	KindDraft     Kind = "draft"
	KindSend      Kind = "send"
	KindChat      Kind = "chat"
)

// Dispatchable reports whether completing this kind of intent triggers an
// action handler. Chit-chat never dispatches.
func (k Kind) Dispatchable() bool {
	switch k {
	case KindRead, KindSummarize, KindDraft, KindSend:
		return true
	}
	return false
}

// Slot describes one named parameter of an intent. Sensitive slots must be
// confirmed by the user before the intent may dispatch.
type Slot struct {
	Name      string `yaml:"name"      json:"name"`
	Prompt    string `yaml:"prompt"    json:"prompt,omitempty"`
	Sensitive bool   `yaml:"sensitive" json:"sensitive,omitempty"`
}

// Intent declares one supported user goal and its slots.
type Intent struct {
	Name        string `yaml:"name"        json:"name"`
	Kind        Kind   `yaml:"kind"        json:"kind"`
	Description string `yaml:"description" json:"description,omitempty"`
	Required    []Slot `yaml:"required"    json:"required,omitempty"`
	Optional    []Slot `yaml:"optional"    json:"optional,omitempty"`
}

// Slot returns the declared slot with the given name, searching required
// slots before optional ones.
func (in Intent) Slot(name string) (Slot, bool) {
	for _, s := range in.Required {
		if s.Name == name {
			return s, true
		}
	}
	for _, s := range in.Optional {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// SensitiveSlots returns all slots requiring confirmation, in declaration order.
func (in Intent) SensitiveSlots() []Slot {
	var out []Slot
	for _, s := range in.Required {
		if s.Sensitive {
			out = append(out, s)
		}
	}
	for _, s := range in.Optional {
		if s.Sensitive {
			out = append(out, s)
		}
	}
	return out
}

// MissingRequired returns the names of required slots absent from the given
// slot values, preserving declaration order.
func (in Intent) MissingRequired(slots map[string]string) []string {
	var missing []string
	for _, s := range in.Required {
		if slots[s.Name] == "" {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

// Schema is a YAML-mappable declaration of all supported intents.
// Immutable after load; shared read-only by all conversations.
type Schema struct {
	Name    string            `yaml:"name"    json:"name"`
	Version string            `yaml:"version" json:"version,omitempty"`
	Intents map[string]Intent `yaml:"intents" json:"intents"`
}

// Intent returns the intent declaration for the given name.
func (s *Schema) Intent(name string) (Intent, bool) {
	in, ok := s.Intents[name]
	return in, ok
}
