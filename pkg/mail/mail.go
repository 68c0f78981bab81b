package mail

import "context"

// Message is one email as seen by the assistant.
type Message struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Snippet string `json:"snippet,omitempty"`
	Body    string `json:"body,omitempty"`
}

// ListQuery selects which messages to fetch.
type ListQuery struct {
	Limit       int
	Sender      string
	IncludeBody bool
}

// Draft is the content of an email to be drafted.
type Draft struct {
	Recipient string
	Subject   string
	Body      string
}

// Transport is the narrow mail contract the action handlers consume.
type Transport interface {
	List(ctx context.Context, q ListQuery) ([]Message, error)
	CreateDraft(ctx context.Context, d Draft) (string, error)
	Send(ctx context.Context, draftID string) (Message, error)
}

// Factory builds a transport bound to one user's access token.
type Factory func(accessToken string) Transport
