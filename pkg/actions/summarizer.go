package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/mail"
)

// Summarizer condenses recent emails into one short spoken digest.
type Summarizer struct {
	gen          classifier.Generator
	defaultLimit int
}

var _ Handler = (*Summarizer)(nil)

func (s *Summarizer) Execute(ctx context.Context, transport mail.Transport, req Request) Outcome {
	limit := parseLimit(req.Slots["limit"], s.defaultLimit)
	sender := req.Slots["sender"]

	messages, err := transport.List(ctx, mail.ListQuery{
		Limit:       limit,
		Sender:      sender,
		IncludeBody: true,
	})
	if err != nil {
		return Errorf("fetching emails: %v", err)
	}
	if len(messages) == 0 {
		return Outcome{Status: StatusSuccess, Message: "No emails to summarize."}
	}

	var sb strings.Builder
	for i, msg := range messages {
		body := msg.Body
		if body == "" {
			body = msg.Snippet
		}
		fmt.Fprintf(&sb, "Email %d from %s: Subject: %s. Body: %s\n\n", i+1, msg.Sender, msg.Subject, body)
	}

	prompt := fmt.Sprintf(`Summarize the following emails for a driver who is
listening, not reading. Be extremely short and conversational. No markdown
formatting, no special characters, plain speakable text only.

Structure: "You have %d new emails. [Sender] writes about [topic]. [Sender 2] has..."

Emails:
%s`, len(messages), sb.String())

	summary, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Errorf("summarizing emails: %v", err)
	}

	return Outcome{
		Status:  StatusSuccess,
		Message: strings.TrimSpace(summary),
		Data:    map[string]any{"messages": messages},
	}
}
