package actions

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/mail"
)

const bodyPreviewLimit = 500

// Writer composes an email draft: it resolves the recipient address from
// mail history when the user only gave a name, generates the body text in
// the tone of prior exchanges, and creates a draft. It never sends.
type Writer struct {
	gen          classifier.Generator
	contextLimit int
}

var _ Handler = (*Writer)(nil)

func (w *Writer) Execute(ctx context.Context, transport mail.Transport, req Request) Outcome {
	recipient := req.Slots["recipient"]
	subject := req.Slots["subject"]
	instruction := req.Slots["body"]

	if recipient == "" || subject == "" || instruction == "" {
		return Errorf("missing required fields for drafting an email")
	}

	// Recent exchanges with this recipient give the generator tone and let
	// us resolve a bare name to an address.
	history, err := transport.List(ctx, mail.ListQuery{
		Limit:       w.contextLimit,
		Sender:      recipient,
		IncludeBody: true,
	})
	if err != nil {
		return Errorf("fetching mail history: %v", err)
	}

	resolved := resolveRecipient(recipient, history)
	if !strings.Contains(resolved, "@") {
		return Errorf("could not resolve an email address for %q", recipient)
	}

	body, err := w.generateBody(ctx, recipient, resolved, subject, instruction, history)
	if err != nil {
		return Errorf("generating email text: %v", err)
	}

	draftID, err := transport.CreateDraft(ctx, mail.Draft{
		Recipient: resolved,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		return Errorf("creating draft: %v", err)
	}

	return Outcome{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Draft created. Content: %s. Shall I send it?", body),
		Data: map[string]any{
			"draft_id":          draftID,
			"recipient":         resolved,
			"generated_content": body,
			"action_needed":     "confirm_send",
		},
	}
}

func (w *Writer) generateBody(ctx context.Context, recipient, resolved, subject, instruction string, history []mail.Message) (string, error) {
	var contextText string
	if len(history) > 0 {
		var sb strings.Builder
		sb.WriteString("Recent emails with this recipient:\n")
		for _, msg := range history {
			preview := msg.Body
			if preview == "" {
				preview = msg.Snippet
			}
			preview = truncate(preview, bodyPreviewLimit)
			fmt.Fprintf(&sb, "- From: %s\n  Subject: %s\n  Content: %s\n\n", msg.Sender, msg.Subject, preview)
		}
		contextText = sb.String()
	} else {
		contextText = "No previous emails with this recipient."
	}

	prompt := fmt.Sprintf(`You are a professional email assistant. Write the
body text for an email.

Recipient: %s (address: %s)
Subject: %s
User instruction: %q

Context (previous emails):
%s

Instructions:
1. Analyze the tone of the previous emails, if any. Formal or informal?
2. Match that tone in the new email. Without context, write politely and
   professionally.
3. Write the body based on the user instruction.
4. Return ONLY the email body text. No subject line, no preamble.`,
		recipient, resolved, subject, instruction, contextText)

	body, err := w.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(body), nil
}

// resolveRecipient turns a bare name into an address using the sender of
// the most recent exchange, when available.
func resolveRecipient(recipient string, history []mail.Message) string {
	if strings.Contains(recipient, "@") {
		return recipient
	}
	for _, msg := range history {
		if addr, err := netmail.ParseAddress(msg.Sender); err == nil && strings.Contains(addr.Address, "@") {
			return addr.Address
		}
		if strings.Contains(msg.Sender, "@") {
			return msg.Sender
		}
	}
	return recipient
}
