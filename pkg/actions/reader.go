package actions

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/mail"
)

// Reader reads recent emails aloud, cleaned up for voice output.
type Reader struct {
	gen          classifier.Generator
	defaultLimit int
}

var _ Handler = (*Reader)(nil)

// Execute lists messages and formats each one as a speakable paragraph.
// The generator cleans marketing noise; a plain-text fallback covers
// generator failures so reading never fails outright once mail is fetched.
func (r *Reader) Execute(ctx context.Context, transport mail.Transport, req Request) Outcome {
	limit := parseLimit(req.Slots["limit"], r.defaultLimit)
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
		return Outcome{Status: StatusSuccess, Message: "No emails found."}
	}

	formatted := make([]string, 0, len(messages))
	for _, msg := range messages {
		formatted = append(formatted, r.speakable(ctx, msg))
	}

	return Outcome{
		Status:  StatusSuccess,
		Message: "Here are your emails.\n\n" + strings.Join(formatted, "\n\nNext email.\n\n"),
		Data:    map[string]any{"messages": messages},
	}
}

func (r *Reader) speakable(ctx context.Context, msg mail.Message) string {
	sender := cleanSenderName(msg.Sender)
	when := speakableDate(msg.Date)
	subject := msg.Subject
	if subject == "" {
		subject = "No subject"
	}
	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}

	prompt := fmt.Sprintf(`You are an assistant reading email to a driver.
Rewrite the following email so it can be read aloud.

Sender: %s
Received: %s
Subject: %s
Content: %s

Instructions:
1. Summarize or restate the content, dropping marketing noise, links,
   footers and disclaimers.
2. If it is pure advertising, say "Advertisement from %s" plus one short line.
3. No markdown formatting of any kind.
4. Format: "Email from [sender], received [time]. Subject: [subject]. [cleaned content]"
5. Be concise and natural to speak.`, sender, when, subject, body, sender)

	text, err := r.gen.Generate(ctx, prompt)
	if err == nil {
		return strings.TrimSpace(text)
	}

	// Plain fallback when the generator is unavailable.
	clean := strings.NewReplacer("*", "", "#", "", "`", "").Replace(body)
	clean = truncate(clean, 200)
	return fmt.Sprintf("Email from %s, received %s. Subject: %s. %s", sender, when, subject, clean)
}

// cleanSenderName reduces "Name <addr>" to just the display name.
func cleanSenderName(sender string) string {
	if sender == "" {
		return "Unknown"
	}
	if addr, err := netmail.ParseAddress(sender); err == nil && addr.Name != "" {
		return addr.Name
	}
	if i := strings.Index(sender, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(sender[:i]), `"`)
	}
	return sender
}

// speakableDate renders an RFC 2822 date as "today at 15:04" or "02.01. at 15:04".
func speakableDate(raw string) string {
	if raw == "" {
		return "at an unknown time"
	}
	parsed, err := netmail.ParseDate(raw)
	if err != nil {
		return raw
	}
	now := time.Now().In(parsed.Location())
	if parsed.Year() == now.Year() && parsed.YearDay() == now.YearDay() {
		return parsed.Format("today at 15:04")
	}
	return parsed.Format("02.01. at 15:04")
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
