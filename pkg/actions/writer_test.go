package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/drivemail/drivemail/pkg/mail"
)

func TestWriterMissingFields(t *testing.T) {
	w := &Writer{gen: &fakeGenerator{}, contextLimit: 3}

	out := w.Execute(context.Background(), &fakeTransport{}, Request{
		Slots: map[string]string{"recipient": "anna@example.com"},
	})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
}

func TestWriterCreatesDraft(t *testing.T) {
	transport := &fakeTransport{draftID: "draft-7"}
	w := &Writer{gen: &fakeGenerator{text: "Hi Anna,\n\nsee you at noon.\n\nBest"}, contextLimit: 3}

	out := w.Execute(context.Background(), transport, Request{
		Slots: map[string]string{
			"recipient": "anna@example.com",
			"subject":   "Lunch",
			"body":      "tell her I'll be there at noon",
		},
	})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", out.Status, out.Message)
	}
	if transport.gotDraft.Recipient != "anna@example.com" || transport.gotDraft.Subject != "Lunch" {
		t.Errorf("draft = %+v", transport.gotDraft)
	}
	if out.Data["draft_id"] != "draft-7" {
		t.Errorf("data = %+v", out.Data)
	}
	if out.Data["action_needed"] != "confirm_send" {
		t.Errorf("draft outcome must point at the send confirmation, got %+v", out.Data)
	}
	if !strings.Contains(out.Message, "Shall I send it?") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestWriterResolvesBareNameFromHistory(t *testing.T) {
	transport := &fakeTransport{
		draftID: "draft-8",
		messages: []mail.Message{
			{Sender: "Anna Schmidt <anna@example.com>", Subject: "Re: Lunch"},
		},
	}
	w := &Writer{gen: &fakeGenerator{text: "Hi Anna"}, contextLimit: 3}

	out := w.Execute(context.Background(), transport, Request{
		Slots: map[string]string{"recipient": "Anna", "subject": "Lunch", "body": "say hi"},
	})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", out.Status, out.Message)
	}
	if transport.gotDraft.Recipient != "anna@example.com" {
		t.Errorf("resolved recipient = %q, want anna@example.com", transport.gotDraft.Recipient)
	}
}

func TestWriterUnresolvableRecipient(t *testing.T) {
	// Name with no history and no address: refuse instead of inventing one.
	transport := &fakeTransport{}
	w := &Writer{gen: &fakeGenerator{text: "Hi"}, contextLimit: 3}

	out := w.Execute(context.Background(), transport, Request{
		Slots: map[string]string{"recipient": "Anna", "subject": "Lunch", "body": "say hi"},
	})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
	if transport.gotDraft.Recipient != "" {
		t.Error("no draft may be created for an unresolved recipient")
	}
}

func TestWriterGeneratorFailure(t *testing.T) {
	transport := &fakeTransport{}
	w := &Writer{gen: &fakeGenerator{err: errors.New("model down")}, contextLimit: 3}

	out := w.Execute(context.Background(), transport, Request{
		Slots: map[string]string{"recipient": "anna@example.com", "subject": "Lunch", "body": "say hi"},
	})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
}

func TestWriterHistoryPreviewTruncatesOnRuneBoundary(t *testing.T) {
	// A history body whose preview cap lands inside a multi-byte rune must
	// not leak broken UTF-8 into the generation prompt.
	transport := &fakeTransport{
		draftID: "draft-9",
		messages: []mail.Message{
			{Sender: "Anna <anna@example.com>", Subject: "Grüße", Body: "x" + strings.Repeat("ä", 300)},
		},
	}
	gen := &fakeGenerator{text: "Hi Anna"}
	w := &Writer{gen: gen, contextLimit: 3}

	out := w.Execute(context.Background(), transport, Request{
		Slots: map[string]string{"recipient": "anna@example.com", "subject": "Lunch", "body": "say hi"},
	})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", out.Status, out.Message)
	}
	if !utf8.ValidString(gen.prompt) {
		t.Error("generation prompt contains invalid UTF-8")
	}
}

func TestResolveRecipient(t *testing.T) {
	history := []mail.Message{
		{Sender: "Anna Schmidt <anna@example.com>"},
	}
	tests := []struct {
		recipient string
		history   []mail.Message
		want      string
	}{
		{"bob@example.com", nil, "bob@example.com"},
		{"Anna", history, "anna@example.com"},
		{"Anna", nil, "Anna"},
	}
	for _, tt := range tests {
		if got := resolveRecipient(tt.recipient, tt.history); got != tt.want {
			t.Errorf("resolveRecipient(%q) = %q, want %q", tt.recipient, got, tt.want)
		}
	}
}
