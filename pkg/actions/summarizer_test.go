package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/drivemail/drivemail/pkg/mail"
)

func TestSummarizerNoEmails(t *testing.T) {
	s := &Summarizer{gen: &fakeGenerator{}, defaultLimit: 3}

	out := s.Execute(context.Background(), &fakeTransport{}, Request{})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q", out.Status)
	}
	if out.Message != "No emails to summarize." {
		t.Errorf("message = %q", out.Message)
	}
}

func TestSummarizerProducesDigest(t *testing.T) {
	transport := &fakeTransport{messages: []mail.Message{
		{Sender: "anna@example.com", Subject: "Lunch", Body: "Noon?"},
		{Sender: "bob@example.com", Subject: "Report", Snippet: "Attached."},
	}}
	s := &Summarizer{gen: &fakeGenerator{text: "You have 2 new emails. Anna asks about lunch."}, defaultLimit: 3}

	out := s.Execute(context.Background(), transport, Request{})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", out.Status, out.Message)
	}
	if out.Message != "You have 2 new emails. Anna asks about lunch." {
		t.Errorf("message = %q", out.Message)
	}
}

func TestSummarizerGeneratorFailure(t *testing.T) {
	// Unlike reading, a summary without the generator is worthless; fail.
	transport := &fakeTransport{messages: []mail.Message{
		{Sender: "anna@example.com", Subject: "Lunch", Body: "Noon?"},
	}}
	s := &Summarizer{gen: &fakeGenerator{err: errors.New("model down")}, defaultLimit: 3}

	out := s.Execute(context.Background(), transport, Request{})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
}
