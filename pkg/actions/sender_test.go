package actions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/drivemail/drivemail/pkg/mail"
)

func TestSenderWithoutArtifact(t *testing.T) {
	s := &Sender{}
	transport := &fakeTransport{}

	out := s.Execute(context.Background(), transport, Request{})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
	if !strings.Contains(out.Message, "no draft found") {
		t.Errorf("message = %q", out.Message)
	}
	if transport.sentDraft != "" {
		t.Error("nothing may be sent without an artifact")
	}
}

func TestSenderSendsDraft(t *testing.T) {
	s := &Sender{}
	transport := &fakeTransport{sent: mail.Message{ID: "msg-9"}}

	out := s.Execute(context.Background(), transport, Request{ArtifactID: "draft-42"})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", out.Status, out.Message)
	}
	if transport.sentDraft != "draft-42" {
		t.Errorf("sent draft = %q, want draft-42", transport.sentDraft)
	}
	if out.Message != "Email sent successfully." {
		t.Errorf("message = %q", out.Message)
	}
	if out.Data["message_id"] != "msg-9" {
		t.Errorf("data = %+v", out.Data)
	}
}

func TestSenderTransportFailure(t *testing.T) {
	// A failed transport call must never read as a successful send.
	s := &Sender{}
	transport := &fakeTransport{sendErr: errors.New("quota exceeded")}

	out := s.Execute(context.Background(), transport, Request{ArtifactID: "draft-42"})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
	if strings.Contains(out.Message, "sent successfully") {
		t.Errorf("message must not claim success: %q", out.Message)
	}
}
