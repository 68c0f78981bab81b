package actions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/drivemail/drivemail/pkg/mail"
	"github.com/drivemail/drivemail/pkg/store"
)

type fakeTransport struct {
	messages []mail.Message
	listErr  error

	draftID    string
	draftErr   error
	gotDraft   mail.Draft
	listQuery  mail.ListQuery
	sent       mail.Message
	sendErr    error
	sentDraft  string
	listCalled bool
}

func (f *fakeTransport) List(_ context.Context, q mail.ListQuery) ([]mail.Message, error) {
	f.listCalled = true
	f.listQuery = q
	return f.messages, f.listErr
}

func (f *fakeTransport) CreateDraft(_ context.Context, d mail.Draft) (string, error) {
	f.gotDraft = d
	return f.draftID, f.draftErr
}

func (f *fakeTransport) Send(_ context.Context, draftID string) (mail.Message, error) {
	f.sentDraft = draftID
	return f.sent, f.sendErr
}

type fakeGenerator struct {
	text   string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

type fakeCreds struct {
	cred *store.Credential
	err  error
}

func (f *fakeCreds) GetCredential(_ context.Context, _ string) (*store.Credential, error) {
	return f.cred, f.err
}

func testCredential() *store.Credential {
	return &store.Credential{UserID: "user-1", AccessToken: "tok-1"}
}

func newTestDispatcher(transport *fakeTransport, creds *fakeCreds, gen *fakeGenerator) *Dispatcher {
	factory := func(accessToken string) mail.Transport { return transport }
	return NewDispatcher(creds, factory, gen, nil, Config{})
}

func TestDispatchMissingCredentials(t *testing.T) {
	d := newTestDispatcher(&fakeTransport{}, &fakeCreds{}, &fakeGenerator{})

	out := d.Dispatch(context.Background(), Request{Intent: "read_emails", UserID: "user-1"})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
	if !strings.Contains(out.Message, "connect your mailbox") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestDispatchCredentialLookupFailure(t *testing.T) {
	d := newTestDispatcher(&fakeTransport{}, &fakeCreds{err: errors.New("db down")}, &fakeGenerator{})

	out := d.Dispatch(context.Background(), Request{Intent: "read_emails", UserID: "user-1"})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
}

func TestDispatchUnknownIntent(t *testing.T) {
	d := newTestDispatcher(&fakeTransport{}, &fakeCreds{cred: testCredential()}, &fakeGenerator{})

	out := d.Dispatch(context.Background(), Request{Intent: "teleport", UserID: "user-1"})
	if out.Status != StatusError {
		t.Fatalf("status = %q, want error", out.Status)
	}
	if !strings.Contains(out.Message, "teleport") {
		t.Errorf("message = %q", out.Message)
	}
}

func TestDispatchRoutesToReader(t *testing.T) {
	transport := &fakeTransport{messages: []mail.Message{
		{ID: "m1", Sender: "Anna <anna@example.com>", Subject: "Lunch", Body: "See you at noon."},
	}}
	gen := &fakeGenerator{text: "Email from Anna. Subject: Lunch. See you at noon."}
	d := newTestDispatcher(transport, &fakeCreds{cred: testCredential()}, gen)

	out := d.Dispatch(context.Background(), Request{
		Intent: "read_emails",
		UserID: "user-1",
		Slots:  map[string]string{"limit": "2"},
	})
	if out.Status != StatusSuccess {
		t.Fatalf("status = %q: %s", out.Status, out.Message)
	}
	if !transport.listCalled {
		t.Fatal("reader must list messages")
	}
	if transport.listQuery.Limit != 2 || !transport.listQuery.IncludeBody {
		t.Errorf("list query = %+v", transport.listQuery)
	}
}
