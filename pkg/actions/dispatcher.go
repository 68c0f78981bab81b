package actions

import (
	"context"
	"log/slog"

	"github.com/drivemail/drivemail/pkg/classifier"
	"github.com/drivemail/drivemail/pkg/events"
	"github.com/drivemail/drivemail/pkg/mail"
	"github.com/drivemail/drivemail/pkg/store"
)

// CredentialSource resolves a user's mail credential.
type CredentialSource interface {
	GetCredential(ctx context.Context, userID string) (*store.Credential, error)
}

// Config tunes handler defaults.
type Config struct {
	ReadDefaultLimit    int
	SummaryDefaultLimit int
	MailContextLimit    int
}

// Dispatcher routes a completed intent to exactly one handler and
// normalizes the result. The intent-to-handler mapping is fixed and closed.
type Dispatcher struct {
	handlers   map[string]Handler
	creds      CredentialSource
	transports mail.Factory
	publisher  *events.Publisher
}

// NewDispatcher creates a dispatcher with the standard handler set.
func NewDispatcher(creds CredentialSource, transports mail.Factory, gen classifier.Generator, pub *events.Publisher, cfg Config) *Dispatcher {
	if cfg.ReadDefaultLimit <= 0 {
		cfg.ReadDefaultLimit = 5
	}
	if cfg.SummaryDefaultLimit <= 0 {
		cfg.SummaryDefaultLimit = 3
	}
	if cfg.MailContextLimit <= 0 {
		cfg.MailContextLimit = 3
	}

	return &Dispatcher{
		handlers: map[string]Handler{
			"read_emails":      &Reader{gen: gen, defaultLimit: cfg.ReadDefaultLimit},
			"summarize_emails": &Summarizer{gen: gen, defaultLimit: cfg.SummaryDefaultLimit},
			"send_email":       &Writer{gen: gen, contextLimit: cfg.MailContextLimit},
			"confirm_send":     &Sender{},
		},
		creds:      creds,
		transports: transports,
		publisher:  pub,
	}
}

// Dispatch executes the handler for the request's intent. It always returns
// a structured outcome; errors never escape as panics or Go errors.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	cred, err := d.creds.GetCredential(ctx, req.UserID)
	if err != nil {
		return Errorf("looking up credentials: %v", err)
	}
	if cred == nil {
		return Errorf("no mail credentials found, please connect your mailbox first")
	}

	handler, ok := d.handlers[req.Intent]
	if !ok {
		return Errorf("no handler for intent %q", req.Intent)
	}

	transport := d.transports(cred.AccessToken)
	outcome := handler.Execute(ctx, transport, req)

	slog.InfoContext(ctx, "intent dispatched",
		slog.String("intent", req.Intent),
		slog.String("conversation_id", req.ConversationID),
		slog.String("status", string(outcome.Status)),
	)
	if d.publisher != nil {
		_ = d.publisher.Emit(ctx, events.TaskDispatched, req.ConversationID, &events.TaskDispatchedData{
			Intent: req.Intent,
			Status: string(outcome.Status),
		})
	}

	return outcome
}
