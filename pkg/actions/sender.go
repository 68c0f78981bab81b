package actions

import (
	"context"

	"github.com/drivemail/drivemail/pkg/mail"
)

// Sender dispatches a previously created draft. It consumes the artifact id
// resolved by the dialogue manager and reports success only after the
// transport confirmed the send; a false "sent" is the one answer this
// handler must never give.
type Sender struct{}

var _ Handler = (*Sender)(nil)

func (s *Sender) Execute(ctx context.Context, transport mail.Transport, req Request) Outcome {
	if req.ArtifactID == "" {
		return Errorf("no draft found to send, please compose one first")
	}

	sent, err := transport.Send(ctx, req.ArtifactID)
	if err != nil {
		return Errorf("sending email: %v", err)
	}

	return Outcome{
		Status:  StatusSuccess,
		Message: "Email sent successfully.",
		Data:    map[string]any{"message_id": sent.ID},
	}
}
