package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pitabwire/util"
)

// AuditSubscriber implements queue.SubscribeWorker and writes every event
// envelope to the structured log, giving operators a replayable audit trail
// of turn processing without a separate consumer service.
type AuditSubscriber struct{}

// Handle is called by frame's pub/sub for each event message.
func (s *AuditSubscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("audit subscriber: unmarshal envelope")
		return err
	}

	slog.InfoContext(ctx, "event",
		slog.String("event_id", env.ID),
		slog.String("type", string(env.Type)),
		slog.String("source", env.Source),
		slog.String("conversation_id", env.ConversationID),
		slog.String("data", string(env.Data)),
	)
	return nil
}
