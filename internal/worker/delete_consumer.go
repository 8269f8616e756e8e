package worker

import (
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"
)

// DeleteConsumer feeds document deletion events into the vector cleanup
// worker. The enqueue is fire-and-forget; retries live in the cleanup
// subsystem, not in the message pipeline.
type DeleteConsumer struct {
	cleanup CleanupEnqueuer
}

func NewDeleteConsumer(c CleanupEnqueuer) *DeleteConsumer {
	return &DeleteConsumer{cleanup: c}
}

func (h *DeleteConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload DocumentDeletePayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.DocumentID == "" {
		slog.Error("poison pill: delete event without document id")
		return nil
	}

	h.cleanup.Enqueue(payload.DocumentID, payload.VectorIDs)
	slog.Info("vector cleanup enqueued", "document_id", payload.DocumentID, "hinted_vectors", len(payload.VectorIDs))
	return nil
}
