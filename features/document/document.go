package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anla-124/pdf-searcher/internal/config"
	"github.com/anla-124/pdf-searcher/internal/middleware"
	"github.com/anla-124/pdf-searcher/internal/worker"
)

type Document struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Status             string    `json:"status"` // processing, completed
	TotalChars         int       `json:"total_chars"`
	EmbeddedChunkCount int       `json:"embedded_chunk_count"`
	CreatedAt          time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// CleanupEnqueuer hands deleted documents to the vector cleanup worker.
type CleanupEnqueuer interface {
	Enqueue(documentID string, vectorIDs []string)
}

type Service struct {
	repo    Repository
	pub     EventPublisher
	cleanup CleanupEnqueuer
}

func NewService(repo Repository, pub EventPublisher, cleanup CleanupEnqueuer) *Service {
	return &Service{repo: repo, pub: pub, cleanup: cleanup}
}

// Create persists the document row and publishes one embed event per chunk.
// Embedding happens asynchronously; the document stays in processing until
// the last chunk lands.
func (s *Service) Create(ctx context.Context, doc *Document, chunks []string) error {
	doc.Status = "processing"
	doc.TotalChars = 0
	for _, c := range chunks {
		doc.TotalChars += len(c)
	}

	if err := s.repo.Save(ctx, doc); err != nil {
		return err
	}

	for i, content := range chunks {
		payload, _ := json.Marshal(worker.ChunkEmbedPayload{
			DocumentID:    doc.ID,
			ChunkIndex:    i,
			TotalChunks:   len(chunks),
			Content:       content,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
		if err := s.pub.Publish(config.TopicDocumentEmbed, payload); err != nil {
			return fmt.Errorf("failed to publish embed event for chunk %d: %w", i, err)
		}
	}
	slog.InfoContext(ctx, "document queued for embedding", "id", doc.ID, "chunks", len(chunks))

	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete soft-deletes the row, then hands vector removal off asynchronously:
// a delete event for other consumers plus a direct enqueue on the local
// cleanup worker. Vector removal never blocks or fails the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	payload, _ := json.Marshal(worker.DocumentDeletePayload{
		DocumentID:    id,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicDocumentDelete, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish document.delete event", "error", err, "id", id)
	}

	if s.cleanup != nil {
		s.cleanup.Enqueue(id, nil)
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
