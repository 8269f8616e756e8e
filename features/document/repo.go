package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/anla-124/pdf-searcher/internal/similarity"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (title, status, total_chars) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, doc.Title, doc.Status, doc.TotalChars).Scan(&doc.ID, &doc.CreatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	d := &Document{}
	query := `SELECT id, title, status, total_chars, embedded_chunk_count, created_at FROM documents WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Title, &d.Status, &d.TotalChars, &d.EmbeddedChunkCount, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, similarity.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT id, title, status, total_chars, embedded_chunk_count, created_at FROM documents WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Status, &d.TotalChars, &d.EmbeddedChunkCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE documents SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM documents WHERE deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

// GetEmbeddingInfo loads the persisted centroid and effective chunk count
// used as the stage-0 query vector.
func (r *PostgresRepo) GetEmbeddingInfo(ctx context.Context, id string) (*similarity.DocumentInfo, error) {
	info := &similarity.DocumentInfo{}
	var centroid []float32
	query := `SELECT id, title, created_at, centroid, embedded_chunk_count FROM documents WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&info.ID, &info.Title, &info.CreatedAt, pq.Array(&centroid), &info.EmbeddedChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, similarity.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, err
	}
	info.Centroid = centroid
	return info, nil
}

// GetChunks returns the embedded chunk rows of a document ordered by chunk
// index. Chunks of soft-deleted documents are excluded.
func (r *PostgresRepo) GetChunks(ctx context.Context, documentID string) ([]similarity.ChunkData, error) {
	query := `SELECT c.id, c.chunk_index, c.content, c.char_count, c.embedding
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1 AND d.deleted_at IS NULL
		ORDER BY c.chunk_index ASC`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []similarity.ChunkData
	for rows.Next() {
		var c similarity.ChunkData
		var embedding []float32
		if err := rows.Scan(&c.ID, &c.Index, &c.Content, &c.CharCount, pq.Array(&embedding)); err != nil {
			return nil, err
		}
		c.Embedding = embedding
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetDocumentInfos loads result metadata for a set of document ids in one
// round trip.
func (r *PostgresRepo) GetDocumentInfos(ctx context.Context, ids []string) ([]similarity.DocumentInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, title, created_at, embedded_chunk_count FROM documents WHERE id = ANY($1) AND deleted_at IS NULL`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []similarity.DocumentInfo
	for rows.Next() {
		var info similarity.DocumentInfo
		if err := rows.Scan(&info.ID, &info.Title, &info.CreatedAt, &info.EmbeddedChunkCount); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SaveChunk upserts one embedded chunk row. Message redelivery makes the
// write idempotent on (document_id, chunk_index).
func (r *PostgresRepo) SaveChunk(ctx context.Context, documentID string, index int, content string, embedding []float32) error {
	query := `INSERT INTO chunks (document_id, chunk_index, content, char_count, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET content = $3, char_count = $4, embedding = $5`
	_, err := r.db.ExecContext(ctx, query, documentID, index, content, len(content), pq.Array(embedding))
	return err
}

// RefreshEmbedding recomputes the document centroid as the mean of its chunk
// embeddings and marks the document completed.
func (r *PostgresRepo) RefreshEmbedding(ctx context.Context, documentID string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT embedding FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}
	defer rows.Close()

	var centroid []float32
	count := 0
	for rows.Next() {
		var embedding []float32
		if err := rows.Scan(pq.Array(&embedding)); err != nil {
			return err
		}
		if len(embedding) == 0 {
			continue
		}
		if centroid == nil {
			centroid = make([]float32, len(embedding))
		}
		if len(embedding) != len(centroid) {
			return fmt.Errorf("document %s: inconsistent embedding dimensions", documentID)
		}
		for i, v := range embedding {
			centroid[i] += v
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("document %s has no embedded chunks", documentID)
	}
	for i := range centroid {
		centroid[i] /= float32(count)
	}

	query := `UPDATE documents SET centroid = $1, embedded_chunk_count = $2, status = 'completed', updated_at = NOW() WHERE id = $3`
	_, err = r.db.ExecContext(ctx, query, pq.Array(centroid), count, documentID)
	return err
}
