package document_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anla-124/pdf-searcher/features/document"
	"github.com/anla-124/pdf-searcher/internal/similarity"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	doc := &document.Document{
		Title:      "Subscription Agreement",
		Status:     "processing",
		TotalChars: 1200,
	}

	created := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents (title, status, total_chars) VALUES ($1, $2, $3) RETURNING id, created_at")).
		WithArgs(doc.Title, doc.Status, doc.TotalChars).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("doc-1", created))

	err = repo.Save(context.Background(), doc)
	assert.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, created, doc.CreatedAt)
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "title", "status", "total_chars", "embedded_chunk_count", "created_at"}).
			AddRow("doc-1", "Subscription Agreement", "completed", 1200, 3, time.Now())

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, status, total_chars, embedded_chunk_count, created_at FROM documents WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs("doc-1").
			WillReturnRows(rows)

		d, err := repo.Get(context.Background(), "doc-1")
		assert.NoError(t, err)
		assert.Equal(t, "doc-1", d.ID)
		assert.Equal(t, 3, d.EmbeddedChunkCount)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, status, total_chars, embedded_chunk_count, created_at FROM documents WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, similarity.ErrDocumentNotFound)
	})
}

func TestPostgresRepo_SoftDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET deleted_at = NOW() WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.SoftDelete(context.Background(), "doc-1")
	assert.NoError(t, err)
}

func TestPostgresRepo_GetEmbeddingInfo(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "title", "created_at", "centroid", "embedded_chunk_count"}).
		AddRow("doc-1", "Subscription Agreement", time.Now(), "{0.5,0.25}", 2)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at, centroid, embedded_chunk_count FROM documents WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("doc-1").
		WillReturnRows(rows)

	info, err := repo.GetEmbeddingInfo(context.Background(), "doc-1")
	assert.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, info.Centroid)
	assert.Equal(t, 2, info.EmbeddedChunkCount)

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at, centroid, embedded_chunk_count FROM documents WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetEmbeddingInfo(context.Background(), "missing")
		assert.ErrorIs(t, err, similarity.ErrDocumentNotFound)
	})
}

func TestPostgresRepo_GetChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "chunk_index", "content", "char_count", "embedding"}).
		AddRow("c-1", 0, "first chunk", 11, "{1,0}").
		AddRow("c-2", 1, "second chunk", 12, "{0,1}")

	mock.ExpectQuery("FROM chunks c JOIN documents d ON d.id = c.document_id").
		WithArgs("doc-1").
		WillReturnRows(rows)

	chunks, err := repo.GetChunks(context.Background(), "doc-1")
	assert.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, []float32{1, 0}, chunks[0].Embedding)
	assert.Equal(t, "second chunk", chunks[1].Content)
}

func TestPostgresRepo_GetDocumentInfos(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "title", "created_at", "embedded_chunk_count"}).
			AddRow("doc-1", "A", time.Now(), 2).
			AddRow("doc-2", "B", time.Now(), 5)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, created_at, embedded_chunk_count FROM documents WHERE id = ANY($1) AND deleted_at IS NULL")).
			WithArgs(pq.Array([]string{"doc-1", "doc-2"})).
			WillReturnRows(rows)

		infos, err := repo.GetDocumentInfos(context.Background(), []string{"doc-1", "doc-2"})
		assert.NoError(t, err)
		assert.Len(t, infos, 2)
	})

	t.Run("EmptyInputSkipsQuery", func(t *testing.T) {
		infos, err := repo.GetDocumentInfos(context.Background(), nil)
		assert.NoError(t, err)
		assert.Empty(t, infos)
	})
}

func TestPostgresRepo_SaveChunk(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	mock.ExpectExec("INSERT INTO chunks").
		WithArgs("doc-1", 0, "chunk content", 13, pq.Array([]float32{0.1, 0.2})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.SaveChunk(context.Background(), "doc-1", 0, "chunk content", []float32{0.1, 0.2})
	assert.NoError(t, err)
}

func TestPostgresRepo_RefreshEmbedding(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	t.Run("ComputesMeanCentroid", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"embedding"}).
			AddRow("{1,0}").
			AddRow("{0,1}")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT embedding FROM chunks WHERE document_id = $1")).
			WithArgs("doc-1").
			WillReturnRows(rows)
		mock.ExpectExec("UPDATE documents SET centroid").
			WithArgs(pq.Array([]float32{0.5, 0.5}), 2, "doc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.RefreshEmbedding(context.Background(), "doc-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NoChunksFails", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT embedding FROM chunks WHERE document_id = $1")).
			WithArgs("doc-2").
			WillReturnRows(sqlmock.NewRows([]string{"embedding"}))

		err := repo.RefreshEmbedding(context.Background(), "doc-2")
		assert.Error(t, err)
	})
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := document.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE deleted_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, count)
}
