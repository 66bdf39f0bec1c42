// Package knowledge implements the knowledge chunk store on PostgreSQL with
// the pgvector extension.
package knowledge

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres"
	"github.com/heartmarshall/dutchstory-backend/internal/domain"
)

const (
	sourcesTable = "knowledge_sources"
	chunksTable  = "knowledge_chunks"

	// insertBatchRows keeps multi-row inserts well below the 65535 bind parameter limit.
	insertBatchRows = 500
)

// Repo provides knowledge persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new knowledge repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Sources
// ---------------------------------------------------------------------------

// GetSource returns the ingestion record for url, or domain.ErrNotFound.
func (r *Repo) GetSource(ctx context.Context, url string) (domain.KnowledgeSource, error) {
	query, args, err := postgres.Builder().
		Select("url", "chunk_count", "loaded_at").
		From(sourcesTable).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return domain.KnowledgeSource{}, fmt.Errorf("build get source: %w", err)
	}

	var src domain.KnowledgeSource
	err = postgres.QuerierFromCtx(ctx, r.pool).
		QueryRow(ctx, query, args...).
		Scan(&src.URL, &src.ChunkCount, &src.LoadedAt)
	if err != nil {
		return domain.KnowledgeSource{}, postgres.MapError(err, "knowledge_source", url)
	}

	return src, nil
}

// CreateSource inserts the ingestion record for a source.
func (r *Repo) CreateSource(ctx context.Context, src domain.KnowledgeSource) error {
	loadedAt := src.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = time.Now().UTC()
	}

	query, args, err := postgres.Builder().
		Insert(sourcesTable).
		Columns("url", "chunk_count", "loaded_at").
		Values(src.URL, src.ChunkCount, loadedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create source: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "knowledge_source", src.URL)
	}
	return nil
}

// DeleteSource removes a source and, by cascade, all of its chunks.
// Deleting an unknown source is not an error.
func (r *Repo) DeleteSource(ctx context.Context, url string) error {
	query, args, err := postgres.Builder().
		Delete(sourcesTable).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete source: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "knowledge_source", url)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Chunks
// ---------------------------------------------------------------------------

// InsertChunks stores chunks in multi-row batches. The owning source row must
// already exist.
func (r *Repo) InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	for start := 0; start < len(chunks); start += insertBatchRows {
		end := min(start+insertBatchRows, len(chunks))

		insert := postgres.Builder().
			Insert(chunksTable).
			Columns("id", "source_url", "chunk_index", "page", "content", "embedding")
		for _, c := range chunks[start:end] {
			insert = insert.Values(c.ID, c.SourceURL, c.ChunkIndex, c.Page, c.Content,
				sq.Expr("?::vector", postgres.VectorLiteral(c.Embedding)))
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build insert chunks: %w", err)
		}

		if _, err := q.Exec(ctx, query, args...); err != nil {
			return postgres.MapError(err, "knowledge_chunk", chunks[start].SourceURL)
		}
	}

	return nil
}

// Search returns the limit chunks closest to embedding by cosine distance.
// Similarity is 1 - distance.
func (r *Repo) Search(ctx context.Context, embedding []float32, limit int) ([]domain.KnowledgeHit, error) {
	if limit <= 0 {
		return []domain.KnowledgeHit{}, nil
	}

	vec := postgres.VectorLiteral(embedding)
	query, args, err := postgres.Builder().
		Select("source_url", "page", "content").
		Column(sq.Expr("1 - (embedding <=> ?::vector) AS similarity", vec)).
		From(chunksTable).
		OrderByClause("embedding <=> ?::vector", vec).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "knowledge_chunk", "search")
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.KnowledgeHit, error) {
		var h domain.KnowledgeHit
		err := row.Scan(&h.SourceURL, &h.Page, &h.Content, &h.Similarity)
		return h, err
	})
	if err != nil {
		return nil, postgres.MapError(err, "knowledge_chunk", "search")
	}

	return hits, nil
}

// CountChunks returns the number of stored chunks across all sources.
func (r *Repo) CountChunks(ctx context.Context) (int, error) {
	query, args, err := postgres.Builder().
		Select("count(*)").
		From(chunksTable).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count chunks: %w", err)
	}

	var n int
	if err := postgres.QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(err, "knowledge_chunk", "count")
	}
	return n, nil
}
