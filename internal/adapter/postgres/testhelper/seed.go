package testhelper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dutchstory-backend/internal/adapter/postgres"
	"github.com/heartmarshall/dutchstory-backend/internal/domain"
)

// EmbeddingDimensions matches the vector column width in the migrations.
const EmbeddingDimensions = 1536

// UniqueSourceURL returns a source URL that does not collide between tests.
func UniqueSourceURL() string {
	return "https://example.org/" + uuid.New().String()[:8] + ".pdf"
}

// AxisVector returns a unit vector along axis, so cosine similarity between
// two axis vectors is 1 for the same axis and 0 otherwise.
func AxisVector(axis int) []float32 {
	v := make([]float32, EmbeddingDimensions)
	v[axis%EmbeddingDimensions] = 1
	return v
}

// SeedSource inserts a source with one chunk per axis. Chunk i has content
// "chunk <i>" and embedding AxisVector(axes[i]).
func SeedSource(t *testing.T, pool *pgxpool.Pool, url string, axes ...int) domain.KnowledgeSource {
	t.Helper()
	ctx := context.Background()

	src := domain.KnowledgeSource{
		URL:        url,
		ChunkCount: len(axes),
		LoadedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO knowledge_sources (url, chunk_count, loaded_at) VALUES ($1, $2, $3)`,
		src.URL, src.ChunkCount, src.LoadedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedSource insert source: %v", err)
	}

	for i, axis := range axes {
		_, err := pool.Exec(ctx,
			`INSERT INTO knowledge_chunks (id, source_url, chunk_index, page, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			uuid.New(), url, i, 1, fmt.Sprintf("chunk %d", i), postgres.VectorLiteral(AxisVector(axis)),
		)
		if err != nil {
			t.Fatalf("testhelper: SeedSource insert chunk %d: %v", i, err)
		}
	}

	return src
}
