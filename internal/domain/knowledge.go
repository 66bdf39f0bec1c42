package domain

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeSource is the persisted ingestion record of one document URL.
type KnowledgeSource struct {
	URL        string
	ChunkCount int
	LoadedAt   time.Time
}

// KnowledgeChunk is a piece of ingested document text with its embedding.
type KnowledgeChunk struct {
	ID         uuid.UUID
	SourceURL  string
	ChunkIndex int
	Page       int
	Content    string
	Embedding  []float32
}

// KnowledgeHit is a chunk returned by similarity search.
type KnowledgeHit struct {
	SourceURL  string
	Page       int
	Content    string
	Similarity float64
}
