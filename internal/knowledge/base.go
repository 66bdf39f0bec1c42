// Package knowledge maintains the vocabulary knowledge base: documents are
// downloaded, split into chunks, embedded and stored for similarity search.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

type chunkStore interface {
	GetSource(ctx context.Context, url string) (domain.KnowledgeSource, error)
	CreateSource(ctx context.Context, src domain.KnowledgeSource) error
	DeleteSource(ctx context.Context, url string) error
	InsertChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error
	Search(ctx context.Context, embedding []float32, limit int) ([]domain.KnowledgeHit, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type documentLoader interface {
	Load(ctx context.Context, url string) ([]provider.DocumentPage, error)
}

type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures a Base.
type Options struct {
	Sources      []string
	AssumeLoaded bool
	Recreate     bool
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Concurrency  int
	MinScore     float64
}

// Base is the knowledge base. It is safe for concurrent use.
type Base struct {
	log      *slog.Logger
	store    chunkStore
	tx       txManager
	loader   documentLoader
	embedder embedder
	opts     Options

	loadMu sync.Mutex
	loaded atomic.Bool
}

// NewBase creates a Base.
func NewBase(log *slog.Logger, store chunkStore, tx txManager, loader documentLoader, emb embedder, opts Options) *Base {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Base{
		log:      log.With("service", "knowledge"),
		store:    store,
		tx:       tx,
		loader:   loader,
		embedder: emb,
		opts:     opts,
	}
}

// Loaded reports whether EnsureLoaded has completed in this process.
func (b *Base) Loaded() bool { return b.loaded.Load() }

// EnsureLoaded makes sure every configured source is ingested. Sources with an
// ingestion record are skipped unless Recreate is set. Calling it again after
// success is a no-op.
func (b *Base) EnsureLoaded(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	if b.loaded.Load() {
		return nil
	}

	if b.opts.AssumeLoaded {
		b.log.InfoContext(ctx, "knowledge base assumed loaded, skipping ingestion")
		b.loaded.Store(true)
		return nil
	}

	for _, url := range b.opts.Sources {
		if !b.opts.Recreate {
			src, err := b.store.GetSource(ctx, url)
			switch {
			case err == nil:
				b.log.InfoContext(ctx, "knowledge source already loaded",
					slog.String("url", url),
					slog.Int("chunks", src.ChunkCount),
					slog.Time("loaded_at", src.LoadedAt),
				)
				continue
			case !errors.Is(err, domain.ErrNotFound):
				return fmt.Errorf("check knowledge source %s: %w", url, err)
			}
		}

		if _, err := b.Load(ctx, url); err != nil {
			return err
		}
	}

	b.loaded.Store(true)
	return nil
}

// Reload ingests every configured source again, replacing stored chunks.
func (b *Base) Reload(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	for _, url := range b.opts.Sources {
		if _, err := b.Load(ctx, url); err != nil {
			return err
		}
	}

	b.loaded.Store(true)
	return nil
}

// Load downloads, chunks and embeds the document at url and replaces its
// stored chunks atomically. It returns the number of chunks stored.
func (b *Base) Load(ctx context.Context, url string) (int, error) {
	start := time.Now()

	pages, err := b.loader.Load(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("load document %s: %w", url, err)
	}

	chunks := b.chunk(url, pages)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("load document %s: no text extracted", url)
	}

	if err := b.embedChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("embed document %s: %w", url, err)
	}

	err = b.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := b.store.DeleteSource(ctx, url); err != nil {
			return err
		}
		if err := b.store.CreateSource(ctx, domain.KnowledgeSource{
			URL:        url,
			ChunkCount: len(chunks),
			LoadedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		return b.store.InsertChunks(ctx, chunks)
	})
	if err != nil {
		return 0, fmt.Errorf("store document %s: %w", url, err)
	}

	b.log.InfoContext(ctx, "knowledge source loaded",
		slog.String("url", url),
		slog.Int("pages", len(pages)),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)),
	)

	return len(chunks), nil
}

// Search returns chunks relevant to query with similarity at least MinScore.
func (b *Base) Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	vecs, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors, want 1", len(vecs))
	}

	hits, err := b.store.Search(ctx, vecs[0], limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}

	filtered := hits[:0]
	for _, h := range hits {
		if h.Similarity >= b.opts.MinScore {
			filtered = append(filtered, h)
		}
	}

	b.log.DebugContext(ctx, "knowledge search",
		slog.Int("hits", len(hits)),
		slog.Int("kept", len(filtered)),
	)

	return filtered, nil
}

func (b *Base) chunk(url string, pages []provider.DocumentPage) []domain.KnowledgeChunk {
	var chunks []domain.KnowledgeChunk
	for _, p := range pages {
		for _, text := range Split(p.Text, b.opts.ChunkSize, b.opts.ChunkOverlap) {
			chunks = append(chunks, domain.KnowledgeChunk{
				ID:         uuid.New(),
				SourceURL:  url,
				ChunkIndex: len(chunks),
				Page:       p.Number,
				Content:    text,
			})
		}
	}
	return chunks
}

// embedChunks fills in embeddings, running up to Concurrency batches at once.
func (b *Base) embedChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)

	for start := 0; start < len(chunks); start += b.opts.BatchSize {
		batch := chunks[start:min(start+b.opts.BatchSize, len(chunks))]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}

			vecs, err := b.embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("got %d embeddings for %d chunks", len(vecs), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vecs[i]
			}
			return nil
		})
	}

	return g.Wait()
}
