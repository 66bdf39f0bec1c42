// Package tutor generates Dutch learning paragraphs with a three-stage model
// pipeline: vocabulary search, story writing and coordination.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

const (
	stageSearcher    = "searcher"
	stageWriter      = "writer"
	stageCoordinator = "coordinator"

	coordinatorTemperature = 0.2
)

type chatModel interface {
	Complete(ctx context.Context, req provider.ChatRequest) (provider.ChatResult, error)
}

type knowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error)
}

type webSearcher interface {
	Search(ctx context.Context, query string) ([]provider.SearchResult, error)
}

// Config tunes retrieval and generation.
type Config struct {
	KnowledgeLimit int
	// MinKnowledgeHits below which the web search runs.
	MinKnowledgeHits int
	MaxTokens        int
}

// Service runs the learning paragraph pipeline.
type Service struct {
	log       *slog.Logger
	chat      chatModel
	knowledge knowledgeSearcher
	web       webSearcher
	cfg       Config
	schema    *provider.ResponseSchema
}

// NewService creates a tutor service. web may be nil to disable web search.
func NewService(log *slog.Logger, chat chatModel, knowledge knowledgeSearcher, web webSearcher, cfg Config) *Service {
	return &Service{
		log:       log.With("service", "tutor"),
		chat:      chat,
		knowledge: knowledge,
		web:       web,
		cfg:       cfg,
		schema:    paragraphSchema(),
	}
}

// Ask produces a learning paragraph for a free-text request such as
// "Tell me a story about a cat in Dutch. I am a beginner."
func (s *Service) Ask(ctx context.Context, query string) (*domain.LearningParagraph, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "required")
	}

	start := time.Now()

	vocabulary, err := s.findVocabulary(ctx, query)
	if err != nil {
		return nil, err
	}

	story, err := s.writeStory(ctx, query, vocabulary)
	if err != nil {
		return nil, err
	}

	paragraph, err := s.compile(ctx, query, vocabulary, story)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "paragraph generated",
		slog.String("topic", paragraph.Topic),
		slog.String("level", paragraph.Level.String()),
		slog.Int("vocabulary", len(paragraph.Vocabulary)),
		slog.Duration("duration", time.Since(start)),
	)

	return paragraph, nil
}

// findVocabulary runs the searcher stage. Knowledge base and web search
// failures degrade the context instead of failing the request.
func (s *Service) findVocabulary(ctx context.Context, query string) (string, error) {
	var hits []domain.KnowledgeHit
	if s.knowledge != nil {
		var err error
		hits, err = s.knowledge.Search(ctx, query, s.cfg.KnowledgeLimit)
		if err != nil {
			s.log.WarnContext(ctx, "knowledge search failed", slog.String("error", err.Error()))
			hits = nil
		}
	}

	var results []provider.SearchResult
	if s.web != nil && len(hits) < s.cfg.MinKnowledgeHits {
		var err error
		results, err = s.web.Search(ctx, "Dutch vocabulary "+query)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%s: %w", stageSearcher, ctx.Err())
			}
			s.log.WarnContext(ctx, "web search failed", slog.String("error", err.Error()))
		}
	}

	s.log.DebugContext(ctx, "searcher context",
		slog.Int("knowledge_hits", len(hits)),
		slog.Int("web_results", len(results)),
	)

	return s.complete(ctx, stageSearcher, provider.ChatRequest{
		System:   searcherInstructions,
		Messages: []provider.ChatMessage{{Role: provider.RoleUser, Content: searcherPrompt(query, hits, results)}},
	})
}

func (s *Service) writeStory(ctx context.Context, query, vocabulary string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nVocabulary:\n%s", query, vocabulary)

	return s.complete(ctx, stageWriter, provider.ChatRequest{
		System:   writerInstructions,
		Messages: []provider.ChatMessage{{Role: provider.RoleUser, Content: b.String()}},
	})
}

func (s *Service) compile(ctx context.Context, query, vocabulary, story string) (*domain.LearningParagraph, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n\nVocabulary from the Searcher:\n%s\n\nStory from the Writer:\n%s", query, vocabulary, story)

	temperature := coordinatorTemperature
	out, err := s.complete(ctx, stageCoordinator, provider.ChatRequest{
		System:         coordinatorInstructions,
		Messages:       []provider.ChatMessage{{Role: provider.RoleUser, Content: b.String()}},
		Temperature:    &temperature,
		ResponseSchema: s.schema,
	})
	if err != nil {
		return nil, err
	}

	paragraph, err := parseParagraph(out)
	if err != nil {
		s.log.WarnContext(ctx, "coordinator output rejected", slog.String("error", err.Error()))
		return nil, err
	}

	if !paragraph.Level.IsValid() {
		s.log.WarnContext(ctx, "unexpected level", slog.String("level", paragraph.Level.String()))
	}

	return paragraph, nil
}

// complete runs one model call and logs its usage.
func (s *Service) complete(ctx context.Context, stage string, req provider.ChatRequest) (string, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = s.cfg.MaxTokens
	}

	start := time.Now()
	res, err := s.chat.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	s.log.InfoContext(ctx, "stage complete",
		slog.String("stage", stage),
		slog.String("model", res.Model),
		slog.Int("input_tokens", res.InputTokens),
		slog.Int("output_tokens", res.OutputTokens),
		slog.Duration("latency", time.Since(start)),
	)

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("%s: %w: empty response", stage, domain.ErrUpstream)
	}
	return text, nil
}

// parseParagraph decodes, normalizes and validates coordinator output.
func parseParagraph(raw string) (*domain.LearningParagraph, error) {
	var p domain.LearningParagraph
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, &domain.SchemaViolationError{Violations: []domain.FieldError{
			{Field: "response", Message: "invalid JSON: " + err.Error()},
		}}
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func searcherPrompt(query string, hits []domain.KnowledgeHit, results []provider.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", query)

	if len(hits) > 0 {
		b.WriteString("\nKnowledge base excerpts:\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "- (page %d) %s\n", h.Page, h.Content)
		}
	}

	if len(results) > 0 {
		b.WriteString("\nWeb search results:\n")
		for _, r := range results {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", r.Title, r.Snippet, r.URL)
		}
	}

	if len(hits) == 0 && len(results) == 0 {
		b.WriteString("\nNo reference material was found. Use your own knowledge of Dutch.\n")
	}

	return b.String()
}
