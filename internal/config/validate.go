package config

import (
	"fmt"
	"strings"
)

// embeddingColumnDims is the width of the knowledge_chunks.embedding column.
const embeddingColumnDims = 1536

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.LLM.OpenAIAPIKey == "" {
		return fmt.Errorf("llm.openai_api_key is required (chat or embeddings)")
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("llm.anthropic_api_key is required when provider is anthropic")
		}
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic (got %q)", c.LLM.Provider)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0 (got %d)", c.LLM.MaxTokens)
	}
	if c.LLM.RequestTimeout > 0 && c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.LLM.RequestTimeout {
		return fmt.Errorf("server.write_timeout (%s) must exceed llm.request_timeout (%s)", c.Server.WriteTimeout, c.LLM.RequestTimeout)
	}

	if c.Embedding.Dimensions != embeddingColumnDims {
		return fmt.Errorf("embedding.dimensions must be %d to match the vector column (got %d)", embeddingColumnDims, c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be > 0 (got %d)", c.Embedding.BatchSize)
	}

	if err := c.Knowledge.validate(); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}

	return nil
}

func (k *KnowledgeConfig) validate() error {
	if k.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0 (got %d)", k.ChunkSize)
	}
	if k.ChunkOverlap < 0 || k.ChunkOverlap >= k.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size) (got %d)", k.ChunkOverlap)
	}
	if k.SearchLimit <= 0 {
		return fmt.Errorf("search_limit must be > 0 (got %d)", k.SearchLimit)
	}

	k.Sources = ParseSources(k.SourcesRaw)
	if len(k.Sources) == 0 {
		k.Sources = []string{DefaultKnowledgeURL}
	}
	return nil
}

// ParseSources splits a comma-separated list of document URLs,
// dropping blanks and duplicates. An empty string returns nil.
func ParseSources(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
