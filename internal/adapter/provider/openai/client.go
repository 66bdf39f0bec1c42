// Package openai adapts the OpenAI API (chat completions and embeddings)
// to the provider-neutral types.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

// Options configures a Client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Dimensions     int
	Temperature    float64
	// MaxRetries overrides the SDK retry count; negative keeps the SDK default.
	MaxRetries int
}

// Client calls OpenAI chat completions and embeddings.
type Client struct {
	client         openai.Client
	model          string
	embeddingModel string
	dimensions     int
	temperature    float64
	log            *slog.Logger
}

// New creates a Client.
func New(opts Options, logger *slog.Logger) *Client {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	return &Client{
		client:         openai.NewClient(reqOpts...),
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		dimensions:     opts.Dimensions,
		temperature:    opts.Temperature,
		log:            logger.With("adapter", "openai"),
	}
}

// Model returns the chat model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends a chat completion request. When req.ResponseSchema is set the
// model is constrained to strict JSON schema output.
func (c *Client) Complete(ctx context.Context, req provider.ChatRequest) (provider.ChatResult, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = openai.Float(temperature)
	if s := req.ResponseSchema; s != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        s.Name,
					Description: openai.String(s.Description),
					Schema:      s.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return provider.ChatResult{}, fmt.Errorf("openai chat: %w: %w", domain.ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return provider.ChatResult{}, fmt.Errorf("openai chat: %w: empty choices", domain.ErrUpstream)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return provider.ChatResult{}, fmt.Errorf("openai chat: %w: refused: %s", domain.ErrUpstream, msg.Refusal)
	}

	c.log.DebugContext(ctx, "openai chat completion",
		slog.String("model", resp.Model),
		slog.Int64("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("latency", time.Since(start)),
	)

	return provider.ChatResult{
		Text:         msg.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(c.embeddingModel),
	}
	if c.dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w: %w", domain.ErrUpstream, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: %w: got %d vectors for %d inputs", domain.ErrUpstream, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embeddings: %w: index %d out of range", domain.ErrUpstream, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
