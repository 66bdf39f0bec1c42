// Package anthropic adapts the Anthropic Messages API to the provider-neutral
// chat types. Structured output is requested through the system prompt and
// the JSON object is extracted from the reply.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

const defaultMaxTokens = 2048

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	// MaxRetries overrides the SDK retry count; negative keeps the SDK default.
	MaxRetries int
}

// Client calls the Anthropic Messages API.
type Client struct {
	client      anthropic.Client
	model       string
	temperature float64
	log         *slog.Logger
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
		client:      anthropic.NewClient(reqOpts...),
		model:       opts.Model,
		temperature: opts.Temperature,
		log:         logger.With("adapter", "anthropic"),
	}
}

// Model returns the chat model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends one Messages API request.
func (c *Client) Complete(ctx context.Context, req provider.ChatRequest) (provider.ChatResult, error) {
	system, err := systemPrompt(req)
	if err != nil {
		return provider.ChatResult{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = anthropic.Float(temperature)

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return provider.ChatResult{}, fmt.Errorf("anthropic messages: %w: %w", domain.ErrUpstream, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return provider.ChatResult{}, fmt.Errorf("anthropic messages: %w: empty response", domain.ErrUpstream)
	}

	out := text.String()
	if req.ResponseSchema != nil {
		if out, err = extractJSON(out); err != nil {
			return provider.ChatResult{}, fmt.Errorf("anthropic messages: %w", err)
		}
	}

	c.log.DebugContext(ctx, "anthropic message",
		slog.String("model", string(msg.Model)),
		slog.Int64("input_tokens", msg.Usage.InputTokens),
		slog.Int64("output_tokens", msg.Usage.OutputTokens),
		slog.Duration("latency", time.Since(start)),
	)

	return provider.ChatResult{
		Text:         out,
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// systemPrompt appends the response schema instructions, if any.
func systemPrompt(req provider.ChatRequest) (string, error) {
	if req.ResponseSchema == nil {
		return req.System, nil
	}

	schemaJSON, err := json.MarshalIndent(req.ResponseSchema.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal response schema: %w", err)
	}

	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Output ONLY a valid JSON object (%s) matching this exact JSON schema, no markdown, no explanations:\n%s",
		req.ResponseSchema.Name, schemaJSON)
	return b.String(), nil
}

// extractJSON finds the outermost JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("%w: no JSON object found in response", domain.ErrSchemaViolation)
	}
	out := s[start : end+1]
	if !json.Valid([]byte(out)) {
		return "", fmt.Errorf("%w: response does not contain valid JSON", domain.ErrSchemaViolation)
	}
	return out, nil
}
