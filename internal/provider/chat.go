// Package provider holds the provider-neutral request and result types
// exchanged between services and the external adapters.
package provider

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    Role
	Content string
}

// ResponseSchema asks the model for JSON matching Schema.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      any
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	System    string
	Messages  []ChatMessage
	MaxTokens int
	// Temperature is optional; nil keeps the adapter default.
	Temperature *float64
	// ResponseSchema is optional; when set the reply is a JSON document.
	ResponseSchema *ResponseSchema
}

// ChatResult is the model reply.
type ChatResult struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}
