package types

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// --- Request types ---

// ChatMessage represents an OpenAI chat message. Content is a string, a
// structured object, or a list of content fragments.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content,omitempty"`
}

// Message roles accepted on input.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// --- Response types ---

// ChatCompletionResponse represents a non-streaming chat completion response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice is a single choice in a non-streaming response.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ChatResponseMsg `json:"message"`
	FinishReason *string         `json:"finish_reason"`
}

// ChatResponseMsg is the message in a non-streaming response choice.
// Content is either a string or a json.RawMessage holding an object.
type ChatResponseMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentString returns the message content as text. Object content is
// returned as its JSON encoding.
func (m ChatResponseMsg) ContentString() string {
	switch v := m.Content.(type) {
	case string:
		return v
	case json.RawMessage:
		return string(v)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			slog.Error("message.content.encode.failed", "content_type", fmt.Sprintf("%T", v), "error", err)
			return ""
		}
		return string(b)
	}
}

// ChatCompletionChunk represents a streaming chat completion chunk.
type ChatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
}

// ChatChunkChoice is a single choice in a streaming chunk.
type ChatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

// ChatDelta holds the delta content in a streaming chunk choice.
type ChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ModelList is the response for GET /v1/models.
type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ModelObject represents a single model entry.
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// Error types used in ErrorDetail.Type.
const (
	ErrInvalidRequest = "invalid_request_error"
	ErrAuthentication = "authentication_error"
	ErrInternal       = "internal_error"
)

// ErrorResponse wraps an API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail holds the error message.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
