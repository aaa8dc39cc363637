package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/philipexavier/proxy-rasa/internal/session"
	"github.com/philipexavier/proxy-rasa/internal/types"
)

// RequestError is a client error detected before any backend call.
type RequestError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Type, e.Message)
}

func invalid(format string, args ...any) *RequestError {
	return &RequestError{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf(format, args...),
		Type:       types.ErrInvalidRequest,
	}
}

// Request is a validated chat completion request.
type Request struct {
	Model          string
	Messages       []types.ChatMessage
	ConversationID string
	Metadata       map[string]any
	Stream         bool
}

var allowedRoles = map[string]struct{}{
	types.RoleSystem:    {},
	types.RoleUser:      {},
	types.RoleAssistant: {},
}

// Validate decodes and checks a raw request body.
func Validate(body []byte) (*Request, *RequestError) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, invalid("Invalid JSON body")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("Request body must be a JSON object")
	}

	model, ok := obj["model"].(string)
	if !ok || strings.TrimSpace(model) == "" {
		return nil, invalid("Missing or invalid model")
	}

	list, ok := obj["messages"].([]any)
	if !ok {
		return nil, invalid("messages must be an array")
	}
	if len(list) == 0 {
		return nil, invalid("messages must not be empty")
	}

	messages := make([]types.ChatMessage, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("messages[%d] must be an object", i)
		}
		role, _ := m["role"].(string)
		if _, ok := allowedRoles[role]; !ok {
			return nil, invalid("messages[%d].role must be one of system, user, assistant", i)
		}
		switch m["content"].(type) {
		case nil, string, map[string]any, []any:
		default:
			return nil, invalid("messages[%d].content must be a string, object, array or null", i)
		}
		messages = append(messages, types.ChatMessage{Role: role, Content: m["content"]})
	}

	req := &Request{
		Model:          strings.TrimSpace(model),
		Messages:       messages,
		ConversationID: session.LookupConversationID(obj),
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		req.Metadata = meta
	}
	if stream, ok := obj["stream"].(bool); ok {
		req.Stream = stream
	}
	return req, nil
}
