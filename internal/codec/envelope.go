// Package codec builds and writes the OpenAI-compatible wire responses.
package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/philipexavier/proxy-rasa/internal/config"
	"github.com/philipexavier/proxy-rasa/internal/types"
)

// SerializationErrorResponse replaces content that cannot be encoded.
const SerializationErrorResponse = "Erro ao serializar resposta."

const (
	objectCompletion = "chat.completion"
	objectChunk      = "chat.completion.chunk"
	roleAssistant    = "assistant"
	finishStop       = "stop"
)

var fallbackContent = mustMarshal(types.ChatResult{Response: SerializationErrorResponse})

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// NewCompletionID returns a fresh "chatcmpl-" identifier backed by a random UUID.
func NewCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// BuildEnvelope wraps content in a chat.completion response. Strings are
// embedded as-is; any other value is encoded according to contract.
func BuildEnvelope(content any, model string, contract config.ContentContract) types.ChatCompletionResponse {
	return types.ChatCompletionResponse{
		ID:      NewCompletionID(),
		Object:  objectCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.ChatChoice{{
			Index:        0,
			Message:      types.ChatResponseMsg{Role: roleAssistant, Content: EncodeContent(content, contract)},
			FinishReason: types.StringPtr(finishStop),
		}},
	}
}

// EncodeContent renders content for choices[0].message.content. Under
// ContractObject the result is a json.RawMessage that is emitted verbatim;
// otherwise it is the JSON text as a string. Encoding never fails: on error
// a minimal result carrying SerializationErrorResponse is used instead.
func EncodeContent(content any, contract config.ContentContract) any {
	if s, ok := content.(string); ok {
		return s
	}
	data := fallbackContent
	if content == nil {
		slog.Error("envelope.content.missing")
	} else if b, err := json.Marshal(content); err != nil {
		slog.Error("envelope.serialize.failed", "content_type", fmt.Sprintf("%T", content), "error", err)
	} else {
		data = b
	}
	if contract == config.ContractObject {
		return json.RawMessage(data)
	}
	return string(data)
}
