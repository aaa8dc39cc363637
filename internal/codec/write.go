package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/philipexavier/proxy-rasa/internal/types"
)

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response.write.failed", "status", status, "error", err)
	}
}

// WriteError writes an OpenAI-format error response.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	slog.Error("request failed", "status", status, "type", errType, "error", message)
	WriteJSON(w, status, types.ErrorResponse{Error: types.ErrorDetail{Message: message, Type: errType}})
}

// WriteSSEHeaders prepares w for a server-sent event stream.
func WriteSSEHeaders(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(status)
}

// WriteStream replays a complete response as a chat.completion.chunk
// stream: one chunk with the whole content, a stop chunk and [DONE].
func WriteStream(w http.ResponseWriter, resp types.ChatCompletionResponse) error {
	WriteSSEHeaders(w, http.StatusOK)

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.ContentString()
	}
	chunks := []types.ChatCompletionChunk{
		{
			ID:      resp.ID,
			Object:  objectChunk,
			Created: resp.Created,
			Model:   resp.Model,
			Choices: []types.ChatChunkChoice{{
				Index: 0,
				Delta: types.ChatDelta{Role: roleAssistant, Content: content},
			}},
		},
		{
			ID:      resp.ID,
			Object:  objectChunk,
			Created: resp.Created,
			Model:   resp.Model,
			Choices: []types.ChatChunkChoice{{
				Index:        0,
				Delta:        types.ChatDelta{},
				FinishReason: types.StringPtr(finishStop),
			}},
		},
	}

	rc := http.NewResponseController(w)
	for _, chunk := range chunks {
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("failed to encode chunk: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && err != http.ErrNotSupported {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil && err != http.ErrNotSupported {
		return err
	}
	return nil
}
