package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/philipexavier/proxy-rasa/internal/config"
	"github.com/philipexavier/proxy-rasa/internal/types"
)

var idPattern = regexp.MustCompile(`^chatcmpl-[0-9a-f]{32}$`)

func TestBuildEnvelopeString(t *testing.T) {
	before := time.Now().Unix()
	env := BuildEnvelope("olá", "rasa-proxy", config.ContractJSONString)

	if !idPattern.MatchString(env.ID) {
		t.Fatalf("id: got %q", env.ID)
	}
	if env.Object != "chat.completion" || env.Model != "rasa-proxy" {
		t.Fatalf("envelope: %+v", env)
	}
	if env.Created < before {
		t.Fatalf("created %d before %d", env.Created, before)
	}
	if len(env.Choices) != 1 {
		t.Fatalf("choices: %d", len(env.Choices))
	}
	c := env.Choices[0]
	if c.Message.Role != "assistant" || c.Message.Content != "olá" {
		t.Fatalf("message: %+v", c.Message)
	}
	if c.FinishReason == nil || *c.FinishReason != "stop" {
		t.Fatalf("finish reason: %v", c.FinishReason)
	}
}

func TestBuildEnvelopeContentContracts(t *testing.T) {
	result := types.AssistantResult{
		Response:         "oi",
		ReplySuggestions: []string{},
		Sources:          []any{},
		Metadata:         map[string]any{},
	}

	t.Run("json-string", func(t *testing.T) {
		env := BuildEnvelope(result, "m", config.ContractJSONString)
		data, err := json.Marshal(env)
		if err != nil {
			t.Fatal(err)
		}
		var wire struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("content should be a JSON string: %v", err)
		}
		var inner map[string]any
		if err := json.Unmarshal([]byte(wire.Choices[0].Message.Content), &inner); err != nil {
			t.Fatalf("content string should hold JSON: %v", err)
		}
		if inner["response"] != "oi" || inner["label"] != "" {
			t.Fatalf("inner: %#v", inner)
		}
	})

	t.Run("object", func(t *testing.T) {
		env := BuildEnvelope(result, "m", config.ContractObject)
		data, err := json.Marshal(env)
		if err != nil {
			t.Fatal(err)
		}
		var wire struct {
			Choices []struct {
				Message struct {
					Content map[string]any `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			t.Fatalf("content should be an object: %v", err)
		}
		got := wire.Choices[0].Message.Content
		if got["response"] != "oi" {
			t.Fatalf("content: %#v", got)
		}
		if s, ok := got["reply_suggestions"].([]any); !ok || len(s) != 0 {
			t.Fatalf("reply_suggestions: %#v", got["reply_suggestions"])
		}
	})

	t.Run("object contract keeps strings", func(t *testing.T) {
		env := BuildEnvelope("plain", "m", config.ContractObject)
		if env.Choices[0].Message.Content != "plain" {
			t.Fatalf("content: %#v", env.Choices[0].Message.Content)
		}
	})
}

func TestEncodeContentNeverFails(t *testing.T) {
	bad := map[string]any{"response": math.NaN()}
	for _, contract := range []config.ContentContract{config.ContractJSONString, config.ContractObject} {
		got := EncodeContent(bad, contract)
		var text string
		switch v := got.(type) {
		case string:
			text = v
		case json.RawMessage:
			text = string(v)
		default:
			t.Fatalf("%s: unexpected type %T", contract, got)
		}
		var inner types.ChatResult
		if err := json.Unmarshal([]byte(text), &inner); err != nil {
			t.Fatalf("%s: fallback not JSON: %q", contract, text)
		}
		if inner.Response != SerializationErrorResponse || inner.Reasoning != "" {
			t.Fatalf("%s: fallback: %+v", contract, inner)
		}
	}
	if got := EncodeContent(nil, config.ContractJSONString); !strings.Contains(got.(string), SerializationErrorResponse) {
		t.Fatalf("nil content: %#v", got)
	}
}

func TestEncodeContentLogsDistinguishMissingFromFailed(t *testing.T) {
	original := slog.Default()
	var logs bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(original) })

	EncodeContent(nil, config.ContractJSONString)
	if out := logs.String(); !strings.Contains(out, "envelope.content.missing") || strings.Contains(out, "serialize.failed") {
		t.Fatalf("nil content log: %s", out)
	}

	logs.Reset()
	EncodeContent(map[string]any{"response": math.NaN()}, config.ContractJSONString)
	if out := logs.String(); !strings.Contains(out, "envelope.serialize.failed") || strings.Contains(out, "error=<nil>") {
		t.Fatalf("marshal failure log: %s", out)
	}
}

func TestCompletionIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewCompletionID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, types.ErrInvalidRequest, "messages must be a non-empty array")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type: %q", ct)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Type != "invalid_request_error" || body.Error.Message == "" {
		t.Fatalf("body: %+v", body)
	}
}

func TestWriteStream(t *testing.T) {
	env := BuildEnvelope(types.ChatResult{Response: "oi"}, "m", config.ContractObject)
	rec := httptest.NewRecorder()
	if err := WriteStream(rec, env); err != nil {
		t.Fatal(err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}

	var events []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(events) != 3 || events[2] != "[DONE]" {
		t.Fatalf("events: %v", events)
	}

	var first types.ChatCompletionChunk
	if err := json.Unmarshal([]byte(events[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.ID != env.ID || first.Object != "chat.completion.chunk" {
		t.Fatalf("first chunk: %+v", first)
	}
	if first.Choices[0].Delta.Role != "assistant" || !strings.Contains(first.Choices[0].Delta.Content, `"response":"oi"`) {
		t.Fatalf("first delta: %+v", first.Choices[0].Delta)
	}

	var last types.ChatCompletionChunk
	if err := json.Unmarshal([]byte(events[1]), &last); err != nil {
		t.Fatal(err)
	}
	if last.Choices[0].FinishReason == nil || *last.Choices[0].FinishReason != "stop" {
		t.Fatalf("stop chunk: %+v", last.Choices[0])
	}
}
