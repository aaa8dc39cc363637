// Package pipeline runs a chat completion request end to end: validate,
// classify, dispatch, normalize and write the envelope.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/philipexavier/proxy-rasa/internal/classify"
	"github.com/philipexavier/proxy-rasa/internal/codec"
	"github.com/philipexavier/proxy-rasa/internal/config"
	"github.com/philipexavier/proxy-rasa/internal/metrics"
	"github.com/philipexavier/proxy-rasa/internal/normalize"
	"github.com/philipexavier/proxy-rasa/internal/types"
	"github.com/philipexavier/proxy-rasa/internal/upstream"
)

// InternalErrorMessage is the only detail clients see for unexpected failures.
const InternalErrorMessage = "internal_error"

// Dispatcher abstracts the backend chain so the pipeline can be tested
// without network access.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt string, h upstream.Hints) upstream.Outcome
}

// Pipeline orchestrates request processing.
type Pipeline struct {
	Config   *config.ServerConfig
	Upstream Dispatcher
	Metrics  *metrics.Collector
}

// RequestContext carries per-request values from the HTTP layer.
type RequestContext struct {
	Context   context.Context
	RequestID string
	// Integration is set when the caller flagged itself as an integration
	// consumer; it suppresses prompt correction.
	Integration bool
}

// Execute handles one request body and always writes a response.
func (p *Pipeline) Execute(rc *RequestContext, w http.ResponseWriter, body []byte) {
	start := time.Now()
	mode := "invalid"
	status := http.StatusOK

	defer func() {
		if rec := recover(); rec != nil {
			status = http.StatusInternalServerError
			slog.Error("pipeline.panic",
				"request_id", rc.RequestID,
				"mode", mode,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			codec.WriteError(w, status, types.ErrInternal, InternalErrorMessage)
		}
		p.Metrics.RecordRequest(mode, status, time.Since(start))
	}()

	req, rerr := Validate(body)
	if rerr != nil {
		status = rerr.StatusCode
		codec.WriteError(w, rerr.StatusCode, rerr.Type, rerr.Message)
		return
	}

	m := classify.Classify(req.Messages)
	mode = m.Kind.String()

	resp := p.Complete(rc, req, m)
	if req.Stream {
		if err := codec.WriteStream(w, resp); err != nil {
			slog.Warn("pipeline.stream.write.failed", "request_id", rc.RequestID, "error", err)
		}
		return
	}
	codec.WriteJSON(w, http.StatusOK, resp)
}

// Complete runs an already validated and classified request through the
// backend and returns the envelope. Backend failures never surface here:
// they are replaced by a fixed apology result.
func (p *Pipeline) Complete(rc *RequestContext, req *Request, m classify.Mode) types.ChatCompletionResponse {
	ctx := rc.Context
	if ctx == nil {
		ctx = context.Background()
	}
	out := p.buildOutbound(req, m, rc.Integration)

	if p.Config.Verbose {
		slog.Info("pipeline.request",
			"request_id", rc.RequestID,
			"mode", m.Kind.String(),
			"operation", m.Operation,
			"model", req.Model,
			"messages", len(req.Messages),
			"prompt_chars", len(out.prompt),
			"conversation_id", out.hints.ConversationID,
			"conversation_id_synthesized", out.synthesized,
			"integration", rc.Integration,
			"stream", req.Stream,
		)
	}

	outcome := p.Upstream.Dispatch(ctx, out.prompt, out.hints)

	raw := any(normalize.NoBackendPayload())
	if outcome.OK {
		raw = outcome.Raw
		p.Metrics.RecordPayloadVariant(normalize.Classify(raw).Variant.String())
	} else {
		p.Metrics.RecordDispatchExhausted()
		slog.Warn("pipeline.dispatch.failed",
			"request_id", rc.RequestID,
			"mode", m.Kind.String(),
			"attempts", len(outcome.Attempts),
		)
	}
	result := normalize.Normalize(raw, normalize.Hints{Source: outcome.Source})

	model := p.Config.ResolveModel(req.Model)
	if m.Kind == classify.KindAssistant {
		return codec.BuildEnvelope(result.AssistantView(), model, p.Config.ContentContract)
	}
	return codec.BuildEnvelope(result.ChatView(), model, config.ContractJSONString)
}
