// Package upstream reaches the conversational backend through an ordered
// chain of transports, stopping at the first one that answers with JSON.
package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/philipexavier/proxy-rasa/internal/config"
)

// Transport identifiers, in the order they are attempted.
const (
	TransportLocalLLM          = "local_llm"
	TransportConversationParse = "conversation_parse"
	TransportModelParse        = "model_parse"
	TransportRESTWebhook       = "rest_webhook"
)

// DefaultSender is used for the REST webhook when hints carry none.
const DefaultSender = "proxy-user"

// maxResponseBytes caps how much of a backend body is read.
const maxResponseBytes = 8 << 20

// Hints steer which transports are tried and what they are sent.
type Hints struct {
	ConversationID string
	Metadata       map[string]any
	Sender         string
	// ParseOnly skips the conversation-scoped parse even when an id is known.
	ParseOnly bool
}

// Attempt records one try against a transport.
type Attempt struct {
	Transport string
	OK        bool
	Status    int
	Err       error
	Duration  time.Duration
}

// Outcome is the result of a whole dispatch. When OK is false Raw is nil and
// Source is empty; Attempts always lists every transport that was tried.
type Outcome struct {
	OK       bool
	Raw      any
	Source   string
	Attempts []Attempt
}

// Observer is notified after every attempt.
type Observer interface {
	ObserveAttempt(transport string, ok bool, d time.Duration)
}

// Dispatcher runs the fallback chain. It is safe for concurrent use.
type Dispatcher struct {
	baseURL  string
	localURL string
	timeout  time.Duration

	backend  *http.Client
	local    *http.Client
	observer Observer

	verbose bool
	debug   bool
	dumpMu  sync.Mutex
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithBackendClient sets the client used for backend endpoints. It is
// typically wrapped with credentials by auth.NewBackendClient.
func WithBackendClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.backend = c }
}

// WithLocalClient sets the client used for the local generation service.
func WithLocalClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.local = c }
}

// WithObserver registers an attempt observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg *config.ServerConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		baseURL:  strings.TrimRight(cfg.BackendURL, "/"),
		localURL: strings.TrimSpace(cfg.LocalLLMURL),
		timeout:  cfg.BackendTimeout,
		verbose:  cfg.Verbose,
		debug:    cfg.Debug,
	}
	if d.timeout <= 0 {
		d.timeout = config.DefaultTimeout
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.backend == nil {
		d.backend = &http.Client{}
	}
	if d.local == nil {
		d.local = &http.Client{}
	}
	return d
}

type step struct {
	transport string
	client    *http.Client
	url       string
	body      any
}

func (d *Dispatcher) plan(prompt string, h Hints) []step {
	steps := make([]step, 0, 4)
	if d.localURL != "" {
		steps = append(steps, step{
			transport: TransportLocalLLM,
			client:    d.local,
			url:       d.localURL,
			body:      map[string]any{"prompt": prompt},
		})
	}
	if h.ConversationID != "" && !h.ParseOnly {
		metadata := h.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		steps = append(steps, step{
			transport: TransportConversationParse,
			client:    d.backend,
			url:       d.baseURL + "/conversations/" + url.PathEscape(h.ConversationID) + "/parse",
			body:      map[string]any{"text": prompt, "metadata": metadata},
		})
	}
	sender := h.Sender
	if sender == "" {
		sender = DefaultSender
	}
	steps = append(steps,
		step{
			transport: TransportModelParse,
			client:    d.backend,
			url:       d.baseURL + "/model/parse",
			body:      map[string]any{"text": prompt},
		},
		step{
			transport: TransportRESTWebhook,
			client:    d.backend,
			url:       d.baseURL + "/webhooks/rest/webhook",
			body:      map[string]any{"sender": sender, "message": prompt},
		},
	)
	return steps
}

// Dispatch tries each transport in order and returns the first JSON
// payload. Failures are logged and recorded, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, h Hints) Outcome {
	var out Outcome
	for _, s := range d.plan(prompt, h) {
		if ctx.Err() != nil {
			slog.Warn("dispatch.cancelled", "remaining_from", s.transport, "error", ctx.Err())
			break
		}
		raw, attempt := d.try(ctx, s)
		out.Attempts = append(out.Attempts, attempt)
		if d.observer != nil {
			d.observer.ObserveAttempt(attempt.Transport, attempt.OK, attempt.Duration)
		}
		if attempt.OK {
			out.OK = true
			out.Raw = raw
			out.Source = s.transport
			if d.verbose {
				slog.Info("dispatch.success", "transport", s.transport, "status", attempt.Status, "duration_ms", attempt.Duration.Milliseconds())
			}
			return out
		}
		slog.Warn("dispatch.attempt.failed",
			"transport", attempt.Transport,
			"status", attempt.Status,
			"duration_ms", attempt.Duration.Milliseconds(),
			"error", attempt.Err,
		)
	}
	slog.Error("dispatch.exhausted", "attempts", len(out.Attempts))
	return out
}
