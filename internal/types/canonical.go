package types

// CanonicalResult is the single normalized representation of what the
// backend said, independent of which transport produced it.
type CanonicalResult struct {
	Reasoning        string
	Response         string
	Stop             bool
	ReplySuggestions []string
	Label            *string
	Sources          any
	Metadata         map[string]any

	// Raw is the original backend payload, kept for diagnostics only.
	Raw any
	// Source names the transport that produced Raw, empty for synthetic payloads.
	Source string
}

// AssistantResult is the object delivered to assistant-mode consumers.
type AssistantResult struct {
	Reasoning        string         `json:"reasoning"`
	Response         string         `json:"response"`
	Stop             bool           `json:"stop"`
	Label            string         `json:"label"`
	ReplySuggestions []string       `json:"reply_suggestions"`
	Sources          []any          `json:"sources"`
	Metadata         map[string]any `json:"metadata"`
}

// ChatResult is the object delivered for operation and default chat modes.
type ChatResult struct {
	Reasoning string `json:"reasoning"`
	Response  string `json:"response"`
	Stop      bool   `json:"stop"`
}

// AssistantView coerces r into the assistant-mode shape: label is never
// null, sources is always a list and metadata always an object.
func (r *CanonicalResult) AssistantView() AssistantResult {
	out := AssistantResult{
		Reasoning:        r.Reasoning,
		Response:         r.Response,
		Stop:             r.Stop,
		ReplySuggestions: r.ReplySuggestions,
		Metadata:         r.Metadata,
	}
	if r.Label != nil {
		out.Label = *r.Label
	}
	switch s := r.Sources.(type) {
	case nil:
		out.Sources = []any{}
	case []any:
		out.Sources = s
	default:
		out.Sources = []any{s}
	}
	if out.ReplySuggestions == nil {
		out.ReplySuggestions = []string{}
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return out
}

// ChatView returns the reduced shape used outside assistant mode.
func (r *CanonicalResult) ChatView() ChatResult {
	return ChatResult{Reasoning: r.Reasoning, Response: r.Response, Stop: r.Stop}
}
