// Package normalize turns whatever a backend transport returned into a
// single types.CanonicalResult.
package normalize

import (
	"strings"

	"github.com/philipexavier/proxy-rasa/internal/locale"
	"github.com/philipexavier/proxy-rasa/internal/types"
)

const (
	// AbsentResponse is used when the backend returned nothing at all.
	AbsentResponse = "Não consegui processar agora."
	// EmptyResponse replaces a reply that is blank after normalization.
	EmptyResponse = "Desculpe, não tenho uma resposta agora."
	// NoBackendResponse is the reply substituted when every transport failed.
	NoBackendResponse = "Desculpe, não foi possível obter uma resposta do sistema de NLU/LLM."
)

// maxDecodeDepth bounds how many times a JSON-encoded string is unwrapped.
const maxDecodeDepth = 4

// Hints carries context about where a payload came from.
type Hints struct {
	Source string
}

// NoBackendPayload is the synthetic payload normalized when dispatch fails.
func NoBackendPayload() map[string]any {
	return map[string]any{"response": NoBackendResponse, "stop": false}
}

// Normalize converts raw into a CanonicalResult. It never fails and the
// returned Response is never blank.
func Normalize(raw any, hints Hints) *types.CanonicalResult {
	res := normalizeDepth(raw, 0)
	res.Raw = raw
	res.Source = hints.Source

	res.Response = locale.Fix(res.Response)
	if strings.TrimSpace(res.Response) == "" {
		res.Response = EmptyResponse
	}
	if res.ReplySuggestions == nil {
		res.ReplySuggestions = []string{}
	}
	return res
}

func normalizeDepth(raw any, depth int) *types.CanonicalResult {
	p := Classify(raw)
	switch p.Variant {
	case TextArray:
		return fromArray(p.Items)
	case TextEncodedString:
		if depth < maxDecodeDepth {
			if decoded, ok := decodeJSON(p.Text); ok {
				return normalizeDepth(decoded, depth+1)
			}
		}
		return &types.CanonicalResult{Response: p.Text}
	case StructuredObject:
		return fromObject(p.Object)
	case Scalar:
		return &types.CanonicalResult{Response: p.Text}
	default:
		return &types.CanonicalResult{Response: AbsentResponse}
	}
}

// fromArray joins the text of every fragment with a blank line. The first
// fragment's intent and the union of all entities end up in Metadata.
func fromArray(items []any) *types.CanonicalResult {
	texts := make([]string, 0, len(items))
	entities := []any{}
	var intent any
	for i, item := range items {
		if t := fragmentText(item); t != "" {
			texts = append(texts, t)
		}
		frag, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if i == 0 {
			intent = intentOf(frag)
		}
		if list, ok := frag["entities"].([]any); ok {
			for _, e := range list {
				if truthy(e) {
					entities = append(entities, e)
				}
			}
		}
	}

	meta := map[string]any{"entities": entities}
	if intent != nil {
		meta["intent"] = intent
	}
	return &types.CanonicalResult{
		Response: strings.Join(texts, "\n\n"),
		Metadata: meta,
	}
}

var richFragmentKeys = []string{"buttons", "image", "attachment", "payload"}

func fragmentText(item any) string {
	switch f := item.(type) {
	case string:
		return f
	case map[string]any:
		if s, ok := f["text"].(string); ok && s != "" {
			return s
		}
		if s, ok := f["message"].(string); ok && s != "" {
			return s
		}
		if custom, ok := f["custom"]; ok && truthy(custom) {
			if cm, ok := custom.(map[string]any); ok {
				if s, ok := firstTruthy(cm, "text", "message").(string); ok {
					return s
				}
			}
			return stringify(custom)
		}
		rich := make(map[string]any)
		for _, k := range richFragmentKeys {
			if v, ok := f[k]; ok && truthy(v) {
				rich[k] = v
			}
		}
		if len(rich) > 0 {
			return stringify(rich)
		}
	}
	return ""
}

func fromObject(obj map[string]any) *types.CanonicalResult {
	meta := nestedMap(obj, "metadata")

	res := &types.CanonicalResult{
		Reasoning:        stringify(firstTruthy(obj, "reasoning", "explanation")),
		Response:         primaryText(obj),
		Stop:             truthy(obj["stop"]),
		ReplySuggestions: replySuggestions(obj),
		Label:            label(obj),
		Sources:          firstTruthy(obj, "sources"),
		Metadata:         objectMetadata(obj, meta),
	}
	if res.Sources == nil && meta != nil {
		res.Sources = firstTruthy(meta, "sources")
	}
	return res
}

// primaryText picks the reply text by field priority.
func primaryText(obj map[string]any) string {
	for _, key := range []string{"response", "output", "content", "text"} {
		if v := obj[key]; truthy(v) {
			return stringify(v)
		}
	}
	if list, ok := obj["texts"].([]any); ok {
		parts := make([]string, 0, len(list))
		for _, t := range list {
			parts = append(parts, stringify(t))
		}
		if joined := strings.Join(parts, "\n\n"); joined != "" {
			return joined
		}
	}
	for _, key := range []string{"generated_text", "message"} {
		if v := obj[key]; truthy(v) {
			return stringify(v)
		}
	}
	return ""
}

var suggestionKeys = []string{"reply_suggestions", "replySuggestions", "reply_suggestion", "replySuggestion"}

// replySuggestions merges every suggestion spelling into one list. Falsy
// entries and boolean flags are dropped, non-strings are JSON-encoded and
// duplicates are removed keeping the first occurrence.
func replySuggestions(obj map[string]any) []string {
	out := []string{}
	seen := make(map[string]struct{})
	add := func(v any) {
		if !truthy(v) {
			return
		}
		if _, isFlag := v.(bool); isFlag {
			return
		}
		s := stringify(v)
		if strings.TrimSpace(s) == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, key := range suggestionKeys {
		switch v := obj[key].(type) {
		case []any:
			for _, item := range v {
				add(item)
			}
		case []string:
			for _, item := range v {
				add(item)
			}
		default:
			add(v)
		}
	}
	return out
}

func label(obj map[string]any) *string {
	v := firstTruthy(obj, "label_suggestion", "label")
	if v == nil {
		return nil
	}
	if _, isFlag := v.(bool); isFlag {
		return nil
	}
	s := stringify(v)
	return &s
}

func intentOf(m map[string]any) any {
	switch v := m["intent"].(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if name, ok := v["name"].(string); ok && name != "" {
			return name
		}
	}
	return nil
}

func objectMetadata(obj, meta map[string]any) map[string]any {
	out := make(map[string]any)

	intent := intentOf(obj)
	if intent == nil && meta != nil {
		intent = intentOf(meta)
	}
	if intent != nil {
		out["intent"] = intent
	}

	entities := firstTruthy(obj, "entities")
	if entities == nil && meta != nil {
		entities = firstTruthy(meta, "entities")
	}
	if entities == nil {
		entities = []any{}
	}
	out["entities"] = entities

	tags := firstTruthy(obj, "tags", "auto_tags")
	if tags == nil && meta != nil {
		tags = firstTruthy(meta, "tags")
	}
	if tags != nil {
		out["tags"] = tags
	}

	areas := firstTruthy(obj, "areas")
	if areas == nil && meta != nil {
		areas = firstTruthy(meta, "areas")
	}
	if areas != nil {
		out["areas"] = areas
	}
	return out
}
