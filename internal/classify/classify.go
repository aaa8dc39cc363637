// Package classify decides how an inbound chat request is handled based on
// the text of its system instruction.
package classify

import (
	"encoding/json"
	"strings"

	"github.com/philipexavier/proxy-rasa/internal/types"
)

// Kind is the operating mode of a request.
type Kind int

const (
	KindDefault Kind = iota
	KindAssistant
	KindOperation
)

func (k Kind) String() string {
	switch k {
	case KindAssistant:
		return "assistant"
	case KindOperation:
		return "operation"
	default:
		return "default"
	}
}

// Mode is the result of classifying a message list. Operation is set only
// when Kind is KindOperation.
type Mode struct {
	Kind      Kind
	Operation string
}

const (
	identityMarker = "[Identity]"
	taskMarker     = "[Task]"
)

type operationRule struct {
	name     string
	keywords []string
}

// operationRules are checked in order; the first hit wins.
var operationRules = []operationRule{
	{"summarize", []string{"summarize"}},
	{"shorten", []string{"shorten"}},
	{"rephrase", []string{"rephrase"}},
	{"friendly", []string{"friendly"}},
	{"formal", []string{"formal"}},
	{"expand", []string{"expand"}},
	{"simplify", []string{"simplify"}},
	{"reply_suggestion", []string{"reply_suggestion", "reply"}},
	{"label_suggestion", []string{"label_suggestion", "label"}},
}

// Classify returns the operating mode for messages.
func Classify(messages []types.ChatMessage) Mode {
	system := SystemText(messages)
	if strings.Contains(system, identityMarker) && strings.Contains(system, taskMarker) {
		return Mode{Kind: KindAssistant}
	}
	if op := DetectOperation(system); op != "" {
		return Mode{Kind: KindOperation, Operation: op}
	}
	return Mode{Kind: KindDefault}
}

// DetectOperation scans text case-insensitively for an operation keyword.
func DetectOperation(text string) string {
	lower := strings.ToLower(text)
	if lower == "" {
		return ""
	}
	for _, rule := range operationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return ""
}

// SystemText returns the flattened content of the first system message.
func SystemText(messages []types.ChatMessage) string {
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			return FlattenContent(m.Content)
		}
	}
	return ""
}

// LastUserText returns the flattened content of the last user message.
func LastUserText(messages []types.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return FlattenContent(messages[i].Content)
		}
	}
	return ""
}

// FlattenContent collapses message content into plain text. Arrays join the
// text of each fragment with a space; objects yield their text or content
// field. When no textual fragment exists the JSON encoding is returned.
func FlattenContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		if parts := fragmentTexts(v); len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	case map[string]any:
		if s, ok := fragmentText(v); ok {
			return s
		}
		if list, ok := v["content"].([]any); ok {
			if parts := fragmentTexts(list); len(parts) > 0 {
				return strings.Join(parts, " ")
			}
		}
	}
	data, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(data)
}

func fragmentTexts(list []any) []string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		switch f := item.(type) {
		case string:
			if f != "" {
				parts = append(parts, f)
			}
		case map[string]any:
			if s, ok := fragmentText(f); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	return parts
}

func fragmentText(m map[string]any) (string, bool) {
	if s, ok := m["text"].(string); ok {
		return s, true
	}
	if s, ok := m["content"].(string); ok {
		return s, true
	}
	return "", false
}
