// Package session resolves the conversation identifier used to key
// backend calls. Nothing is stored: a synthesized id lives only for the
// request that created it.
package session

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var idKeys = []string{"conversation_id", "conversationId"}

// LookupConversationID returns the caller-supplied conversation id from a
// decoded request body. Top-level fields win over metadata fields.
func LookupConversationID(body map[string]any) string {
	if id := lookup(body); id != "" {
		return id
	}
	if meta, ok := body["metadata"].(map[string]any); ok {
		return lookup(meta)
	}
	return ""
}

func lookup(m map[string]any) string {
	for _, key := range idKeys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// EnsureConversationID returns supplied, or a new random id when it is empty.
// The second result reports whether the id was synthesized.
func EnsureConversationID(supplied string) (string, bool) {
	if supplied != "" {
		return supplied, false
	}
	return uuid.NewString(), true
}
