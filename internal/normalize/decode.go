package normalize

import "encoding/json"

// decodeJSON parses s as a JSON document.
func decodeJSON(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}
