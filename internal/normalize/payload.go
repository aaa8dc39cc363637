package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Variant tags the shape of a raw backend payload.
type Variant int

const (
	// Absent covers nil and the JS-style falsy scalars ("", false, 0).
	Absent Variant = iota
	// TextArray is a list of message fragments, usually from the REST webhook.
	TextArray
	// TextEncodedString is a string that may itself hold JSON.
	TextEncodedString
	// StructuredObject is a JSON object with named fields.
	StructuredObject
	// Scalar is a non-falsy number or boolean folded into text.
	Scalar
)

func (v Variant) String() string {
	switch v {
	case TextArray:
		return "text_array"
	case TextEncodedString:
		return "text_encoded_string"
	case StructuredObject:
		return "structured_object"
	case Scalar:
		return "scalar"
	default:
		return "absent"
	}
}

// Payload is a raw backend payload after its variant has been decided.
// Exactly one of Items, Text or Object is meaningful, according to Variant.
type Payload struct {
	Variant Variant
	Items   []any
	Text    string
	Object  map[string]any
}

// Classify decides the variant of raw. raw is expected to be a value
// produced by encoding/json decoding into an any.
func Classify(raw any) Payload {
	switch v := raw.(type) {
	case nil:
		return Payload{Variant: Absent}
	case []any:
		return Payload{Variant: TextArray, Items: v}
	case map[string]any:
		return Payload{Variant: StructuredObject, Object: v}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return Payload{Variant: Absent}
		}
		return Payload{Variant: TextEncodedString, Text: trimmed}
	case bool:
		if !v {
			return Payload{Variant: Absent}
		}
		return Payload{Variant: Scalar, Text: "true"}
	case float64:
		if v == 0 {
			return Payload{Variant: Absent}
		}
		return Payload{Variant: Scalar, Text: strconv.FormatFloat(v, 'f', -1, 64)}
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return Payload{Variant: Absent}
		}
		return Payload{Variant: Scalar, Text: v.String()}
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return Payload{Variant: TextArray, Items: items}
	default:
		return Payload{Variant: Scalar, Text: stringify(v)}
	}
}

// truthy mirrors the loose truthiness the backends rely on: empty strings,
// zero, false and nil are false; any object or list is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// firstTruthy returns the first truthy value among keys in m.
func firstTruthy(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

// stringify renders v as text: strings verbatim, everything else as JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func nestedMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	nested, _ := m[key].(map[string]any)
	return nested
}
