package event

// Generic is a loosely-typed payload for event types that have no dedicated
// struct, such as integration probes or events from outside the library
// domain. Fields is deep-copied whenever the payload is copied.
type Generic struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// NewGeneric creates a Generic payload.
func NewGeneric(eventType string, fields map[string]any) Generic {
	return Generic{Type: eventType, Fields: fields}
}

// EventType implements Payload.
func (g Generic) EventType() string {
	return g.Type
}

// Clone implements Cloner.
func (g Generic) Clone() Payload {
	return Generic{Type: g.Type, Fields: cloneMap(g.Fields)}
}

// UserRef returns the "user_id" field when it is a string.
func (g Generic) UserRef() string {
	return g.String("user_id")
}

// BookRef returns the "book_id" field when it is a string.
func (g Generic) BookRef() string {
	return g.String("book_id")
}

// String returns the string field for key, or "" if missing or not a string.
func (g Generic) String(key string) string {
	if s, ok := g.Fields[key].(string); ok {
		return s
	}
	return ""
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
