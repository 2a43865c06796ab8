// Package model holds the entity, fragment and record types shared by the
// extraction pipeline.
package model

// Status is the merge state of one entity.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPartial  Status = "partial"
	StatusComplete Status = "complete"
)

// Variants maps a rendering variant (e.g. translator name) to its ordered
// lines of text.
type Variants map[string][]string

// Fragment is a partially-filled view of one entity produced by exactly one
// extractor from exactly one source. Treat it as immutable once built.
type Fragment struct {
	EntityID string         `json:"entity_id"`
	Source   string         `json:"source"`
	Fields   map[string]any `json:"fields"`

	// Unavailable marks a required source that could not be fetched. The
	// merger counts it as resolved but never as complete.
	Unavailable bool `json:"unavailable,omitempty"`

	// Stub marks a fallback fragment holding only a display name.
	Stub bool `json:"stub,omitempty"`
}

// NewFragment returns an empty fragment for the entity and source.
func NewFragment(entityID, source string) Fragment {
	return Fragment{EntityID: entityID, Source: source, Fields: map[string]any{}}
}

// UnavailableFragment marks source as explicitly unavailable for entityID.
func UnavailableFragment(entityID, source string) Fragment {
	return Fragment{EntityID: entityID, Source: source, Fields: map[string]any{}, Unavailable: true}
}

// Omission records a variant that was dropped during merge.
type Omission struct {
	Field   string `json:"field"`
	Variant string `json:"variant"`
	Reason  string `json:"reason"`
}

// Record is the canonical merged representation of an entity.
type Record struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	Status      Status         `json:"status"`
	Sources     []string       `json:"sources"`
	Unavailable []string       `json:"unavailable,omitempty"`
	Omitted     []Omission     `json:"omitted,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// String returns the string field key, or "" when absent or not a string.
func (r *Record) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// CloneValue deep-copies the map, slice and Variants shapes extractors emit so
// that a record never aliases fragment storage.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case Variants:
		out := make(Variants, len(t))
		for k, lines := range t {
			out[k] = append([]string(nil), lines...)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}
