package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Candidate field names, in precedence order, for the normalized document fields.
var (
	TitleFields   = []string{"title", "metadata_storage_name", "metadata_spo_item_name", "name"}
	ContentFields = []string{"content", "merged_content", "text", "body", "description"}
	IDFields      = []string{"id", "key", "metadata_storage_path", "metadata_spo_item_path"}
)

// Document is a provider record normalized once at the adapter boundary. Raw keeps
// the record exactly as the provider returned it so citations can be persisted verbatim.
type Document struct {
	ID      string
	Title   string
	Content string
	Score   float64
	Source  string
	Raw     map[string]any
}

// NewDocument resolves the well-known fields of a raw provider record.
func NewDocument(source string, raw map[string]any) Document {
	if raw == nil {
		raw = map[string]any{}
	}
	d := Document{
		ID:      FirstString(raw, IDFields...),
		Title:   FirstString(raw, TitleFields...),
		Content: FirstString(raw, ContentFields...),
		Source:  source,
		Raw:     raw,
	}
	if v, ok := raw["@search.score"].(float64); ok {
		d.Score = v
	}
	return d
}

// FirstString returns the first non-empty string value among keys.
func FirstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []any:
			// merged_content and highlight style fields sometimes arrive as arrays
			parts := make([]string, 0, len(t))
			for _, p := range t {
				if ps, ok := p.(string); ok {
					parts = append(parts, ps)
				}
			}
			s = strings.Join(parts, " ")
		case float64, bool, json.Number:
			s = fmt.Sprint(t)
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// MarshalJSON writes the raw provider record.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Raw)
}

// UnmarshalJSON reads a raw provider record and normalizes it again.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = NewDocument("", raw)
	return nil
}
