package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	t.Run("Should prefer title over storage name", func(t *testing.T) {
		d := NewDocument("blob", map[string]any{
			"title":                 "Vacation Policy",
			"metadata_storage_name": "vacation.pdf",
		})
		assert.Equal(t, "Vacation Policy", d.Title)
		assert.Equal(t, "blob", d.Source)
	})

	t.Run("Should fall through empty candidates", func(t *testing.T) {
		d := NewDocument("sp", map[string]any{
			"title":                  "  ",
			"metadata_spo_item_name": "Handbook.docx",
			"merged_content":         "merged body",
		})
		assert.Equal(t, "Handbook.docx", d.Title)
		assert.Equal(t, "merged body", d.Content)
	})

	t.Run("Should leave title empty when no candidate is set", func(t *testing.T) {
		d := NewDocument("blob", map[string]any{"content": "x"})
		assert.Empty(t, d.Title)
	})

	t.Run("Should join array content and read the score", func(t *testing.T) {
		d := NewDocument("blob", map[string]any{
			"id":            "42",
			"text":          []any{"a", "b"},
			"@search.score": 1.5,
		})
		assert.Equal(t, "a b", d.Content)
		assert.Equal(t, "42", d.ID)
		assert.Equal(t, 1.5, d.Score)
	})
}

func TestDocumentJSON(t *testing.T) {
	raw := `{"title":"T","content":"body","custom":7}`
	var d Document
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.Equal(t, "T", d.Title)
	assert.Equal(t, "body", d.Content)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestAggregateResult(t *testing.T) {
	a := Aggregate{Results: []SearchResult{{Source: "blob", Count: 1}, {Source: "sharepoint"}}}
	r, ok := a.Result("blob")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Count)
	_, ok = a.Result("missing")
	assert.False(t, ok)
}
