package composer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azchat/internal/domain"
)

func docs(contents ...string) []domain.Document {
	out := make([]domain.Document, len(contents))
	for i, c := range contents {
		out[i] = domain.NewDocument("blob", map[string]any{"content": c})
	}
	return out
}

func TestComposeFound(t *testing.T) {
	t.Run("Should render the vacation policy scenario", func(t *testing.T) {
		short := strings.Repeat("a", 50)
		long := strings.Repeat("b", 300)
		agg := domain.Aggregate{
			Query:        "vacation policy",
			TotalResults: 2,
			Results: []domain.SearchResult{{
				Source:    "blob",
				Label:     "Blob Storage",
				Count:     2,
				Documents: docs(short, long),
			}},
		}

		reply := New(DefaultOptions()).Compose(agg)

		assert.Contains(t, reply.Text, "found 2")
		assert.Contains(t, reply.Text, "**Blob Storage (2 results):**")
		assert.Contains(t, reply.Text, "\n"+short+"\n")
		assert.NotContains(t, reply.Text, short+Ellipsis)
		assert.Contains(t, reply.Text, "\n"+strings.Repeat("b", 200)+Ellipsis)
		assert.NotContains(t, reply.Text, strings.Repeat("b", 201))
		assert.Len(t, reply.Sources, 2)
	})

	t.Run("Should skip empty sources and cap each section", func(t *testing.T) {
		agg := domain.Aggregate{
			TotalResults: 4,
			Results: []domain.SearchResult{
				{Source: "blob", Documents: []domain.Document{}},
				{Source: "sharepoint", Count: 4, Documents: docs("1", "2", "3", "4")},
			},
		}

		reply := New(Options{ResultsPerSource: 2, MaxCitations: 3}).Compose(agg)

		assert.NotContains(t, reply.Text, "**blob")
		assert.Contains(t, reply.Text, "**sharepoint (4 results):**")
		assert.Contains(t, reply.Text, "2. Document 2")
		assert.NotContains(t, reply.Text, "3. Document 3")
		assert.Len(t, reply.Sources, 3)
	})

	t.Run("Should cap citations across sources", func(t *testing.T) {
		agg := domain.Aggregate{
			TotalResults: 4,
			Results: []domain.SearchResult{
				{Source: "a", Count: 2, Documents: docs("a1", "a2")},
				{Source: "b", Count: 2, Documents: docs("b1", "b2")},
			},
		}

		reply := New(DefaultOptions()).Compose(agg)
		require.Len(t, reply.Sources, 3)
		assert.Equal(t, "a1", reply.Sources[0].Content)
		assert.Equal(t, "b1", reply.Sources[2].Content)
	})

	t.Run("Should be byte identical across calls", func(t *testing.T) {
		agg := domain.Aggregate{
			TotalResults: 1,
			Results:      []domain.SearchResult{{Source: "blob", Count: 1, Documents: docs("hello")}},
		}
		c := New(DefaultOptions())
		assert.Equal(t, c.Compose(agg).Text, c.Compose(agg).Text)
	})
}

func TestComposeNotFound(t *testing.T) {
	t.Run("Should list errors after the fixed message", func(t *testing.T) {
		agg := domain.Aggregate{
			Query: "q",
			Results: []domain.SearchResult{
				{Source: "blob", Documents: []domain.Document{}, Error: "timeout"},
				{Source: "sharepoint", Documents: []domain.Document{}},
			},
		}

		reply := New(DefaultOptions()).Compose(agg)

		assert.Nil(t, reply.Sources)
		require.True(t, strings.HasPrefix(reply.Text, NotFoundMessage))
		rest := strings.TrimPrefix(reply.Text, NotFoundMessage)
		assert.True(t, strings.HasPrefix(rest, "\n\nErrors:\n- blob: timeout"))
		assert.Contains(t, reply.Text, "Troubleshooting:")
	})

	t.Run("Should include debug endpoint and index", func(t *testing.T) {
		agg := domain.Aggregate{Results: []domain.SearchResult{{
			Source: "blob",
			Label:  "Blob",
			Debug:  &domain.DebugInfo{Endpoint: "https://x.search.windows.net", Index: "hr"},
		}}}

		text := New(DefaultOptions()).Compose(agg).Text
		assert.Contains(t, text, "Debug:\n- Blob: endpoint https://x.search.windows.net, index hr")
		assert.NotContains(t, text, "Errors:")
	})
}

func TestTitle(t *testing.T) {
	d := domain.NewDocument("blob", map[string]any{"title": "Policy", "metadata_storage_name": "policy.pdf"})
	assert.Equal(t, "Policy", Title(d, 1))
	assert.Equal(t, "Document 4", Title(domain.NewDocument("blob", map[string]any{}), 4))
}

func TestSnippet(t *testing.T) {
	t.Run("Should leave content at the cap unmodified", func(t *testing.T) {
		s := strings.Repeat("x", 200)
		assert.Equal(t, s, Snippet(s, 200))
	})

	t.Run("Should cut to exactly the cap", func(t *testing.T) {
		got := Snippet(strings.Repeat("x", 201), 200)
		assert.Equal(t, strings.Repeat("x", 200)+Ellipsis, got)
	})

	t.Run("Should count runes, not bytes", func(t *testing.T) {
		got := Snippet("héllo wörld", 5)
		assert.Equal(t, "héllo"+Ellipsis, got)
	})
}
