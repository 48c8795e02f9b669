package composer

import (
	"fmt"
	"strings"

	"azchat/internal/domain"
)

const (
	NotFoundMessage = "I searched the knowledge base but did not find specific documents matching your query. " +
		"Please try rephrasing your question or ensure the Azure Search index is configured."
	Ellipsis = "..."
)

var troubleshooting = []string{
	"Check that the search endpoint and API key are configured.",
	"Check that the index name is correct and the index contains documents.",
	"Check that the indexer over your Blob Storage or SharePoint data source has run.",
	"Try a broader or differently worded query.",
}

// Options bounds the composed reply.
type Options struct {
	SnippetLength    int
	ResultsPerSource int
	MaxCitations     int
}

// DefaultOptions matches the reply shape of the chat front-end.
func DefaultOptions() Options {
	return Options{SnippetLength: 200, ResultsPerSource: 3, MaxCitations: 3}
}

// Composer turns aggregated search results into assistant text and citations.
// It is pure: the same aggregate always yields the same reply.
type Composer struct {
	opts Options
}

// New creates a composer, replacing non-positive options with the defaults.
func New(opts Options) *Composer {
	def := DefaultOptions()
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = def.SnippetLength
	}
	if opts.ResultsPerSource <= 0 {
		opts.ResultsPerSource = def.ResultsPerSource
	}
	if opts.MaxCitations <= 0 {
		opts.MaxCitations = def.MaxCitations
	}
	return &Composer{opts: opts}
}

// Compose builds the reply. Sources is nil when nothing was found.
func (c *Composer) Compose(agg domain.Aggregate) domain.Reply {
	if agg.TotalResults == 0 {
		return domain.Reply{Text: c.notFound(agg)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the search results, I found %d relevant document(s).", agg.TotalResults)
	var citations []domain.Document
	for _, r := range agg.Results {
		if len(r.Documents) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n\n**%s (%s):**", label(r), plural(r.Count, "result"))
		for i, d := range r.Documents {
			if i == c.opts.ResultsPerSource {
				break
			}
			fmt.Fprintf(&b, "\n\n%d. %s", i+1, Title(d, i+1))
			if d.Content != "" {
				b.WriteString("\n")
				b.WriteString(Snippet(d.Content, c.opts.SnippetLength))
			}
		}
		for _, d := range r.Documents {
			if len(citations) == c.opts.MaxCitations {
				break
			}
			citations = append(citations, d)
		}
	}
	return domain.Reply{Text: b.String(), Sources: citations}
}

func (c *Composer) notFound(agg domain.Aggregate) string {
	var b strings.Builder
	b.WriteString(NotFoundMessage)

	var errs, debug []string
	for _, r := range agg.Results {
		if r.Error != "" {
			errs = append(errs, fmt.Sprintf("- %s: %s", label(r), r.Error))
		}
		if r.Debug != nil && (r.Debug.Endpoint != "" || r.Debug.Index != "") {
			debug = append(debug, fmt.Sprintf("- %s: endpoint %s, index %s", label(r), orNone(r.Debug.Endpoint), orNone(r.Debug.Index)))
		}
	}
	if len(errs) > 0 {
		b.WriteString("\n\nErrors:\n")
		b.WriteString(strings.Join(errs, "\n"))
	}
	if len(debug) > 0 {
		b.WriteString("\n\nDebug:\n")
		b.WriteString(strings.Join(debug, "\n"))
	}
	b.WriteString("\n\nTroubleshooting:")
	for i, step := range troubleshooting {
		fmt.Fprintf(&b, "\n%d. %s", i+1, step)
	}
	return b.String()
}

// Title is the resolved document title, or "Document n" for the 1-based position n.
func Title(d domain.Document, n int) string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	return fmt.Sprintf("Document %d", n)
}

// Snippet cuts content to max runes and marks the cut with an ellipsis.
func Snippet(content string, max int) string {
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + Ellipsis
}

func label(r domain.SearchResult) string {
	if r.Label != "" {
		return r.Label
	}
	return r.Source
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
