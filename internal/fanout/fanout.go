package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"azchat/internal/domain"
)

// Source is a searcher with the label shown in composed replies.
type Source struct {
	Searcher domain.Searcher
	Label    string
}

// Options tunes a Fanout.
type Options struct {
	// Top bounds the results requested from each source.
	Top int
	// Concurrency bounds in-flight sources when all are selected. 1 queries them
	// one after another.
	Concurrency int
}

// Fanout dispatches one query to the selected sources.
type Fanout struct {
	sources []Source
	opts    Options
}

// New creates a fanout over sources, kept in the given order.
func New(sources []Source, opts Options) *Fanout {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Fanout{sources: sources, opts: opts}
}

// Sources returns the configured source names in order.
func (f *Fanout) Sources() []string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Searcher.Name()
	}
	return names
}

// Search queries the selected source, or every source when selected is
// domain.AllSources. It never fails as a whole: unknown selections and source
// failures are reported inside the aggregate.
func (f *Fanout) Search(ctx context.Context, query, selected string) domain.Aggregate {
	agg := domain.Aggregate{Query: query}

	var chosen []Source
	if selected == domain.AllSources {
		chosen = f.sources
	} else {
		for _, s := range f.sources {
			if s.Searcher.Name() == selected {
				chosen = []Source{s}
				break
			}
		}
	}
	if len(chosen) == 0 {
		agg.Results = []domain.SearchResult{domain.Failed(selected, query, fmt.Errorf("unknown source %q", selected))}
		return agg
	}

	results := make([]domain.SearchResult, len(chosen))
	var g errgroup.Group
	g.SetLimit(f.opts.Concurrency)
	for i, s := range chosen {
		i, s := i, s
		g.Go(func() error {
			res := s.Searcher.Search(ctx, query, domain.SearchOptions{Top: f.opts.Top})
			res.Label = s.Label
			if res.Label == "" {
				res.Label = s.Searcher.Name()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	agg.Results = results
	for _, r := range results {
		agg.TotalResults += r.Count
	}
	return agg
}
