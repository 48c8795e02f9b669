package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"azchat/internal/domain"
)

// BreakerConfig holds configuration for a per-source circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used when a source enables a breaker
// without tuning it.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

type breakerSearcher struct {
	next domain.Searcher
	cb   *gobreaker.CircuitBreaker
}

type resultError struct{ msg string }

func (e resultError) Error() string { return e.msg }

// WithBreaker stops calling next after too many failed results. While the breaker
// is open the returned result carries the rejection in Error.
func WithBreaker(next domain.Searcher, cfg BreakerConfig, log zerolog.Logger) domain.Searcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).Msg("search breaker state changed")
		},
	})
	return &breakerSearcher{next: next, cb: cb}
}

func (b *breakerSearcher) Name() string { return b.next.Name() }

func (b *breakerSearcher) Search(ctx context.Context, query string, opts domain.SearchOptions) domain.SearchResult {
	var res domain.SearchResult
	_, err := b.cb.Execute(func() (any, error) {
		res = b.next.Search(ctx, query, opts)
		if res.Error != "" {
			return nil, resultError{msg: res.Error}
		}
		return nil, nil
	})
	var re resultError
	if err != nil && !errors.As(err, &re) {
		// rejected before the source was called
		return domain.Failed(b.next.Name(), query, fmt.Errorf("source %s unavailable: %w", b.next.Name(), err))
	}
	return res
}
