package search

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"azchat/internal/config"
	"azchat/internal/domain"
	"azchat/internal/search/azure"
	"azchat/internal/search/edgefn"
)

// FromConfig assembles the searcher described by one configured source.
func FromConfig(sc config.SourceConfig, log zerolog.Logger) (domain.Searcher, error) {
	timeout := time.Duration(sc.TimeoutSecs) * time.Second
	key := config.Secret(sc.APIKey, sc.APIKeyEnv)

	var s domain.Searcher
	switch sc.Kind {
	case "azure", "":
		s = azure.NewAdapter(sc.Name, azure.Config{
			Endpoint:              sc.Endpoint,
			APIKey:                key,
			Index:                 sc.Index,
			APIVersion:            sc.APIVersion,
			SemanticConfiguration: sc.SemanticConfiguration,
			HighlightFields:       sc.HighlightFields,
			IncludeTotalCount:     sc.IncludeTotalCount,
			Timeout:               timeout,
		})
	case "edge":
		s = edgefn.New(sc.Name, edgefn.Config{
			BaseURL: sc.Endpoint,
			AnonKey: key,
			Index:   sc.Index,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown source kind %q for %s", sc.Kind, sc.Name)
	}

	if sc.Breaker != nil {
		bc := DefaultBreakerConfig()
		if sc.Breaker.MaxRequests > 0 {
			bc.MaxRequests = sc.Breaker.MaxRequests
		}
		if sc.Breaker.IntervalSecs > 0 {
			bc.Interval = time.Duration(sc.Breaker.IntervalSecs) * time.Second
		}
		if sc.Breaker.TimeoutSecs > 0 {
			bc.Timeout = time.Duration(sc.Breaker.TimeoutSecs) * time.Second
		}
		if sc.Breaker.MinRequests > 0 {
			bc.MinRequests = sc.Breaker.MinRequests
		}
		if sc.Breaker.FailureThreshold > 0 {
			bc.FailureThreshold = sc.Breaker.FailureThreshold
		}
		s = WithBreaker(s, bc, log)
	}
	return s, nil
}
