package edgefn

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"azchat/internal/domain"
)

// SearchPath is where the edge service mounts the search function.
const SearchPath = "/functions/v1/azure-search"

// Config configures a searcher that goes through the edge search function.
type Config struct {
	BaseURL string
	AnonKey string
	// Index, when set, is forwarded as azureConfig.index and overrides the
	// index configured on the edge.
	Index   string
	Timeout time.Duration
}

// AzureOverride mirrors the optional azureConfig request object.
type AzureOverride struct {
	Endpoint string `json:"endpoint,omitempty"`
	Key      string `json:"key,omitempty"`
	Index    string `json:"index,omitempty"`
}

// Request is the body accepted by the edge search function.
type Request struct {
	Query       string         `json:"query"`
	Top         int            `json:"top,omitempty"`
	AzureConfig *AzureOverride `json:"azureConfig,omitempty"`
}

// Response is the success body of the edge search function.
type Response struct {
	Query     string            `json:"query"`
	Count     int               `json:"count"`
	Results   []domain.Document `json:"results"`
	DebugInfo *domain.DebugInfo `json:"debugInfo,omitempty"`
}

// ErrorResponse is the failure body of the edge functions.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Searcher calls the edge search function.
type Searcher struct {
	name string
	cfg  Config
	http *resty.Client
}

// New creates a named edge-function searcher.
func New(name string, cfg Config) *Searcher {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.AnonKey != "" {
		client.SetAuthToken(cfg.AnonKey)
	}
	return &Searcher{name: name, cfg: cfg, http: client}
}

// Name returns the source name.
func (s *Searcher) Name() string { return s.name }

// Search never returns an error; failures are carried in the result.
func (s *Searcher) Search(ctx context.Context, query string, opts domain.SearchOptions) domain.SearchResult {
	res := domain.SearchResult{Source: s.name, Query: query, Documents: []domain.Document{}}
	if strings.TrimSpace(query) == "" {
		res.Error = domain.ErrEmptyQuery.Error()
		return res
	}
	if s.cfg.BaseURL == "" {
		res.Error = "edge function url not configured"
		return res
	}
	body := Request{Query: query, Top: opts.Top}
	if s.cfg.Index != "" {
		body.AzureConfig = &AzureOverride{Index: s.cfg.Index}
	}
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(s.cfg.BaseURL + SearchPath)
	if err != nil {
		res.Error = fmt.Sprintf("edge search request failed: %v", err)
		return res
	}
	if !resp.IsSuccess() {
		res.Error = describeFailure(resp.StatusCode(), resp.Body())
		return res
	}
	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		res.Error = fmt.Sprintf("decode edge search response: %v", err)
		return res
	}
	for _, d := range out.Results {
		d.Source = s.name
		res.Documents = append(res.Documents, d)
	}
	res.Count = len(res.Documents)
	res.Debug = out.DebugInfo
	return res
}

func describeFailure(status int, body []byte) string {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg := e.Error
		if e.Message != "" {
			msg += ": " + e.Message
		}
		if e.Details != "" {
			msg += " (" + truncate(e.Details, 200) + ")"
		}
		return fmt.Sprintf("edge search returned %d: %s", status, msg)
	}
	return fmt.Sprintf("edge search returned %d: %s", status, truncate(string(body), 200))
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
