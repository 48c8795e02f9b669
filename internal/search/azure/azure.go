package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"azchat/internal/domain"
)

const (
	DefaultAPIVersion = "2023-11-01"
	DefaultTop        = 5
)

var ErrNotConfigured = errors.New("azure search credentials not configured")

// Config contains connection details for one Azure Cognitive Search index.
type Config struct {
	Endpoint              string
	APIKey                string
	Index                 string
	APIVersion            string
	SemanticConfiguration string
	HighlightFields       []string
	IncludeTotalCount     bool
	Timeout               time.Duration
}

// StatusError is returned by Query when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("azure search returned %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// Response is the decoded body of a successful docs/search call.
type Response struct {
	Records    []map[string]any
	TotalCount *int
	URL        string
}

// Client is a minimal REST client for the docs/search endpoint.
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient creates a client for the configured index.
func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Endpoint returns the configured service endpoint.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

// Index returns the configured index name.
func (c *Client) Index() string { return c.cfg.Index }

// SearchURL is the docs/search URL for the configured index.
func (c *Client) SearchURL() string {
	return fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.cfg.Endpoint, c.cfg.Index, c.cfg.APIVersion)
}

// Query runs a full-text search. Non-2xx answers are reported as *StatusError.
func (c *Client) Query(ctx context.Context, query string, top int) (*Response, error) {
	if c.cfg.Endpoint == "" || c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if top <= 0 {
		top = DefaultTop
	}
	body := map[string]any{
		"search": query,
		"top":    top,
		"select": "*",
	}
	if c.cfg.SemanticConfiguration != "" {
		body["queryType"] = "semantic"
		body["semanticConfiguration"] = c.cfg.SemanticConfiguration
	}
	if len(c.cfg.HighlightFields) > 0 {
		body["highlight"] = strings.Join(c.cfg.HighlightFields, ",")
	}
	if c.cfg.IncludeTotalCount {
		body["count"] = true
	}
	url := c.SearchURL()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("api-key", c.cfg.APIKey).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("azure search request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: resp.String(), URL: url}
	}
	var out struct {
		Value []map[string]any `json:"value"`
		Count *int             `json:"@odata.count"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode azure search response: %w", err)
	}
	if out.Value == nil {
		out.Value = []map[string]any{}
	}
	return &Response{Records: out.Value, TotalCount: out.Count, URL: url}, nil
}

// Adapter exposes a Client as a domain.Searcher.
type Adapter struct {
	name   string
	client *Client
}

// NewAdapter wraps cfg in a named searcher.
func NewAdapter(name string, cfg Config) *Adapter {
	return &Adapter{name: name, client: NewClient(cfg)}
}

// Name returns the source name.
func (a *Adapter) Name() string { return a.name }

// Search never returns an error; failures are carried in the result.
func (a *Adapter) Search(ctx context.Context, query string, opts domain.SearchOptions) domain.SearchResult {
	res := domain.SearchResult{
		Source:    a.name,
		Query:     query,
		Documents: []domain.Document{},
		Debug:     &domain.DebugInfo{Endpoint: a.client.Endpoint(), Index: a.client.Index()},
	}
	if strings.TrimSpace(query) == "" {
		res.Error = domain.ErrEmptyQuery.Error()
		return res
	}
	out, err := a.client.Query(ctx, query, opts.Top)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Debug.TotalResults = out.TotalCount
	for _, rec := range out.Records {
		res.Documents = append(res.Documents, domain.NewDocument(a.name, rec))
	}
	res.Count = len(res.Documents)
	return res
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
