package domain

import (
	"context"
	"errors"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultThreadTitle is assigned to threads created without a title.
const DefaultThreadTitle = "New Conversation"

// AllSources selects every configured search source in a single turn.
const AllSources = "all"

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrEmptyQuery     = errors.New("query is required")
	ErrEmptyMessage   = errors.New("message is empty")
)

// Thread is a persisted conversation container.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one user or assistant entry inside a thread.
type Message struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Sources   []Document `json:"sources"`
	CreatedAt time.Time  `json:"created_at"`
}

// SearchAudit records that a query was issued from a thread. It is never read back.
type SearchAudit struct {
	ID           string    `json:"id,omitempty"`
	ThreadID     string    `json:"thread_id"`
	Query        string    `json:"query"`
	ResultsCount int       `json:"results_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// SearchOptions bounds a single adapter call.
type SearchOptions struct {
	Top int
}

// DebugInfo describes where a search was sent.
type DebugInfo struct {
	Endpoint     string `json:"endpoint"`
	Index        string `json:"index"`
	TotalResults *int   `json:"totalResults,omitempty"`
}

// SearchResult is the outcome of one adapter call. Provider failures are carried
// in Error rather than returned.
type SearchResult struct {
	Source    string     `json:"source"`
	Label     string     `json:"label,omitempty"`
	Query     string     `json:"query"`
	Count     int        `json:"count"`
	Documents []Document `json:"results"`
	Error     string     `json:"error,omitempty"`
	Debug     *DebugInfo `json:"debugInfo,omitempty"`
}

// Failed builds a result that reports err without documents.
func Failed(source, query string, err error) SearchResult {
	return SearchResult{Source: source, Query: query, Documents: []Document{}, Error: err.Error()}
}

// Aggregate collects the per-source results of one fanout.
type Aggregate struct {
	Query        string
	Results      []SearchResult
	TotalResults int
}

// Result returns the result reported by the named source.
func (a Aggregate) Result(source string) (SearchResult, bool) {
	for _, r := range a.Results {
		if r.Source == source {
			return r, true
		}
	}
	return SearchResult{}, false
}

// Reply is the composed assistant answer.
type Reply struct {
	Text    string
	Sources []Document
}

// Searcher queries one external document index. Search never fails: transport and
// provider errors are reported through SearchResult.Error.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOptions) SearchResult
}

// ConversationStore persists threads, messages and search audits.
type ConversationStore interface {
	CreateThread(ctx context.Context) (Thread, error)
	ListThreads(ctx context.Context) ([]Thread, error)
	RenameThread(ctx context.Context, id, title string) error
	TouchThread(ctx context.Context, id string) error
	DeleteThread(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, threadID string, role Role, content string, sources []Document) (Message, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
	RecordSearchAudit(ctx context.Context, threadID, query string, count int) error
}
