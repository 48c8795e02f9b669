package supabase

import (
	"context"
	"errors"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"azchat/internal/domain"
)

const (
	threadsTable  = "threads"
	messagesTable = "messages"
	historyTable  = "search_history"
)

type Config struct {
	URL    string
	Key    string
	Schema string
}

// Store keeps conversations in the threads, messages and search_history
// tables of a Supabase project, through its PostgREST endpoint. The client
// library takes no context, so cancellation is not propagated.
type Store struct {
	client *supa.Client
	now    func() time.Time
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supa.NewClient(cfg.URL, cfg.Key, &supa.ClientOptions{Schema: cfg.Schema})
	if err != nil {
		return nil, err
	}
	return &Store{client: client, now: time.Now}, nil
}

type threadRow struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r threadRow) thread() domain.Thread {
	return domain.Thread{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type messageRow struct {
	ID        string            `json:"id,omitempty"`
	ThreadID  string            `json:"thread_id"`
	Role      domain.Role       `json:"role"`
	Content   string            `json:"content"`
	Sources   []domain.Document `json:"sources"`
	CreatedAt time.Time         `json:"created_at"`
}

type newMessage struct {
	ThreadID string            `json:"thread_id"`
	Role     domain.Role       `json:"role"`
	Content  string            `json:"content"`
	Sources  []domain.Document `json:"sources"`
}

type historyRow struct {
	ThreadID     string `json:"thread_id"`
	Query        string `json:"query"`
	ResultsCount int    `json:"results_count"`
}

func (s *Store) CreateThread(_ context.Context) (domain.Thread, error) {
	var rows []threadRow
	_, err := s.client.From(threadsTable).
		Insert(map[string]string{"title": domain.DefaultThreadTitle}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return domain.Thread{}, err
	}
	if len(rows) == 0 {
		return domain.Thread{}, errors.New("supabase: insert returned no thread")
	}
	return rows[0].thread(), nil
}

func (s *Store) ListThreads(_ context.Context) ([]domain.Thread, error) {
	var rows []threadRow
	_, err := s.client.From(threadsTable).
		Select("*", "", false).
		Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Thread, len(rows))
	for i, r := range rows {
		out[i] = r.thread()
	}
	return out, nil
}

func (s *Store) RenameThread(_ context.Context, id, title string) error {
	return s.updateThread(id, map[string]any{"title": title, "updated_at": s.now().UTC()})
}

func (s *Store) TouchThread(_ context.Context, id string) error {
	return s.updateThread(id, map[string]any{"updated_at": s.now().UTC()})
}

func (s *Store) updateThread(id string, patch map[string]any) error {
	var rows []threadRow
	_, err := s.client.From(threadsTable).
		Update(patch, "representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrThreadNotFound
	}
	return nil
}

// DeleteThread relies on the messages foreign key cascading.
func (s *Store) DeleteThread(_ context.Context, id string) error {
	var rows []threadRow
	_, err := s.client.From(threadsTable).
		Delete("representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrThreadNotFound
	}
	return nil
}

func (s *Store) AppendMessage(_ context.Context, threadID string, role domain.Role, content string, sources []domain.Document) (domain.Message, error) {
	var rows []messageRow
	_, err := s.client.From(messagesTable).
		Insert(newMessage{ThreadID: threadID, Role: role, Content: content, Sources: sources}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return domain.Message{}, err
	}
	if len(rows) == 0 {
		return domain.Message{}, errors.New("supabase: insert returned no message")
	}
	return rows[0].message(), nil
}

func (s *Store) ListMessages(_ context.Context, threadID string) ([]domain.Message, error) {
	var rows []messageRow
	_, err := s.client.From(messagesTable).
		Select("*", "", false).
		Eq("thread_id", threadID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, len(rows))
	for i, r := range rows {
		out[i] = r.message()
	}
	return out, nil
}

func (s *Store) RecordSearchAudit(_ context.Context, threadID, query string, count int) error {
	_, _, err := s.client.From(historyTable).
		Insert(historyRow{ThreadID: threadID, Query: query, ResultsCount: count}, false, "", "minimal", "").
		Execute()
	return err
}

func (r messageRow) message() domain.Message {
	return domain.Message{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		Role:      r.Role,
		Content:   r.Content,
		Sources:   r.Sources,
		CreatedAt: r.CreatedAt,
	}
}
