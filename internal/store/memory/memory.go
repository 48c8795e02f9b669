package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"azchat/internal/domain"
)

// Store is an in-process conversation store. Data is lost when the process exits.
type Store struct {
	mu       sync.RWMutex
	threads  map[string]*domain.Thread
	order    []string
	messages map[string][]domain.Message
	audits   []domain.SearchAudit
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		threads:  make(map[string]*domain.Thread),
		messages: make(map[string][]domain.Message),
		now:      time.Now,
	}
}

// WithClock replaces the time source, for deterministic timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) CreateThread(_ context.Context) (domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	t := &domain.Thread{ID: uuid.NewString(), Title: domain.DefaultThreadTitle, CreatedAt: ts, UpdatedAt: ts}
	s.threads[t.ID] = t
	s.order = append(s.order, t.ID)
	return *t, nil
}

// ListThreads returns threads most recently updated first.
func (s *Store) ListThreads(_ context.Context) ([]domain.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Thread, 0, len(s.order))
	// newest creation first so equal timestamps still list recent threads on top
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.threads[s.order[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) RenameThread(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return domain.ErrThreadNotFound
	}
	t.Title = title
	t.UpdatedAt = s.now()
	return nil
}

func (s *Store) TouchThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return domain.ErrThreadNotFound
	}
	t.UpdatedAt = s.now()
	return nil
}

// DeleteThread removes the thread and its messages.
func (s *Store) DeleteThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return domain.ErrThreadNotFound
	}
	delete(s.threads, id)
	delete(s.messages, id)
	for i, tid := range s.order {
		if tid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) AppendMessage(_ context.Context, threadID string, role domain.Role, content string, sources []domain.Document) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return domain.Message{}, domain.ErrThreadNotFound
	}
	m := domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: s.now(),
	}
	s.messages[threadID] = append(s.messages[threadID], m)
	return m, nil
}

// ListMessages returns the thread's messages in creation order.
func (s *Store) ListMessages(_ context.Context, threadID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.threads[threadID]; !ok {
		return nil, domain.ErrThreadNotFound
	}
	msgs := s.messages[threadID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RecordSearchAudit(_ context.Context, threadID, query string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, domain.SearchAudit{
		ID:           uuid.NewString(),
		ThreadID:     threadID,
		Query:        query,
		ResultsCount: count,
		CreatedAt:    s.now(),
	})
	return nil
}

// Audits returns a copy of the recorded search audits.
func (s *Store) Audits() []domain.SearchAudit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SearchAudit, len(s.audits))
	copy(out, s.audits)
	return out
}
