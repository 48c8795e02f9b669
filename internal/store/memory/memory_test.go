package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"azchat/internal/domain"
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore() *Store {
	c := &tick{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore().WithClock(c.now)
}

func TestThreads(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create threads with the default title", func(t *testing.T) {
		s := newStore()
		th, err := s.CreateThread(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, th.ID)
		assert.Equal(t, domain.DefaultThreadTitle, th.Title)
	})

	t.Run("Should list most recently updated first", func(t *testing.T) {
		s := newStore()
		a, _ := s.CreateThread(ctx)
		b, _ := s.CreateThread(ctx)

		list, err := s.ListThreads(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{b.ID, a.ID}, []string{list[0].ID, list[1].ID})

		require.NoError(t, s.RenameThread(ctx, a.ID, "Vacation"))
		list, _ = s.ListThreads(ctx)
		assert.Equal(t, a.ID, list[0].ID)
		assert.Equal(t, "Vacation", list[0].Title)

		require.NoError(t, s.TouchThread(ctx, b.ID))
		list, _ = s.ListThreads(ctx)
		assert.Equal(t, b.ID, list[0].ID)
	})

	t.Run("Should delete a thread with its messages", func(t *testing.T) {
		s := newStore()
		th, _ := s.CreateThread(ctx)
		_, err := s.AppendMessage(ctx, th.ID, domain.RoleUser, "hi", nil)
		require.NoError(t, err)

		require.NoError(t, s.DeleteThread(ctx, th.ID))
		list, _ := s.ListThreads(ctx)
		assert.Empty(t, list)
		_, err = s.ListMessages(ctx, th.ID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Should report unknown threads", func(t *testing.T) {
		s := newStore()
		assert.ErrorIs(t, s.RenameThread(ctx, "nope", "x"), domain.ErrThreadNotFound)
		assert.ErrorIs(t, s.TouchThread(ctx, "nope"), domain.ErrThreadNotFound)
		assert.ErrorIs(t, s.DeleteThread(ctx, "nope"), domain.ErrThreadNotFound)
		_, err := s.AppendMessage(ctx, "nope", domain.RoleUser, "x", nil)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	th, _ := s.CreateThread(ctx)

	u, err := s.AppendMessage(ctx, th.ID, domain.RoleUser, "vacation policy", nil)
	require.NoError(t, err)
	src := []domain.Document{domain.NewDocument("blob", map[string]any{"title": "Policy"})}
	a, err := s.AppendMessage(ctx, th.ID, domain.RoleAssistant, "found it", src)
	require.NoError(t, err)

	msgs, err := s.ListMessages(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, u.ID, msgs[0].ID)
	assert.Equal(t, a.ID, msgs[1].ID)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	assert.Equal(t, "Policy", msgs[1].Sources[0].Title)
}

func TestRecordSearchAudit(t *testing.T) {
	s := newStore()
	require.NoError(t, s.RecordSearchAudit(context.Background(), "t1", "vacation", 2))
	audits := s.Audits()
	require.Len(t, audits, 1)
	assert.Equal(t, "vacation", audits[0].Query)
	assert.Equal(t, 2, audits[0].ResultsCount)
}
