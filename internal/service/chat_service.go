package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"azchat/internal/domain"
)

// titleWords bounds the number of words a derived thread title keeps.
const titleWords = 6

// Fanout dispatches a query to the selected search sources.
type Fanout interface {
	Search(ctx context.Context, query, selected string) domain.Aggregate
	Sources() []string
}

// Composer renders an aggregate as an assistant reply.
type Composer interface {
	Compose(agg domain.Aggregate) domain.Reply
}

// Turn is the outcome of one user message.
type Turn struct {
	User      domain.Message
	Assistant domain.Message
	Aggregate domain.Aggregate
	// TitleChanged is set when the thread was renamed from the first message.
	TitleChanged bool
}

type ChatServiceImpl struct {
	store         domain.ConversationStore
	fanout        Fanout
	composer      Composer
	defaultSource string
	log           zerolog.Logger
}

func NewChatService(store domain.ConversationStore, fanout Fanout, composer Composer, defaultSource string, log zerolog.Logger) *ChatServiceImpl {
	if defaultSource == "" {
		if names := fanout.Sources(); len(names) > 0 {
			defaultSource = names[0]
		}
	}
	return &ChatServiceImpl{
		store:         store,
		fanout:        fanout,
		composer:      composer,
		defaultSource: defaultSource,
		log:           log.With().Str("component", "chat").Logger(),
	}
}

// Sources lists the values accepted as a source selection, the configured
// sources followed by domain.AllSources when there is more than one.
func (s *ChatServiceImpl) Sources() []string {
	names := s.fanout.Sources()
	if len(names) > 1 {
		names = append(names, domain.AllSources)
	}
	return names
}

func (s *ChatServiceImpl) DefaultSource() string { return s.defaultSource }

func (s *ChatServiceImpl) NewThread(ctx context.Context) (domain.Thread, error) {
	t, err := s.store.CreateThread(ctx)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	s.log.Info().Str("thread", t.ID).Msg("thread created")
	return t, nil
}

func (s *ChatServiceImpl) Threads(ctx context.Context) ([]domain.Thread, error) {
	return s.store.ListThreads(ctx)
}

func (s *ChatServiceImpl) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is empty")
	}
	return s.store.RenameThread(ctx, id, title)
}

func (s *ChatServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteThread(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("thread", id).Msg("thread deleted")
	return nil
}

func (s *ChatServiceImpl) Messages(ctx context.Context, threadID string) ([]domain.Message, error) {
	return s.store.ListMessages(ctx, threadID)
}

// Send runs one chat turn: it stores the user message, searches the selected
// source, stores the composed assistant reply and returns both.
func (s *ChatServiceImpl) Send(ctx context.Context, threadID, content, source string) (Turn, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Turn{}, domain.ErrEmptyMessage
	}
	if source == "" {
		source = s.defaultSource
	}
	start := time.Now()
	log := s.log.With().Str("thread", threadID).Str("source", source).Logger()

	prior, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return Turn{}, fmt.Errorf("load messages: %w", err)
	}

	var turn Turn
	turn.User, err = s.store.AppendMessage(ctx, threadID, domain.RoleUser, content, nil)
	if err != nil {
		return Turn{}, fmt.Errorf("save message: %w", err)
	}

	if len(prior) == 0 {
		if err := s.store.RenameThread(ctx, threadID, DeriveTitle(content)); err != nil {
			log.Warn().Err(err).Msg("failed to set thread title")
		} else {
			turn.TitleChanged = true
		}
	} else if err := s.store.TouchThread(ctx, threadID); err != nil {
		log.Warn().Err(err).Msg("failed to touch thread")
	}

	turn.Aggregate = s.fanout.Search(ctx, content, source)
	for _, r := range turn.Aggregate.Results {
		if r.Error != "" {
			log.Warn().Str("failed_source", r.Source).Str("error", r.Error).Msg("search source failed")
		}
	}

	if err := s.store.RecordSearchAudit(ctx, threadID, content, turn.Aggregate.TotalResults); err != nil {
		log.Warn().Err(err).Msg("failed to record search audit")
	}

	reply := s.composer.Compose(turn.Aggregate)
	turn.Assistant, err = s.store.AppendMessage(ctx, threadID, domain.RoleAssistant, reply.Text, reply.Sources)
	if err != nil {
		return turn, fmt.Errorf("save reply: %w", err)
	}

	log.Info().
		Int("results", turn.Aggregate.TotalResults).
		Dur("elapsed", time.Since(start)).
		Msg("turn completed")
	return turn, nil
}

// DeriveTitle builds a thread title from the first words of a message,
// appending "..." when words were dropped.
func DeriveTitle(content string) string {
	words := strings.Fields(content)
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}
