// Package store selects the conversation store backend named in the config.
package store

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"azchat/internal/config"
	"azchat/internal/domain"
	"azchat/internal/store/memory"
	"azchat/internal/store/postgres"
	"azchat/internal/store/supabase"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FromConfig opens the configured backend. The returned closer releases its
// connections.
func FromConfig(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (domain.ConversationStore, io.Closer, error) {
	switch cfg.Type {
	case "memory", "":
		log.Info().Msg("using in-memory conversation store")
		return memory.NewStore(), nopCloser{}, nil
	case "supabase":
		if cfg.Supabase == nil {
			return nil, nil, fmt.Errorf("store type supabase requires a supabase section")
		}
		s, err := supabase.NewStore(supabase.Config{
			URL:    cfg.Supabase.URL,
			Key:    config.Secret(cfg.Supabase.Key, cfg.Supabase.KeyEnv),
			Schema: cfg.Supabase.Schema,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("url", cfg.Supabase.URL).Msg("using supabase conversation store")
		return s, nopCloser{}, nil
	case "postgres":
		if cfg.Postgres == nil {
			return nil, nil, fmt.Errorf("store type postgres requires a postgres section")
		}
		s, err := postgres.Connect(ctx, config.Secret(cfg.Postgres.DSN, cfg.Postgres.DSNEnv))
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.EnsureSchema {
			if err := s.EnsureSchema(ctx); err != nil {
				_ = s.Close()
				return nil, nil, err
			}
		}
		log.Info().Msg("using postgres conversation store")
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
