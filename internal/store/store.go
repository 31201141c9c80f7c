package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relay-lounge/internal/config"

	"github.com/rs/zerolog/log"
)

const (
	CollectionAccounts    = "accounts"
	CollectionRooms       = "rooms"
	CollectionShoutbox    = "shoutbox"
	CollectionOpenPots    = "open_pots"
	CollectionPotHistory  = "pot_history"
	CollectionGameResults = "game_results"
)

// Store serializes domain collections into a Documents backend.
type Store struct {
	docs Documents
}

func New(docs Documents) *Store {
	return &Store{docs: docs}
}

// Open builds the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.ServerConfig) (*Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		docs, err := NewFileDocuments(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return New(docs), nil
	case config.StorePostgres:
		docs, err := NewPostgresDocuments(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := docs.Ping(ctx); err != nil {
			_ = docs.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if err := docs.EnsureSchema(ctx); err != nil {
			_ = docs.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return New(docs), nil
	case config.StoreRedis:
		docs, err := NewRedisDocuments(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return New(docs), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.docs.Ping(ctx) }

func (s *Store) Close() error { return s.docs.Close() }

// Load reads every collection. Missing or unreadable collections come back
// empty and are logged; startup never fails on bad data.
func (s *Store) Load(ctx context.Context) Snapshot {
	return Snapshot{
		Accounts:    loadCollection[Account](ctx, s, CollectionAccounts),
		Rooms:       loadCollection[Room](ctx, s, CollectionRooms),
		Shoutbox:    loadCollection[ShoutboxMessage](ctx, s, CollectionShoutbox),
		OpenPots:    loadCollection[OpenPot](ctx, s, CollectionOpenPots),
		PotHistory:  loadCollection[PotHistory](ctx, s, CollectionPotHistory),
		GameResults: loadCollection[GameResult](ctx, s, CollectionGameResults),
	}
}

func (s *Store) SaveAccounts(ctx context.Context, v []Account) error {
	return s.save(ctx, CollectionAccounts, v)
}

func (s *Store) SaveRooms(ctx context.Context, v []Room) error {
	return s.save(ctx, CollectionRooms, v)
}

func (s *Store) SaveShoutbox(ctx context.Context, v []ShoutboxMessage) error {
	return s.save(ctx, CollectionShoutbox, v)
}

func (s *Store) SaveOpenPots(ctx context.Context, v []OpenPot) error {
	return s.save(ctx, CollectionOpenPots, v)
}

func (s *Store) SavePotHistory(ctx context.Context, v []PotHistory) error {
	return s.save(ctx, CollectionPotHistory, v)
}

func (s *Store) SaveGameResults(ctx context.Context, v []GameResult) error {
	return s.save(ctx, CollectionGameResults, v)
}

func (s *Store) save(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.docs.Put(ctx, name, body); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func loadCollection[T any](ctx context.Context, s *Store, name string) []T {
	body, err := s.docs.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("collection", name).Msg("load collection failed")
		return nil
	}
	var out []T
	if err := json.Unmarshal(body, &out); err != nil {
		log.Error().Err(err).Str("collection", name).Msg("collection is corrupt, starting empty")
		return nil
	}
	return out
}
