// Package storage provides the whole-value slots the chat store persists to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by Load when a slot has never been written.
var ErrNotFound = errors.New("slot not found")

// Slot keys used by the chat store.
const (
	ConversationSlot = "aura-chat-history"
	SessionsSlot     = "aura-chat-sessions"
)

// Slots stores opaque values by key. Save overwrites the whole value.
type Slots interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a Slots backend.
type Config struct {
	Driver    string
	Path      string
	RedisURL  string
	KeyPrefix string
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (Slots, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	logger = logger.With().Str("component", "storage").Str("driver", driver).Logger()

	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Path)
	case "redis":
		return NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.KeyPrefix)
	default:
		logger.Error().Msg("unknown storage driver")
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
