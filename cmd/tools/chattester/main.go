// Command chattester drives the chat engine against a running assistant
// endpoint and inspects the persisted session history.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/aura/backend/internal/config"
	"github.com/zhouzirui/aura/backend/internal/logger"
	chatservice "github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/storage"
)

var (
	upstream      string
	storageDriver string
	storagePath   string
	redisURL      string
	verbose       bool
	timeout       time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chattester",
	Short: "Exercise the Aura chat engine from the command line",
	Long: `chattester sends messages through the same stream controller the API uses
and prints the reconciled answer. History is kept in the configured storage
backend so consecutive runs continue the same conversation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&upstream, "upstream", "", "Assistant base URL (default: AURA_UPSTREAM_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&storageDriver, "storage", "", "Storage driver: memory, file, sqlite, redis (default: STORAGE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&storagePath, "storage-path", "", "Directory or database file for file/sqlite storage")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Redis URL for redis storage")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(newCmd)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles what every subcommand needs.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	slots storage.Slots
	store *chatservice.Store
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg)

	logCfg := cfg.Log
	logCfg.Service = "chattester"
	if verbose {
		logCfg.Level = "debug"
	} else if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	log := logger.NewWithWriter(logCfg, os.Stderr)

	slots, err := storage.Open(ctx, cfg.Storage.Slots(), log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := chatservice.NewStore(slots, log, chatservice.Options{
		MaxMessages: cfg.Aura.MaxMessages,
		MaxSessions: cfg.Aura.MaxSessions,
	})
	if err := store.Load(ctx); err != nil {
		slots.Close()
		return nil, fmt.Errorf("restore chat state: %w", err)
	}

	return &env{cfg: cfg, log: log, slots: slots, store: store}, nil
}

func (e *env) Close() error {
	return e.slots.Close()
}

func applyFlags(cfg *config.Config) {
	if upstream != "" {
		cfg.Aura.UpstreamURL = upstream
	}
	if cfg.Aura.UpstreamURL == "" {
		cfg.Aura.UpstreamURL = "http://localhost:8080"
	}
	if storageDriver != "" {
		cfg.Storage.Driver = storageDriver
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if redisURL != "" {
		cfg.Storage.RedisURL = redisURL
	}
}
