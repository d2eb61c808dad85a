package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/config"
	"github.com/zhouzirui/aura/backend/internal/handler"
	"github.com/zhouzirui/aura/backend/internal/logger"
	"github.com/zhouzirui/aura/backend/internal/model/prompt"
	"github.com/zhouzirui/aura/backend/internal/service/ai"
	"github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/service/stream"
	"github.com/zhouzirui/aura/backend/internal/storage"
	"github.com/zhouzirui/aura/backend/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("failed to load .env file, continuing with system environment variables only")
	}

	slots, err := storage.Open(ctx, cfg.Storage.Slots(), log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer slots.Close()

	store := chat.NewStore(slots, log, chat.Options{
		MaxMessages: cfg.Aura.MaxMessages,
		MaxSessions: cfg.Aura.MaxSessions,
	})
	if err := store.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore chat state")
	}

	prompts := prompt.NewMemoryStore(prompt.Defaults(), prompt.SeedPages())
	responder := newResponder(ctx, cfg, prompts, log)

	upstream := cfg.Aura.UpstreamURL
	if upstream == "" {
		upstream = "http://" + loopbackAddr(cfg.Server.Addr)
	}
	controller := stream.NewController(store, transport.NewHTTPTransport(upstream), log)
	log.Info().Str("upstream", upstream).Msg("chat engine ready")

	router := handler.NewRouter(log, controller, store, prompts, responder)

	drain := func(ctx context.Context) {
		if err := controller.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("in-flight send did not settle before shutdown")
		}
	}
	startServer(ctx, cfg.Server, router, drain, log)
}

// newResponder 优先使用大模型，未配置凭证时退回脚本回复。
func newResponder(ctx context.Context, cfg *config.Config, prompts prompt.Store, log zerolog.Logger) ai.Responder {
	if cfg.AI.Enabled() {
		svc, err := ai.NewService(ctx, cfg.AI, prompts, log)
		if err == nil {
			log.Info().Str("model", cfg.AI.Model).Msg("AI service initialized successfully")
			return svc
		}
		log.Warn().Err(err).Msg("failed to initialize AI service, falling back to scripted answers - 请检查 Ark 模型相关环境变量")
	} else {
		log.Info().Msg("Ark 凭证未配置，使用脚本回复")
	}
	return ai.NewScriptedResponder(prompts, cfg.Aura.ScriptedDelay, log)
}

// loopbackAddr turns a listen address such as ":8080" into one a local
// client can dial.
func loopbackAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, drain func(context.Context), log zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Aura backend listening")
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout, drain); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// runServer serves until ctx is done. drain runs before the server stops
// accepting requests so an in-flight send can settle while its upstream
// connection is still open.
func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, drain func(context.Context)) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if drain != nil {
			drain(shutdownCtx)
		}
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
