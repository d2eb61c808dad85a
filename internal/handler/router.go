package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/handler/chat"
	"github.com/zhouzirui/aura/backend/internal/handler/live"
	"github.com/zhouzirui/aura/backend/internal/handler/prompt"
	"github.com/zhouzirui/aura/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/aura/backend/internal/middleware"
	promptModel "github.com/zhouzirui/aura/backend/internal/model/prompt"
	aiService "github.com/zhouzirui/aura/backend/internal/service/ai"
	chatService "github.com/zhouzirui/aura/backend/internal/service/chat"
	streamService "github.com/zhouzirui/aura/backend/internal/service/stream"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil responder leaves the
// frame producer endpoint unavailable.
func NewRouter(logger zerolog.Logger, controller *streamService.Controller, store *chatService.Store, prompts promptModel.Store, responder aiService.Responder) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	chatHandler := chat.New(controller, store, logger)
	promptHandler := prompt.New(prompts)
	liveHandler := live.New(store, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		promptHandler.RegisterRoutes(api)
		liveHandler.RegisterRoutes(api)

		if responder != nil {
			stream.New(responder, logger).RegisterRoutes(api)
		} else {
			api.Post("/aura/chat", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "assistant unavailable")
			})
		}
	})

	return r
}
