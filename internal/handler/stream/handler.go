package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/metrics"
	"github.com/zhouzirui/aura/backend/internal/model/chat"
	"github.com/zhouzirui/aura/backend/internal/service/ai"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// Handler serves the assistant frame protocol over Server-Sent Events.
type Handler struct {
	responder ai.Responder
	log       zerolog.Logger
}

// New creates a new stream handler
func New(responder ai.Responder, logger zerolog.Logger) *Handler {
	return &Handler{
		responder: responder,
		log:       logger.With().Str("component", "stream_handler").Str("responder", responder.Name()).Logger(),
	}
}

// RegisterRoutes 注册助手流式接口
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/aura/chat", h.handleChat)
}

// handleChat writes meta, block, followups and done frames for one request.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var req chat.StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" && len(req.Attachments) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := ai.EmitterFunc(func(event string, payload any) error {
		return utils.SendSSEEvent(w, flusher, event, payload)
	})

	err := h.responder.Respond(r.Context(), req, emit)
	status := "ok"
	switch {
	case err == nil:
		h.log.Info().Int("attachments", len(req.Attachments)).Msg("response completed")
	case errors.Is(err, context.Canceled):
		// 客户端断开或取消，流在 done 之前结束。
		status = "cancelled"
		h.log.Info().Msg("client went away")
	default:
		// 响应头已发送，只能截断流，客户端会按错误处理。
		status = "error"
		h.log.Warn().Err(err).Msg("response failed")
	}
	metrics.RecordResponse(h.responder.Name(), status)
}
