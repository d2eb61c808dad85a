package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	chatService "github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/service/stream"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// Handler 聊天引擎的HTTP处理器
type Handler struct {
	controller *stream.Controller
	store      *chatService.Store
	log        zerolog.Logger
}

// New 创建聊天处理器
func New(controller *stream.Controller, store *chatService.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		controller: controller,
		store:      store,
		log:        logger.With().Str("component", "chat_handler").Logger(),
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/aura", func(r chi.Router) {
		r.Get("/conversation", h.handleGetConversation)
		r.Post("/conversation/new", h.handleNewConversation)
		r.Delete("/conversation", h.handleClearConversation)

		r.Post("/messages", h.handleSendMessage)
		r.Post("/cancel", h.handleCancel)
		r.Put("/messages/{messageID}/feedback", h.handleFeedback)

		r.Get("/sessions", h.handleListSessions)
		r.Post("/sessions/{sessionID}/activate", h.handleActivateSession)
		r.Delete("/sessions/{sessionID}", h.handleDeleteSession)

		r.Get("/attachments", h.handleListAttachments)
		r.Post("/attachments", h.handleAddAttachment)
		r.Delete("/attachments/{index}", h.handleRemoveAttachment)
	})
}

// conversationView 是返回给前端的会话快照
type conversationView struct {
	ID        string         `json:"id"`
	Messages  []chat.Message `json:"messages"`
	Streaming bool           `json:"streaming"`
	State     stream.State   `json:"state"`
}

func (h *Handler) conversation() conversationView {
	conv := h.store.Conversation()
	messages := conv.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	return conversationView{
		ID:        conv.ID,
		Messages:  messages,
		Streaming: conv.ActiveStreamTargetID != "",
		State:     h.controller.State(),
	}
}

// handleGetConversation 返回当前会话
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.conversation())
}

// handleSendMessage 发送消息并在后台接收回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// 回复的生命周期独立于本次请求，只能通过取消接口结束。
	flight, err := h.controller.Start(context.WithoutCancel(r.Context()), payload.Message)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]any{
		"userMessage": flight.UserMessage,
		"placeholder": flight.Placeholder,
	})
}

// handleCancel 取消正在进行的回复
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"cancelled": h.controller.Cancel()})
}

// handleNewConversation 归档当前会话并新建会话
func (h *Handler) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.NewConversation(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.conversation())
}

// handleClearConversation 清空当前会话
func (h *Handler) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.ClearConversation(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListSessions 列出历史会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Sessions())
}

// handleActivateSession 切换到历史会话
func (h *Handler) handleActivateSession(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.ActivateSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.conversation())
}

// handleDeleteSession 删除历史会话
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFeedback 设置或取消消息反馈
func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Feedback chat.Feedback `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.store.SetFeedback(r.Context(), chi.URLParam(r, "messageID"), payload.Feedback)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, msg)
}

// handleListAttachments 列出待发送的附件
func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.controller.Attachments())
}

// handleAddAttachment 添加附件元数据
func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	var payload chat.Attachment
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if payload.Size < 0 {
		utils.RespondError(w, http.StatusBadRequest, "size must not be negative")
		return
	}

	h.controller.AddAttachment(payload)
	utils.RespondJSON(w, http.StatusCreated, h.controller.Attachments())
}

// handleRemoveAttachment 按序号移除附件
func (h *Handler) handleRemoveAttachment(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	if err := h.controller.RemoveAttachment(index); err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.controller.Attachments())
}

// respondErr 将领域错误映射为HTTP状态码
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, stream.ErrSendInFlight), errors.Is(err, chatService.ErrStreamInFlight):
		status = http.StatusConflict
	case errors.Is(err, chatService.ErrSessionNotFound),
		errors.Is(err, chatService.ErrMessageNotFound),
		errors.Is(err, stream.ErrAttachmentMissing):
		status = http.StatusNotFound
	case errors.Is(err, stream.ErrEmptyMessage), errors.Is(err, chatService.ErrInvalidFeedback):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	utils.RespondError(w, status, err.Error())
}
