package prompt

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	catalog "github.com/zhouzirui/aura/backend/internal/model/prompt"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// Handler 推荐问题的HTTP处理器
type Handler struct {
	prompts catalog.Store
}

// New 创建推荐问题处理器
func New(prompts catalog.Store) *Handler {
	return &Handler{
		prompts: prompts,
	}
}

// RegisterRoutes 注册推荐问题相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/aura/prompts", h.handleListPrompts)
}

// handleListPrompts 按页面路径返回推荐问题分组
func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	utils.RespondJSON(w, http.StatusOK, h.prompts.ForPage(page))
}
