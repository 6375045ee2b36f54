package agent

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gptdeivid/hack-11labs/backend/internal/service/agentdetail"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/directory"
	"github.com/gptdeivid/hack-11labs/backend/pkg/utils"
)

// Handler agent 目录与详情的HTTP处理器
type Handler struct {
	directory *directory.Provider
	fetcher   agentdetail.Fetcher
}

// New 创建agent处理器
func New(dir *directory.Provider, fetcher agentdetail.Fetcher) *Handler {
	if fetcher == nil {
		fetcher = dir
	}
	return &Handler{directory: dir, fetcher: fetcher}
}

// RegisterRoutes 注册agent相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/agents", h.handleListAgents)
	r.Get("/agents/{agentID}", h.handleGetAgent)
}

// handleListAgents 列出所有agent，并给出默认选择
func (h *Handler) handleListAgents(w http.ResponseWriter, r *http.Request) {
	listing, err := h.directory.Listing(r.Context(), r.URL.Query().Get("agent_id"))
	if err != nil {
		log.Printf("[agent] error loading agents: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "Error loading agents: "+err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, listing)
}

// handleGetAgent 加载agent详情；客户端的重试即重新请求
func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	loader := agentdetail.New(h.fetcher, nil)
	defer loader.Close()

	state := loader.Load(r.Context(), agentID)
	switch {
	case state.Phase == agentdetail.PhaseFailed:
		utils.RespondJSON(w, http.StatusBadGateway, state)
	case state.Details == nil:
		utils.RespondError(w, http.StatusNotFound, "No agent details available")
	default:
		utils.RespondJSON(w, http.StatusOK, state)
	}
}
