package conversation

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	convmodel "github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/agentdetail"
	convservice "github.com/gptdeivid/hack-11labs/backend/internal/service/conversation"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/transcript"
	"github.com/gptdeivid/hack-11labs/backend/pkg/utils"
)

const keepAliveInterval = 15 * time.Second

// Handler 会话控制的HTTP处理器
type Handler struct {
	manager *convservice.Manager
	fetcher agentdetail.Fetcher
}

// New 创建会话处理器
func New(manager *convservice.Manager, fetcher agentdetail.Fetcher) *Handler {
	return &Handler{manager: manager, fetcher: fetcher}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(cr chi.Router) {
		cr.Post("/", h.handleCreate)
		cr.Get("/{conversationID}", h.handleStatus)
		cr.Delete("/{conversationID}", h.handleRelease)
		cr.Post("/{conversationID}/start", h.handleStart)
		cr.Post("/{conversationID}/stop", h.handleStop)
		cr.Get("/{conversationID}/transcript", h.handleTranscript)
		cr.Get("/{conversationID}/export", h.handleExport)
		cr.Get("/{conversationID}/events", h.handleEvents)
	})
}

type startPayload struct {
	AgentID           string `json:"agentId"`
	MicrophoneGranted *bool  `json:"microphoneGranted,omitempty"`
}

type statusResponse struct {
	ID         string           `json:"id"`
	AgentID    string           `json:"agentId"`
	AgentName  string           `json:"agentName"`
	Status     convmodel.Status `json:"status"`
	Entries    int              `json:"entries"`
	LastExport string           `json:"lastExport,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// handleCreate 加载agent并启动会话
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload startPayload
	if err := decodeOptional(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.AgentID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	loader := agentdetail.New(h.fetcher, nil)
	defer loader.Close()
	state := loader.Load(r.Context(), payload.AgentID)
	if state.Phase != agentdetail.PhaseLoaded || state.Details == nil {
		utils.RespondJSON(w, http.StatusBadGateway, state)
		return
	}

	handle, err := h.manager.Create(r.Context(), state.Details.Reference(), nil)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	code, resp := h.start(r, handle, payload)
	if code != http.StatusOK {
		// a create that never connected leaves nothing for the page to clean up
		if err := h.manager.Release(r.Context(), handle.ID); err != nil {
			log.Printf("[conversation] release failed create id=%s: %v", handle.ID, err)
		}
		utils.RespondJSON(w, code, resp)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, resp)
}

// handleStart 重新启动已有会话
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload startPayload
	if err := decodeOptional(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code, resp := h.start(r, handle, payload)
	utils.RespondJSON(w, code, resp)
}

func (h *Handler) start(r *http.Request, handle *convservice.Handle, payload startPayload) (int, statusResponse) {
	if payload.MicrophoneGranted != nil {
		handle.ReportMicrophone(*payload.MicrophoneGranted)
	}

	err := handle.Controller.Start(r.Context(), handle.Agent.ID)
	resp := describe(handle)
	switch {
	case err == nil:
		return http.StatusOK, resp
	case errors.Is(err, convservice.ErrSessionActive):
		resp.Error = err.Error()
		return http.StatusConflict, resp
	case errors.Is(err, convservice.ErrMicrophoneDenied):
		resp.Error = err.Error()
		return http.StatusForbidden, resp
	default:
		log.Printf("[conversation] start failed id=%s: %v", handle.ID, err)
		resp.Error = err.Error()
		return http.StatusBadGateway, resp
	}
}

// handleStop 结束会话
func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := handle.Controller.Stop(r.Context()); err != nil {
		log.Printf("[conversation] stop id=%s: %v", handle.ID, err)
	}
	utils.RespondJSON(w, http.StatusOK, describe(handle))
}

// handleStatus 查询会话状态
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, describe(handle))
}

// handleRelease 离开页面时释放会话
func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if err := h.manager.Release(r.Context(), id); err != nil {
		if errors.Is(err, convservice.ErrConversationNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("[conversation] release id=%s: %v", id, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript 返回转录内容
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":      handle.ID,
		"entries": handle.Controller.Transcript(),
	})
}

// handleExport 以文本附件导出转录；?save=true 时同时写入导出目录
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.lookup(w, r)
	if !ok {
		return
	}

	artifact, err := handle.Controller.Export()
	if errors.Is(err, transcript.ErrEmptyTranscript) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("save") == "true" {
		if _, err := handle.Controller.SaveExport(r.Context()); err != nil {
			log.Printf("[conversation] save export id=%s: %v", handle.ID, err)
		}
	}

	utils.RespondAttachment(w, artifact.FileName, "text/plain; charset=utf-8", artifact.Content)
}

// handleEvents 通过SSE推送通知
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.lookup(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	notes, cancel := handle.Controller.Notifier().Subscribe(32)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] opening notification stream for conversation=%s", handle.ID)

	if err := utils.SendSSEEvent(w, flusher, convservice.KindStatus, describe(handle)); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing notification stream for conversation=%s", handle.ID)
			return
		case note, open := <-notes:
			if !open {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, note.Kind, note); err != nil {
				log.Printf("[sse] write failed conversation=%s: %v", handle.ID, err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*convservice.Handle, bool) {
	handle, err := h.manager.Get(chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return handle, true
}

func describe(handle *convservice.Handle) statusResponse {
	return statusResponse{
		ID:         handle.ID,
		AgentID:    handle.Agent.ID,
		AgentName:  handle.Agent.Name,
		Status:     handle.Controller.Status(),
		Entries:    len(handle.Controller.Transcript()),
		LastExport: handle.Controller.LastExport(),
	}
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
