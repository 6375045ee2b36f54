package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gptdeivid/hack-11labs/backend/internal/handler/agent"
	"github.com/gptdeivid/hack-11labs/backend/internal/handler/conversation"
	middlewarePkg "github.com/gptdeivid/hack-11labs/backend/internal/middleware"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/agentdetail"
	convService "github.com/gptdeivid/hack-11labs/backend/internal/service/conversation"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/directory"
	"github.com/gptdeivid/hack-11labs/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil fetcher resolves agent
// details from the directory itself.
func NewRouter(dir *directory.Provider, fetcher agentdetail.Fetcher, manager *convService.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	agentHandler := agent.New(dir, fetcher)
	if fetcher == nil {
		fetcher = dir
	}
	conversationHandler := conversation.New(manager, fetcher)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		// Agent directory and details
		agentHandler.RegisterRoutes(api)

		// Conversation lifecycle, transcript and notifications
		conversationHandler.RegisterRoutes(api)
	})

	return r
}
