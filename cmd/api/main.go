package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gptdeivid/hack-11labs/backend/internal/config"
	"github.com/gptdeivid/hack-11labs/backend/internal/handler"
	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/agentdetail"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/conversation"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/directory"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/elevenlabs"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/transcript"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	var (
		dir     *directory.Provider
		fetcher agentdetail.Fetcher
		signer  conversation.URLSigner
		dialer  conversation.Dialer
	)

	if cfg.ElevenLabs.Enabled() {
		client, err := elevenlabs.NewClient(elevenlabs.Config{
			APIKey:  cfg.ElevenLabs.APIKey,
			BaseURL: cfg.ElevenLabs.BaseURL,
			Timeout: cfg.ElevenLabs.Timeout,
		})
		if err != nil {
			log.Fatalf("failed to initialize ElevenLabs client: %v", err)
		}
		dir = directory.NewRemote(client, cfg.Conversation.DefaultAgentID)
		fetcher = client
		signer = client
		dialer = conversation.WebSocketDialer(elevenlabs.NewDialer(elevenlabs.DialOptions{
			HandshakeTimeout: cfg.ElevenLabs.Timeout,
		}))
		log.Println("ElevenLabs client initialized successfully")
	} else {
		items, err := loadStaticAgents(cfg.Conversation.AgentsFile)
		if err != nil {
			log.Fatalf("failed to load agent directory: %v", err)
		}
		dir = directory.NewStatic(items, cfg.Conversation.DefaultAgentID)
		log.Printf("ELEVENLABS_API_KEY not set, serving %d agents from the static directory; conversations cannot start", len(items))
	}

	exporter := transcript.NewExporter(cfg.Conversation.ExportDir)
	manager := conversation.NewManager(signer, dialer, exporter, cfg.Conversation.AutoExport)
	defer manager.Shutdown(context.Background())

	router := handler.NewRouter(dir, fetcher, manager)

	startServer(ctx, cfg.Server, router)
}

func loadStaticAgents(path string) ([]agent.Details, error) {
	if path == "" {
		return nil, nil
	}
	return agent.LoadFile(path)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("conversation backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
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
