package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/gptdeivid/hack-11labs/backend/internal/config"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/agentdetail"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/conversation"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/directory"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/elevenlabs"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/transcript"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.ElevenLabs.Enabled() {
		log.Fatal("ELEVENLABS_API_KEY is required to talk to an agent")
	}

	agentID := flag.String("agent", "", "agent id (defaults to AGENT_ID, then the first listed agent)")
	timeout := flag.Duration("timeout", 30*time.Second, "timeout for directory and detail requests")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:  cfg.ElevenLabs.APIKey,
		BaseURL: cfg.ElevenLabs.BaseURL,
		Timeout: cfg.ElevenLabs.Timeout,
	})
	if err != nil {
		log.Fatalf("failed to initialize ElevenLabs client: %v", err)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, *timeout)
	listing, err := directory.NewRemote(client, cfg.Conversation.DefaultAgentID).Listing(lookupCtx, *agentID)
	if err != nil {
		cancel()
		color.Red("Error loading agents: %v\n", err)
		os.Exit(1)
	}
	if listing.DefaultID == "" {
		cancel()
		color.Yellow("No agents available\n")
		return
	}

	loader := agentdetail.New(client, nil)
	state := loader.Load(lookupCtx, listing.DefaultID)
	cancel()
	if state.Phase != agentdetail.PhaseLoaded || state.Details == nil {
		color.Red("Error: %s\n", state.Error)
		os.Exit(1)
	}
	details := *state.Details

	controller := conversation.NewController(conversation.Options{
		AgentName: details.Name,
		Signer:    client,
		Dialer: conversation.WebSocketDialer(elevenlabs.NewDialer(elevenlabs.DialOptions{
			HandshakeTimeout: cfg.ElevenLabs.Timeout,
		})),
		Audio:      conversation.GrantedAudio,
		Exporter:   transcript.NewExporter(cfg.Conversation.ExportDir),
		AutoExport: cfg.Conversation.AutoExport,
	})

	notes, unsubscribe := controller.Notifier().Subscribe(64)
	defer unsubscribe()
	go printNotifications(notes)

	cyan := color.New(color.FgCyan)
	cyan.Printf("¿Quieres platicar con %s?\n", details.Name)
	if details.FirstMessage != "" {
		fmt.Printf("  %s\n", details.FirstMessage)
	}
	fmt.Println("commands: start, stop, status, export, quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			shutdown(controller)
			return
		case line, ok := <-lines:
			if !ok {
				shutdown(controller)
				return
			}
			if !runCommand(ctx, controller, details.ID, line) {
				shutdown(controller)
				return
			}
		}
	}
}

func runCommand(ctx context.Context, controller *conversation.Controller, agentID, line string) bool {
	switch strings.ToLower(line) {
	case "":
	case "start":
		if err := controller.Start(ctx, agentID); err != nil {
			color.Red("Failed to start conversation: %v\n", err)
		}
	case "stop":
		if err := controller.Stop(ctx); err != nil {
			color.Red("Failed to stop conversation: %v\n", err)
		}
	case "status":
		fmt.Printf("status=%s entries=%d\n", controller.Status(), len(controller.Transcript()))
	case "export":
		path, err := controller.SaveExport(ctx)
		if errors.Is(err, transcript.ErrEmptyTranscript) {
			color.Yellow("Nothing to export yet\n")
			return true
		}
		if err != nil {
			color.Red("Export failed: %v\n", err)
			return true
		}
		fmt.Printf("saved %s\n", path)
	case "quit", "exit":
		return false
	default:
		color.Yellow("unknown command %q\n", line)
	}
	return true
}

func printNotifications(notes <-chan conversation.Notification) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	for note := range notes {
		switch note.Kind {
		case conversation.KindConnected, conversation.KindExported:
			green.Println(note.Text)
		case conversation.KindDisconnected:
			yellow.Println(note.Text)
		case conversation.KindError:
			color.Red("%s\n", note.Text)
		case conversation.KindMessage:
			sender, _ := note.Data["sender"].(string)
			message, _ := note.Data["message"].(string)
			fmt.Printf("%s: %s\n", color.CyanString(sender), message)
		case conversation.KindStatus:
			dim.Printf("[%s]\n", note.Text)
		}
	}
}

func shutdown(controller *conversation.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := controller.Stop(ctx); err != nil {
		log.Printf("[talk] stop: %v", err)
	}
}
