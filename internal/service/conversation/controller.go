package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/elevenlabs"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/transcript"
)

var (
	ErrAgentRequired    = errors.New("agent id is required")
	ErrSessionActive    = errors.New("conversation already active")
	ErrMicrophoneDenied = errors.New("microphone permission denied")
	ErrStartAborted     = errors.New("conversation stopped while connecting")
	ErrDisconnected     = errors.New("session disconnected while connecting")
)

// URLSigner hands out the signed websocket URL for one session.
type URLSigner interface {
	GetSignedURL(ctx context.Context, agentID string) (string, error)
}

// Session is an open vendor session.
type Session interface {
	Close() error
}

// Dialer opens vendor sessions.
type Dialer interface {
	Dial(ctx context.Context, signedURL string, handlers elevenlabs.Handlers) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, signedURL string, handlers elevenlabs.Handlers) (Session, error)

func (f DialerFunc) Dial(ctx context.Context, signedURL string, handlers elevenlabs.Handlers) (Session, error) {
	return f(ctx, signedURL, handlers)
}

// WebSocketDialer exposes an elevenlabs.Dialer as a Dialer.
func WebSocketDialer(d *elevenlabs.Dialer) Dialer {
	return DialerFunc(func(ctx context.Context, signedURL string, handlers elevenlabs.Handlers) (Session, error) {
		session, err := d.Dial(ctx, signedURL, handlers)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
}

// AudioInput checks that the microphone can be used.
type AudioInput interface {
	Acquire(ctx context.Context) error
}

// AudioFunc adapts a function to AudioInput.
type AudioFunc func(ctx context.Context) error

func (f AudioFunc) Acquire(ctx context.Context) error { return f(ctx) }

// GrantedAudio is used where capture happens outside this process.
var GrantedAudio AudioInput = AudioFunc(func(context.Context) error { return nil })

// Options wires a controller to its collaborators.
type Options struct {
	AgentName  string
	Signer     URLSigner
	Dialer     Dialer
	Audio      AudioInput
	Exporter   *transcript.Exporter
	AutoExport bool
	Notifier   *Notifier
	Now        func() time.Time
}

// Controller drives one conversation: idle -> connecting -> connected -> idle.
type Controller struct {
	opts   Options
	buffer *transcript.Buffer

	mu         sync.Mutex
	status     conversation.Status
	agentID    string
	session    Session
	generation int
	earlyDrop  error
	lastExport string
}

// NewController returns an idle controller.
func NewController(opts Options) *Controller {
	if opts.Audio == nil {
		opts.Audio = GrantedAudio
	}
	if opts.Notifier == nil {
		opts.Notifier = NewNotifier()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		opts:   opts,
		buffer: transcript.NewBuffer(),
		status: conversation.StatusIdle,
	}
}

// Notifier returns the controller's notification hub.
func (c *Controller) Notifier() *Notifier {
	return c.opts.Notifier
}

// Status returns the current connection state.
func (c *Controller) Status() conversation.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// AgentID returns the agent of the last start.
func (c *Controller) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

// AgentName is the display name used for export file names.
func (c *Controller) AgentName() string {
	return c.opts.AgentName
}

// LastExport is the path of the most recent saved export.
func (c *Controller) LastExport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastExport
}

// Transcript returns the buffered entries in receipt order.
func (c *Controller) Transcript() []conversation.Entry {
	return c.buffer.Entries()
}

// Start opens a live session for agentID. On any failure the state returns to
// idle and the error is returned; nothing is retried.
func (c *Controller) Start(ctx context.Context, agentID string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return ErrAgentRequired
	}

	c.mu.Lock()
	if !c.status.CanStart() {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.generation++
	gen := c.generation
	c.status = conversation.StatusConnecting
	c.agentID = agentID
	c.earlyDrop = nil
	c.mu.Unlock()
	c.publishStatus(conversation.StatusConnecting)

	if err := c.opts.Audio.Acquire(ctx); err != nil {
		log.Printf("[conversation] microphone unavailable agent=%s: %v", agentID, err)
		c.abortStart(gen)
		return fmt.Errorf("%w: %v", ErrMicrophoneDenied, err)
	}

	if c.opts.Signer == nil || c.opts.Dialer == nil {
		c.abortStart(gen)
		return errors.New("conversation transport not configured")
	}

	signedURL, err := c.opts.Signer.GetSignedURL(ctx, agentID)
	if err != nil {
		log.Printf("[conversation] failed to get signed url agent=%s: %v", agentID, err)
		c.abortStart(gen)
		return fmt.Errorf("get signed url: %w", err)
	}

	session, err := c.opts.Dialer.Dial(ctx, signedURL, c.handlersFor(gen))
	if err != nil {
		log.Printf("[conversation] failed to start conversation agent=%s: %v", agentID, err)
		c.abortStart(gen)
		return fmt.Errorf("start session: %w", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		_ = session.Close()
		return ErrStartAborted
	}
	if c.earlyDrop != nil {
		dropErr := c.earlyDrop
		c.status = conversation.StatusIdle
		c.generation++
		c.mu.Unlock()
		_ = session.Close()
		c.publishStatus(conversation.StatusIdle)
		return fmt.Errorf("%w: %v", ErrDisconnected, dropErr)
	}
	c.status = conversation.StatusConnected
	c.session = session
	c.mu.Unlock()

	log.Printf("[conversation] connected agent=%s", agentID)
	c.opts.Notifier.Publish(Notification{Kind: KindConnected, Text: "Connected to agent"})
	c.publishStatus(conversation.StatusConnected)
	return nil
}

// Stop ends the active session unconditionally and leaves the controller idle.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	prev := c.status
	session := c.session
	c.session = nil
	c.status = conversation.StatusIdle
	c.generation++
	c.mu.Unlock()

	var closeErr error
	if session != nil {
		if err := session.Close(); err != nil {
			log.Printf("[conversation] close session: %v", err)
			closeErr = fmt.Errorf("close session: %w", err)
		}
	}

	if prev != conversation.StatusIdle {
		c.publishStatus(conversation.StatusIdle)
	}
	if prev == conversation.StatusConnected {
		c.afterDisconnect(ctx, nil)
	}
	return closeErr
}

// Export renders the current transcript without saving it.
func (c *Controller) Export() (*transcript.Artifact, error) {
	return transcript.Export(c.buffer.Entries(), c.opts.AgentName, c.opts.Now())
}

// SaveExport renders and writes the transcript through the exporter.
func (c *Controller) SaveExport(ctx context.Context) (string, error) {
	if c.opts.Exporter == nil {
		return "", errors.New("transcript exporter not configured")
	}
	artifact, err := c.Export()
	if err != nil {
		return "", err
	}
	path, err := c.opts.Exporter.Save(ctx, artifact)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.lastExport = path
	c.mu.Unlock()

	c.opts.Notifier.Publish(Notification{
		Kind: KindExported,
		Text: "Transcript exported",
		Data: map[string]any{"path": path, "lines": artifact.Lines},
	})
	return path, nil
}

func (c *Controller) handlersFor(gen int) elevenlabs.Handlers {
	return elevenlabs.Handlers{
		OnMessage: func(evt conversation.Event) {
			// append under c.mu so a concurrent Stop exports either with or
			// without this entry, never in between
			c.mu.Lock()
			if c.generation != gen {
				c.mu.Unlock()
				return
			}
			entry := c.buffer.Append(evt, c.opts.Now())
			c.mu.Unlock()
			c.opts.Notifier.Publish(Notification{
				Kind: KindMessage,
				Text: "Message: " + entry.Message,
				Data: map[string]any{"sender": entry.Sender, "message": entry.Message},
			})
		},
		OnError: func(err error) {
			c.opts.Notifier.Publish(Notification{Kind: KindError, Text: fmt.Sprintf("Error: %v", err)})
		},
		OnDisconnect: func(err error) {
			c.handleRemoteDisconnect(gen, err)
		},
	}
}

func (c *Controller) handleRemoteDisconnect(gen int, err error) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	switch c.status {
	case conversation.StatusConnecting:
		if err == nil {
			err = errors.New("closed by peer")
		}
		c.earlyDrop = err
		c.mu.Unlock()
		return
	case conversation.StatusConnected:
		c.status = conversation.StatusIdle
		c.session = nil
		c.generation++
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		return
	}

	if err != nil {
		log.Printf("[conversation] session dropped agent=%s: %v", c.AgentID(), err)
	}
	c.publishStatus(conversation.StatusIdle)
	c.afterDisconnect(context.Background(), err)
}

// afterDisconnect runs on every connected -> idle transition.
func (c *Controller) afterDisconnect(ctx context.Context, cause error) {
	note := Notification{Kind: KindDisconnected, Text: "Disconnected from agent"}
	if cause != nil {
		note.Data = map[string]any{"reason": cause.Error()}
	}
	c.opts.Notifier.Publish(note)

	if !c.opts.AutoExport || c.opts.Exporter == nil || c.buffer.Len() == 0 {
		return
	}
	if _, err := c.SaveExport(ctx); err != nil {
		log.Printf("[conversation] automatic export failed: %v", err)
		c.opts.Notifier.Publish(Notification{Kind: KindError, Text: fmt.Sprintf("Error: %v", err)})
	}
}

func (c *Controller) abortStart(gen int) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.status = conversation.StatusIdle
	c.generation++
	c.mu.Unlock()
	c.publishStatus(conversation.StatusIdle)
}

func (c *Controller) publishStatus(status conversation.Status) {
	c.opts.Notifier.Publish(Notification{
		Kind: KindStatus,
		Text: string(status),
		Data: map[string]any{"status": status},
	})
}
