package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
)

var ErrSignedURLRequired = errors.New("signed session url is required")

// Handlers receives session callbacks. Any field may be nil.
type Handlers struct {
	OnMessage    func(conversation.Event)
	OnError      func(error)
	OnDisconnect func(error)
}

// DialOptions tunes the websocket connection.
type DialOptions struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

// DefaultDialOptions mirrors the vendor's keepalive expectations.
func DefaultDialOptions() DialOptions {
	return DialOptions{
		HandshakeTimeout: 15 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// Dialer opens live conversation sessions.
type Dialer struct {
	options DialOptions
}

// NewDialer fills zero options with defaults.
func NewDialer(options DialOptions) *Dialer {
	defaults := DefaultDialOptions()
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaults.ReadTimeout
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = defaults.WriteTimeout
	}
	if options.PingInterval <= 0 {
		options.PingInterval = defaults.PingInterval
	}
	return &Dialer{options: options}
}

// Dial opens the session authorised by signedURL, as issued by
// Client.GetSignedURL. No retry is attempted.
func (d *Dialer) Dial(ctx context.Context, signedURL string, handlers Handlers) (*Session, error) {
	signedURL = strings.TrimSpace(signedURL)
	if signedURL == "" {
		return nil, ErrSignedURLRequired
	}

	endpoint, err := sessionURL(signedURL)
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{HandshakeTimeout: d.options.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	s := &Session{
		conn:     conn,
		handlers: handlers,
		options:  d.options,
		closed:   make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(d.options.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(d.options.ReadTimeout))
		return nil
	})

	if err := s.writeJSON(map[string]any{"type": "conversation_initiation_client_data"}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send initiation: %w", err)
	}

	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

// sessionURL keeps the signed query untouched; only an http(s) scheme is
// mapped to its websocket form.
func sessionURL(signedURL string) (string, error) {
	parsed, err := url.Parse(signedURL)
	if err != nil {
		return "", fmt.Errorf("invalid signed url: %w", err)
	}
	switch parsed.Scheme {
	case "ws", "wss":
		return signedURL, nil
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid signed url scheme %q", parsed.Scheme)
	}
	return parsed.String(), nil
}

// Session is one live conversation.
type Session struct {
	conn     *websocket.Conn
	handlers Handlers
	options  DialOptions

	writeMu   sync.Mutex
	metaMu    sync.RWMutex
	convID    string
	closed    chan struct{}
	closeOnce sync.Once
	local     bool
}

// ConversationID is known once the vendor sends initiation metadata.
func (s *Session) ConversationID() string {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.convID
}

// Close ends the session. Safe to call more than once.
func (s *Session) Close() error {
	s.metaMu.Lock()
	s.local = true
	s.metaMu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
	s.writeMu.Unlock()

	return s.shutdown()
}

func (s *Session) shutdown() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

type inboundEvent struct {
	Type string `json:"type"`

	InitiationMetadata *struct {
		ConversationID string `json:"conversation_id"`
	} `json:"conversation_initiation_metadata_event,omitempty"`

	UserTranscription *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`

	AgentResponse *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	Ping *struct {
		EventID int64 `json:"event_id"`
		PingMS  int64 `json:"ping_ms"`
	} `json:"ping_event,omitempty"`

	// generic shape used by text-only deployments
	Message string `json:"message,omitempty"`
	Source  string `json:"source,omitempty"`
	Role    string `json:"role,omitempty"`
}

func (s *Session) readLoop() {
	var exitErr error
	defer func() {
		_ = s.shutdown()
		s.metaMu.RLock()
		local := s.local
		s.metaMu.RUnlock()
		if local {
			exitErr = nil
		}
		if s.handlers.OnDisconnect != nil {
			s.handlers.OnDisconnect(exitErr)
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			exitErr = err
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))

		var evt inboundEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Printf("[elevenlabs] dropping undecodable event: %v", err)
			continue
		}
		s.dispatch(evt)
	}
}

func (s *Session) dispatch(evt inboundEvent) {
	switch evt.Type {
	case "conversation_initiation_metadata":
		if evt.InitiationMetadata != nil {
			s.metaMu.Lock()
			s.convID = evt.InitiationMetadata.ConversationID
			s.metaMu.Unlock()
		}
	case "user_transcript":
		if evt.UserTranscription != nil {
			s.emit(conversation.Event{Message: evt.UserTranscription.UserTranscript, Source: "user"})
		}
	case "agent_response":
		if evt.AgentResponse != nil {
			s.emit(conversation.Event{Message: evt.AgentResponse.AgentResponse, Source: "ai"})
		}
	case "ping":
		if evt.Ping == nil {
			return
		}
		if err := s.writeJSON(map[string]any{"type": "pong", "event_id": evt.Ping.EventID}); err != nil {
			s.fail(fmt.Errorf("pong failed: %w", err))
		}
	case "error":
		s.fail(fmt.Errorf("server error: %s", evt.Message))
	case "audio", "interruption", "vad_score", "internal_tentative_agent_response", "agent_response_correction":
	case "message":
		s.emit(conversation.Event{Message: evt.Message, Source: evt.Source, Role: evt.Role})
	default:
		if evt.Message != "" {
			s.emit(conversation.Event{Message: evt.Message, Source: evt.Source, Role: evt.Role})
		}
	}
}

func (s *Session) emit(evt conversation.Event) {
	if s.handlers.OnMessage != nil {
		s.handlers.OnMessage(evt)
	}
}

func (s *Session) fail(err error) {
	log.Printf("[elevenlabs] session error: %v", err)
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
