package elevenlabs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
)

type fakeVendor struct {
	t        *testing.T
	upgrader websocket.Upgrader
	script   func(conn *websocket.Conn)
	requests chan *url.URL
}

func (f *fakeVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests <- r.URL
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	defer conn.Close()

	var initiation map[string]any
	if err := conn.ReadJSON(&initiation); err != nil {
		f.t.Errorf("read initiation: %v", err)
		return
	}
	f.script(conn)
}

// startVendor returns a signed URL pointing at a fake vendor socket.
func startVendor(t *testing.T, script func(conn *websocket.Conn)) (string, chan *url.URL) {
	t.Helper()
	vendor := &fakeVendor{t: t, script: script, requests: make(chan *url.URL, 1)}
	srv := httptest.NewServer(vendor)
	t.Cleanup(srv.Close)

	signed := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/convai/conversation?agent_id=agent_1&conversation_signature=sig-1"
	return signed, vendor.requests
}

func TestDialRequiresSignedURL(t *testing.T) {
	_, err := NewDialer(DialOptions{}).Dial(context.Background(), " ", Handlers{})
	assert.ErrorIs(t, err, ErrSignedURLRequired)
}

func TestSessionDeliversTranscriptEvents(t *testing.T) {
	pong := make(chan int64, 1)
	signed, requests := startVendor(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(map[string]any{
			"type": "conversation_initiation_metadata",
			"conversation_initiation_metadata_event": map[string]any{"conversation_id": "conv-1"},
		})
		_ = conn.WriteJSON(map[string]any{"type": "ping", "ping_event": map[string]any{"event_id": 7}})

		var reply struct {
			Type    string `json:"type"`
			EventID int64  `json:"event_id"`
		}
		if err := conn.ReadJSON(&reply); err == nil && reply.Type == "pong" {
			pong <- reply.EventID
		}

		_ = conn.WriteJSON(map[string]any{"type": "agent_response", "agent_response_event": map[string]any{"agent_response": "Hola"}})
		_ = conn.WriteJSON(map[string]any{"type": "audio", "audio_event": map[string]any{"audio_base_64": "AAAA"}})
		_ = conn.WriteJSON(map[string]any{"type": "user_transcript", "user_transcription_event": map[string]any{"user_transcript": "Buenas"}})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	})

	messages := make(chan conversation.Event, 4)
	disconnected := make(chan error, 1)
	session, err := NewDialer(DialOptions{}).Dial(context.Background(), signed, Handlers{
		OnMessage:    func(evt conversation.Event) { messages <- evt },
		OnDisconnect: func(err error) { disconnected <- err },
	})
	require.NoError(t, err)

	dialed := <-requests
	assert.Equal(t, "/v1/convai/conversation", dialed.Path)
	assert.Equal(t, "agent_1", dialed.Query().Get("agent_id"))
	assert.Equal(t, "sig-1", dialed.Query().Get("conversation_signature"))

	select {
	case id := <-pong:
		assert.Equal(t, int64(7), id)
	case <-time.After(2 * time.Second):
		t.Fatal("expected pong reply")
	}

	first := <-messages
	second := <-messages
	assert.Equal(t, conversation.Event{Message: "Hola", Source: "ai"}, first)
	assert.Equal(t, conversation.Event{Message: "Buenas", Source: "user"}, second)

	select {
	case err := <-disconnected:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected disconnect callback")
	}
	assert.Equal(t, "conv-1", session.ConversationID())
	assert.NoError(t, session.Close())
}

func TestSessionCloseIsLocalDisconnect(t *testing.T) {
	signed, _ := startVendor(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	disconnected := make(chan error, 1)
	session, err := NewDialer(DialOptions{}).Dial(context.Background(), signed, Handlers{
		OnDisconnect: func(err error) { disconnected <- err },
	})
	require.NoError(t, err)

	require.NoError(t, session.Close())
	_ = session.Close()

	select {
	case err := <-disconnected:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected disconnect callback")
	}
}

func TestSessionURLKeepsSignedQuery(t *testing.T) {
	signed := "wss://api.example.com/v1/convai/conversation?agent_id=a1&conversation_signature=x%2By"
	got, err := sessionURL(signed)
	require.NoError(t, err)
	assert.Equal(t, signed, got)

	got, err = sessionURL("https://api.example.com/v1/convai/conversation?agent_id=a1&conversation_signature=s")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.example.com/v1/convai/conversation?agent_id=a1&conversation_signature=s", got)

	_, err = sessionURL("ftp://api.example.com/")
	assert.Error(t, err)
}
