package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"

	apiKeyHeader  = "xi-api-key"
	maxErrorRunes = 200
)

var (
	ErrAPIKeyRequired  = errors.New("elevenlabs api key is required")
	ErrAgentIDRequired = errors.New("agent id is required")
)

// APIError carries the message the vendor returned for a failed call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs: %s (status %d)", e.Message, e.StatusCode)
}

// Config holds REST client settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the agent registry and session signing endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client with its own http.Client.
func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTP(cfg, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP builds a client around an existing http.Client.
func NewClientWithHTTP(cfg Config, httpClient *http.Client) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}, nil
}

type listAgentsResponse struct {
	Agents []struct {
		AgentID          string   `json:"agent_id"`
		Name             string   `json:"name"`
		Tags             []string `json:"tags"`
		CreatedAtUnixSec int64    `json:"created_at_unix_secs"`
	} `json:"agents"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// ListAgents returns every agent visible to the API key, following pagination.
func (c *Client) ListAgents(ctx context.Context) ([]agent.Details, error) {
	var (
		out    []agent.Details
		cursor string
	)
	for {
		query := url.Values{}
		query.Set("page_size", "100")
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page listAgentsResponse
		if err := c.getJSON(ctx, "/v1/convai/agents", query, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Agents {
			details := agent.Details{ID: item.AgentID, Name: item.Name, Tags: item.Tags}
			if item.CreatedAtUnixSec > 0 {
				details.CreatedAt = time.Unix(item.CreatedAtUnixSec, 0).UTC()
			}
			out = append(out, details)
		}
		if !page.HasMore || page.NextCursor == "" || page.NextCursor == cursor {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

type getAgentResponse struct {
	AgentID            string   `json:"agent_id"`
	Name               string   `json:"name"`
	Tags               []string `json:"tags"`
	ConversationConfig struct {
		Agent struct {
			FirstMessage string `json:"first_message"`
			Language     string `json:"language"`
		} `json:"agent"`
		TTS struct {
			VoiceID string `json:"voice_id"`
		} `json:"tts"`
	} `json:"conversation_config"`
	Metadata struct {
		CreatedAtUnixSec int64 `json:"created_at_unix_secs"`
	} `json:"metadata"`
}

// GetAgent fetches descriptive metadata for one agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (agent.Details, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return agent.Details{}, ErrAgentIDRequired
	}

	var resp getAgentResponse
	if err := c.getJSON(ctx, "/v1/convai/agents/"+url.PathEscape(agentID), nil, &resp); err != nil {
		return agent.Details{}, err
	}

	details := agent.Details{
		ID:           resp.AgentID,
		Name:         resp.Name,
		FirstMessage: resp.ConversationConfig.Agent.FirstMessage,
		Language:     resp.ConversationConfig.Agent.Language,
		VoiceID:      resp.ConversationConfig.TTS.VoiceID,
		Tags:         resp.Tags,
	}
	if details.ID == "" && hasData(details) {
		details.ID = agentID
	}
	if resp.Metadata.CreatedAtUnixSec > 0 {
		details.CreatedAt = time.Unix(resp.Metadata.CreatedAtUnixSec, 0).UTC()
	}
	return details, nil
}

// hasData reports whether the registry returned anything for the agent; an
// empty record stays empty so callers can tell it apart.
func hasData(d agent.Details) bool {
	return d.Name != "" || d.FirstMessage != "" || d.Language != "" || d.VoiceID != "" || len(d.Tags) > 0
}

// GetSignedURL issues the short-lived websocket URL that authorises one live
// session with agentID.
func (c *Client) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return "", ErrAgentIDRequired
	}

	query := url.Values{}
	query.Set("agent_id", agentID)

	var resp struct {
		SignedURL string `json:"signed_url"`
	}
	if err := c.getJSON(ctx, "/v1/convai/conversation/get-signed-url", query, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.SignedURL) == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "empty signed url"}
	}
	return resp.SignedURL, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		log.Printf("[elevenlabs] GET %s failed: %v", path, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts the vendor message from {"detail": "..."} or
// {"detail": {"message": "..."}} bodies.
func errorMessage(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if len(envelope.Detail) > 0 {
			var text string
			if json.Unmarshal(envelope.Detail, &text) == nil && text != "" {
				return text
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Detail, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "request failed"
	}
	if runes := []rune(text); len(runes) > maxErrorRunes {
		text = string(runes[:maxErrorRunes])
	}
	return text
}
