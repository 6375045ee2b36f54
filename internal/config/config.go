package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server       ServerConfig
	ElevenLabs   ElevenLabsConfig
	Conversation ConversationConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	elevenLabs, err := loadElevenLabsConfig()
	if err != nil {
		return nil, err
	}

	conversation, err := loadConversationConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, ElevenLabs: elevenLabs, Conversation: conversation}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ElevenLabsConfig 描述对话式 AI 供应商的访问配置。
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c ElevenLabsConfig) Enabled() bool {
	return c.APIKey != ""
}

// ConversationConfig 描述会话与转录导出配置。
type ConversationConfig struct {
	DefaultAgentID string
	AgentsFile     string
	ExportDir      string
	AutoExport     bool
}

func loadElevenLabsConfig() (ElevenLabsConfig, error) {
	timeout, err := parseOptionalIntEnv("ELEVENLABS_TIMEOUT")
	if err != nil {
		return ElevenLabsConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		if *timeout < 1 {
			return ElevenLabsConfig{}, fmt.Errorf("invalid ELEVENLABS_TIMEOUT value %d: must be positive", *timeout)
		}
		timeoutSeconds = *timeout
	}

	return ElevenLabsConfig{
		APIKey:  strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		BaseURL: getEnvOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func loadConversationConfig() (ConversationConfig, error) {
	autoExport, err := parseBoolEnv("AUTO_EXPORT", true)
	if err != nil {
		return ConversationConfig{}, err
	}

	return ConversationConfig{
		DefaultAgentID: strings.TrimSpace(os.Getenv("AGENT_ID")),
		AgentsFile:     strings.TrimSpace(os.Getenv("AGENTS_FILE")),
		ExportDir:      getEnvOrDefault("TRANSCRIPT_DIR", "transcripts"),
		AutoExport:     autoExport,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
