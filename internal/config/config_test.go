package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ELEVENLABS_API_KEY", "ELEVENLABS_BASE_URL", "ELEVENLABS_TIMEOUT", "AGENT_ID", "AGENTS_FILE", "TRANSCRIPT_DIR", "AUTO_EXPORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.ElevenLabs.Enabled() {
		t.Fatal("expected vendor access disabled without api key")
	}
	if cfg.ElevenLabs.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.ElevenLabs.Timeout)
	}
	if cfg.ElevenLabs.BaseURL != "https://api.elevenlabs.io" {
		t.Fatalf("unexpected base url: %s", cfg.ElevenLabs.BaseURL)
	}
	if !cfg.Conversation.AutoExport {
		t.Fatal("expected auto export enabled by default")
	}
	if cfg.Conversation.ExportDir != "transcripts" {
		t.Fatalf("unexpected export dir: %s", cfg.Conversation.ExportDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ELEVENLABS_API_KEY", " key ")
	t.Setenv("ELEVENLABS_TIMEOUT", "5")
	t.Setenv("AGENT_ID", "agent_1")
	t.Setenv("AUTO_EXPORT", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.ElevenLabs.APIKey != "key" || !cfg.ElevenLabs.Enabled() {
		t.Fatalf("unexpected api key: %q", cfg.ElevenLabs.APIKey)
	}
	if cfg.ElevenLabs.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.ElevenLabs.Timeout)
	}
	if cfg.Conversation.DefaultAgentID != "agent_1" || cfg.Conversation.AutoExport {
		t.Fatalf("unexpected conversation config: %+v", cfg.Conversation)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"ELEVENLABS_TIMEOUT": "soon",
		"AUTO_EXPORT":        "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
