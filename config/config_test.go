package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "ytdlp", cfg.Video.MetadataProvider)
	assert.Equal(t, []string{"en"}, cfg.Video.TranscriptLangs)
	assert.Equal(t, "gemini", cfg.Knowledge.LLMProvider)
	assert.Equal(t, "sqlite", cfg.Knowledge.VectorStoreProvider)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("TRANSCRIPT_LANGS", "de, en")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("TOP_K", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"de", "en"}, cfg.Video.TranscriptLangs)
	assert.InDelta(t, 0.2, cfg.Knowledge.LLMTemperature, 1e-9)
	assert.Equal(t, 5, cfg.Knowledge.TopK, "malformed values fall back to the default")
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
server_port = "7070"
session_ttl = "30m"

[video]
metadata_provider = "page"

[knowledge]
chunk_size = 500
chunk_overlap = 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "6060")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.ServerPort, "environment wins over the file")
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "page", cfg.Video.MetadataProvider)
	assert.Equal(t, 500, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 50, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, "text-embedding-004", cfg.Knowledge.EmbedderModel)
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.ServerPort = "" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"unknown metadata provider", func(c *Config) { c.Video.MetadataProvider = "oembed" }},
		{"unknown llm provider", func(c *Config) { c.Knowledge.LLMProvider = "openai" }},
		{"unknown vector store", func(c *Config) { c.Knowledge.VectorStoreProvider = "chroma" }},
		{"overlap too large", func(c *Config) { c.Knowledge.ChunkOverlap = c.Knowledge.ChunkSize }},
		{"zero top k", func(c *Config) { c.Knowledge.TopK = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}
