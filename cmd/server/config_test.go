package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearKeys(t)

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)

	g, ok := cfg.LLM.(*geminiConfig)
	require.True(t, ok)
	assert.Equal(t, services.DefaultGeminiModel, g.Model)

	backend, err := cfg.LLM.backend(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, backend, "no credential means no backend")
}

func TestLoadConfigProviders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		yaml     string
		env      map[string]string
		wantType any
		wantNil  bool
	}{
		{
			name:     "Gemini key from environment",
			yaml:     "llm:\n  provider: gemini\n",
			env:      map[string]string{"API_KEY": "k"},
			wantType: services.Gemini{},
		},
		{
			name:     "OpenAI compatible",
			yaml:     "llm:\n  provider: openai\n  model: gpt-4o-mini\n  baseURL: https://openrouter.ai/api/v1\n  apiKey: k\n",
			wantType: services.OpenAI{},
		},
		{
			name:    "OpenAI without key",
			yaml:    "llm:\n  provider: openai\n  model: gpt-4o-mini\n",
			wantNil: true,
		},
		{
			name:     "Ollama",
			yaml:     "llm:\n  provider: ollama\n  model: llama3.2\n",
			wantType: services.Ollama{},
		},
		{
			name:     "Anthropic",
			yaml:     "llm:\n  provider: anthropic\n  model: claude-3-5-haiku-latest\n",
			env:      map[string]string{"ANTHROPIC_API_KEY": "k"},
			wantType: services.Anthropic{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeys(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := loadConfig(writeConfig(t, tt.yaml))
			require.NoError(t, err)

			backend, err := cfg.LLM.backend(logger)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, backend)
				return
			}
			assert.IsType(t, tt.wantType, backend)
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
port: "9090"
logLevel: debug
temperature: 0.3
idleTimeout: 5m
sendInterval: 500ms
sendBurst: 5
`))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.SendInterval)
	assert.Equal(t, 5, cfg.SendBurst)
	assert.IsType(t, &geminiConfig{}, cfg.LLM)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "Unknown provider", yaml: "llm:\n  provider: watson\n"},
		{name: "Missing provider", yaml: "llm:\n  model: x\n"},
		{name: "Port not numeric", yaml: "port: http\n"},
		{name: "Temperature out of range", yaml: "temperature: 3\n"},
		{name: "Unknown log level", yaml: "logLevel: loud\n"},
		{name: "Bad endpoint", yaml: "llm:\n  provider: gemini\n  endpoint: not a url\n"},
		{name: "Malformed YAML", yaml: "port: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestBackendRequiresModel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, cfg := range []llmConfig{
		openAIConfig{APIKey: "k"},
		ollamaConfig{},
		anthropicConfig{APIKey: "k"},
	} {
		_, err := cfg.backend(logger)
		assert.Error(t, err)
	}
}

func TestNewLogger(t *testing.T) {
	assert.True(t, newLogger("debug").Enabled(t.Context(), slog.LevelDebug))
	assert.False(t, newLogger("warn").Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, newLogger("bogus").Enabled(t.Context(), slog.LevelInfo))
}
