package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/services"
	"github.com/MegaGrindStone/telehealth-web/internal/triage"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	// backend returns nil, without an error, when no credential is configured.
	backend(logger *slog.Logger) (triage.Backend, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider" validate:"required,oneof=gemini openai ollama anthropic"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string        `yaml:"port" validate:"required,numeric"`
	LogLevel     string        `yaml:"logLevel" validate:"oneof=debug info warn error"`
	Temperature  float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" validate:"gte=0"`
	SendInterval time.Duration `yaml:"sendInterval" validate:"gte=0"`
	SendBurst    int           `yaml:"sendBurst" validate:"gte=0"`
	LLM          llmConfig     `yaml:"llm" validate:"-"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint" validate:"omitempty,url"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL" validate:"omitempty,url"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host" validate:"omitempty,url"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens" validate:"gte=0"`
	Endpoint      string `yaml:"endpoint" validate:"omitempty,url"`
}

const (
	defaultOllamaHost         = "http://127.0.0.1:11434"
	defaultAnthropicMaxTokens = 1024
	defaultIdleTimeout        = 30 * time.Minute
	defaultSendInterval       = 2 * time.Second
	defaultSendBurst          = 3
)

var validate = validator.New()

func defaultConfig() config {
	return config{
		Port:         "8080",
		LogLevel:     "info",
		Temperature:  triage.DefaultTemperature,
		IdleTimeout:  defaultIdleTimeout,
		SendInterval: defaultSendInterval,
		SendBurst:    defaultSendBurst,
		LLM: &geminiConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "gemini", Model: services.DefaultGeminiModel},
		},
	}
}

func defaultConfigPath() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "telehealth", "config.yaml"), nil
}

// loadConfig reads the config file at path over the defaults. A missing file yields the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := validate.Struct(cfg.LLM); err != nil {
		return config{}, fmt.Errorf("invalid llm config: %w", err)
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	rawConfig := struct {
		Port         string         `yaml:"port"`
		LogLevel     string         `yaml:"logLevel"`
		Temperature  float64        `yaml:"temperature"`
		IdleTimeout  time.Duration  `yaml:"idleTimeout"`
		SendInterval time.Duration  `yaml:"sendInterval"`
		SendBurst    int            `yaml:"sendBurst"`
		LLM          map[string]any `yaml:"llm"`
	}{
		Port:         c.Port,
		LogLevel:     c.LogLevel,
		Temperature:  c.Temperature,
		IdleTimeout:  c.IdleTimeout,
		SendInterval: c.SendInterval,
		SendBurst:    c.SendBurst,
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.Temperature = rawConfig.Temperature
	c.IdleTimeout = rawConfig.IdleTimeout
	c.SendInterval = rawConfig.SendInterval
	c.SendBurst = rawConfig.SendBurst

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (g geminiConfig) backend(logger *slog.Logger) (triage.Backend, error) {
	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	}
	if apiKey == "" {
		return nil, nil
	}
	return services.NewGemini(apiKey, g.Model, g.Endpoint, logger), nil
}

func (o openAIConfig) backend(logger *slog.Logger) (triage.Backend, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, nil
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, logger), nil
}

func (o ollamaConfig) backend(logger *slog.Logger) (triage.Backend, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, logger)
}

func (a anthropicConfig) backend(logger *slog.Logger) (triage.Backend, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := a.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, nil
	}
	return services.NewAnthropic(apiKey, a.Model, maxTokens, a.Endpoint, logger), nil
}
