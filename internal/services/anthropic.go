package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
)

// Anthropic provides an implementation of the triage backend for the Anthropic messages API.
type Anthropic struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
	anthropicVersion     = "2023-06-01"
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name, and maximum
// token limit. An empty endpoint selects the public API.
func NewAnthropic(apiKey, model string, maxTokens int, endpoint string, logger *slog.Logger) Anthropic {
	if endpoint == "" {
		endpoint = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		endpoint:  endpoint,
		client:    &http.Client{},
		logger:    logger.With(slog.String("module", "anthropic")),
	}
}

// anthropicMessages converts the turns and the new message, opening with a user turn.
func anthropicMessages(history []models.Turn, message string) []anthropicMessage {
	turns := userFirst(history)
	msgs := make([]anthropicMessage, 0, len(turns)+1)
	for _, t := range turns {
		msgs = append(msgs, anthropicMessage{Role: string(t.Role), Content: t.Text})
	}
	return append(msgs, anthropicMessage{Role: string(models.RoleUser), Content: message})
}

// Stream streams a completion from the Anthropic API. It returns an iterator that yields response
// chunks and potential errors. The context can be used to cancel ongoing requests.
func (a Anthropic) Stream(ctx context.Context, c models.Completion) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req := eventRequest{
			client: a.client,
			url:    a.endpoint + "/messages",
			header: http.Header{
				"X-Api-Key":         {a.apiKey},
				"Anthropic-Version": {anthropicVersion},
			},
			body: anthropicChatRequest{
				Model:       a.model,
				Messages:    anthropicMessages(c.History, c.Message),
				System:      c.System,
				MaxTokens:   a.maxTokens,
				Temperature: c.Temperature,
				Stream:      true,
			},
			statusErr: anthropicStatusError,
		}

		for ev, err := range req.events(ctx) {
			if err != nil {
				yield("", err)
				return
			}

			switch ev.Type {
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					yield("", fmt.Errorf("error unmarshaling response: %w", err))
					return
				}
				if res.Delta.Text != "" && !yield(res.Delta.Text, nil) {
					return
				}
			case "message_stop":
				return
			case "error":
				yield("", decodeAnthropicError([]byte(ev.Data)))
				return
			default:
				a.logger.Debug("Skipping event", slog.String("type", ev.Type))
			}
		}
	}
}

func decodeAnthropicError(data []byte) error {
	var e anthropicError
	if err := json.Unmarshal(data, &e); err != nil || e.Error.Message == "" {
		return fmt.Errorf("anthropic error: %s", string(data))
	}
	return fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
}

func anthropicStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("unexpected status code %d: %w", resp.StatusCode, decodeAnthropicError(body))
}
