package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the triage backend for models served by an Ollama instance.
type Ollama struct {
	model string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model string, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		model:  model,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

func ollamaMessages(c models.Completion) []api.Message {
	msgs := make([]api.Message, 0, len(c.History)+2)
	if c.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: c.System})
	}
	for _, t := range c.History {
		if t.Text == "" {
			continue
		}
		msgs = append(msgs, api.Message{Role: string(t.Role), Content: t.Text})
	}
	return append(msgs, api.Message{Role: string(models.RoleUser), Content: c.Message})
}

// Stream implements the triage backend by streaming responses from the Ollama model. The function
// returns an iterator that yields response chunks as strings and potential errors.
func (o Ollama) Stream(ctx context.Context, c models.Completion) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: ollamaMessages(c),
			Stream:   &t,
			Options: map[string]any{
				"temperature": c.Temperature,
			},
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped {
				return nil
			}
			if res.Done {
				o.logger.Debug("Stream finished", slog.String("doneReason", res.DoneReason))
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		}); err != nil {
			if stopped || errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
