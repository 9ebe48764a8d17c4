package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
)

// Gemini provides an implementation of the triage backend for Google's Gemini models, using the
// server-sent-events flavour of the streamGenerateContent endpoint.
type Gemini struct {
	apiKey   string
	model    string
	endpoint string

	client *http.Client

	logger *slog.Logger
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

const (
	geminiAPIEndpoint  = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when no model is configured.
	DefaultGeminiModel = "gemini-2.5-flash"
)

// NewGemini creates a new Gemini instance. An empty endpoint selects the public API.
func NewGemini(apiKey, model, endpoint string, logger *slog.Logger) Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	if endpoint == "" {
		endpoint = geminiAPIEndpoint
	}
	return Gemini{
		apiKey:   apiKey,
		model:    model,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "gemini")),
	}
}

func geminiRole(r models.Role) string {
	if r == models.RoleAssistant {
		return "model"
	}
	return "user"
}

// geminiContents converts the turns and the new message. The greeting opens every conversation and
// is dropped by userFirst.
func geminiContents(history []models.Turn, message string) []geminiContent {
	turns := userFirst(history)
	contents := make([]geminiContent, 0, len(turns)+1)
	for _, t := range turns {
		contents = append(contents, geminiContent{
			Role:  geminiRole(t.Role),
			Parts: []geminiPart{{Text: t.Text}},
		})
	}
	return append(contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: message}},
	})
}

// Stream streams a completion from the Gemini API. It returns an iterator that yields text chunks and
// potential errors. The context can be used to cancel ongoing requests.
func (g Gemini) Stream(ctx context.Context, c models.Completion) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body := geminiRequest{
			Contents:         geminiContents(c.History, c.Message),
			GenerationConfig: geminiGenerationConfig{Temperature: c.Temperature},
		}
		if c.System != "" {
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: c.System}}}
		}

		req := eventRequest{
			client:    g.client,
			url:       fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.endpoint, url.PathEscape(g.model)),
			header:    http.Header{"X-Goog-Api-Key": {g.apiKey}},
			body:      body,
			statusErr: geminiStatusError,
		}
		for ev, err := range req.events(ctx) {
			if err != nil {
				yield("", err)
				return
			}

			var res geminiStreamResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				yield("", fmt.Errorf("error unmarshaling response: %w", err))
				return
			}
			if reason := res.PromptFeedback.BlockReason; reason != "" {
				yield("", fmt.Errorf("prompt blocked: %s", reason))
				return
			}
			if len(res.Candidates) == 0 {
				continue
			}

			candidate := res.Candidates[0]
			for _, p := range candidate.Content.Parts {
				if p.Text != "" && !yield(p.Text, nil) {
					return
				}
			}
			if candidate.FinishReason != "" {
				g.logger.Debug("Stream finished", slog.String("finishReason", candidate.FinishReason))
			}
		}
	}
}

func geminiStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e geminiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("gemini error %d %s: %s", e.Error.Code, e.Error.Status, e.Error.Message)
	}
	return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
}
