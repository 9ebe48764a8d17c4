package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCompletion() models.Completion {
	return models.Completion{
		System: "be brief",
		History: []models.Turn{
			{Role: models.RoleAssistant, Text: "Hello! I'm Dr. AI."},
			{Role: models.RoleUser, Text: "I have a rash"},
			{Role: models.RoleAssistant, Text: "How long?"},
		},
		Message:     "Two days",
		Temperature: 0.7,
	}
}

func collect(t *testing.T, seq iter.Seq2[string, error]) ([]string, error) {
	t.Helper()
	var chunks []string
	for chunk, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func writeSSE(w http.ResponseWriter, events ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, e := range events {
		fmt.Fprint(w, e)
	}
}

func TestGeminiStream(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		writeSSE(w,
			"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"See a \"}]}}]}\n\n",
			"data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":\"Dermatologist.\"}]},\"finishReason\":\"STOP\"}]}\n\n",
		)
	}))
	defer srv.Close()

	g := services.NewGemini("secret", "", srv.URL, discardLogger())
	chunks, err := collect(t, g.Stream(context.Background(), testCompletion()))
	require.NoError(t, err)
	assert.Equal(t, []string{"See a ", "Dermatologist."}, chunks)

	contents, ok := gotBody["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3, "leading greeting is dropped")
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	second := contents[1].(map[string]any)
	assert.Equal(t, "model", second["role"])

	system := gotBody["systemInstruction"].(map[string]any)
	parts := system["parts"].([]any)
	assert.Equal(t, "be brief", parts[0].(map[string]any)["text"])
	assert.InDelta(t, 0.7, gotBody["generationConfig"].(map[string]any)["temperature"], 1e-9)
}

func TestGeminiStreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "Unauthenticated",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`)
			},
			wantErr: "API key not valid",
		},
		{
			name: "Blocked prompt",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeSSE(w, "data: {\"promptFeedback\":{\"blockReason\":\"SAFETY\"}}\n\n")
			},
			wantErr: "SAFETY",
		},
		{
			name: "Malformed chunk",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeSSE(w, "data: {not json\n\n")
			},
			wantErr: "unmarshaling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := services.NewGemini("key", "gemini-test", srv.URL, discardLogger())
			_, err := collect(t, g.Stream(context.Background(), testCompletion()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeminiStreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := services.NewGemini("key", "", url, discardLogger())
	_, err := collect(t, g.Stream(context.Background(), testCompletion()))
	require.Error(t, err)
}

func TestAnthropicStream(t *testing.T) {
	var gotBody struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		System string `json:"system"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		writeSSE(w,
			"event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Rest \"}}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"well.\"}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		)
	}))
	defer srv.Close()

	a := services.NewAnthropic("k", "claude-test", 512, srv.URL, discardLogger())
	chunks, err := collect(t, a.Stream(context.Background(), testCompletion()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Rest ", "well."}, chunks)

	require.Len(t, gotBody.Messages, 3)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "Two days", gotBody.Messages[2].Content)
	assert.Equal(t, "be brief", gotBody.System)
}

func TestAnthropicStreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "Overloaded",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(529)
				fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
			},
			wantErr: "overloaded_error: Overloaded",
		},
		{
			name: "Error event",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeSSE(w,
					"event: content_block_delta\ndata: {\"delta\":{\"text\":\"Rest\"}}\n\n",
					"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"api_error\",\"message\":\"boom\"}}\n\n",
				)
			},
			wantErr: "api_error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := services.NewAnthropic("k", "claude-test", 512, srv.URL, discardLogger())
			_, err := collect(t, a.Stream(context.Background(), testCompletion()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeminiStreamCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"Rest\"}]}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := services.NewGemini("key", "", srv.URL, discardLogger())
	var chunks []string
	for chunk, err := range g.Stream(ctx, testCompletion()) {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
		cancel()
	}
	assert.Equal(t, []string{"Rest"}, chunks)
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Messages, 5)
		if len(body.Messages) > 0 {
			assert.Equal(t, "system", body.Messages[0].Role)
		}

		writeSSE(w,
			"data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Drink \"}}]}\n\n",
			"data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"water.\"},\"finish_reason\":\"stop\"}]}\n\n",
			"data: [DONE]\n\n",
		)
	}))
	defer srv.Close()

	o := services.NewOpenAI("k", srv.URL+"/v1", "gpt-test", discardLogger())
	chunks, err := collect(t, o.Stream(context.Background(), testCompletion()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Drink ", "water."}, chunks)
}
