package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/tmaxmax/go-sse"
)

// eventRequest is a JSON POST whose response is an event stream.
type eventRequest struct {
	client *http.Client
	url    string
	header http.Header
	body   any

	// statusErr builds the error for a non-200 response.
	statusErr func(*http.Response) error
}

// events sends the request and yields the events of the response. A cancelled ctx ends the sequence
// without an error.
func (r eventRequest) events(ctx context.Context) iter.Seq2[sse.Event, error] {
	return func(yield func(sse.Event, error) bool) {
		jsonBody, err := json.Marshal(r.body)
		if err != nil {
			yield(sse.Event{}, fmt.Errorf("error marshaling request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(jsonBody))
		if err != nil {
			yield(sse.Event{}, fmt.Errorf("error creating request: %w", err))
			return
		}
		req.Header = r.header.Clone()
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield(sse.Event{}, fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield(sse.Event{}, r.statusErr(resp))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				yield(sse.Event{}, fmt.Errorf("error reading response: %w", err))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// userFirst drops empty turns and any assistant turns before the first user turn. Gemini and the
// Anthropic messages API both reject conversations that open with the model.
func userFirst(history []models.Turn) []models.Turn {
	turns := make([]models.Turn, 0, len(history))
	for _, t := range history {
		if t.Text == "" || (len(turns) == 0 && t.Role == models.RoleAssistant) {
			continue
		}
		turns = append(turns, t)
	}
	return turns
}
