// Package triage turns a conversation into a stream of reply fragments from a language model.
//
// The stream never fails from the caller's point of view: a missing backend or any backend error is
// replaced by a single localized apology, after which the stream ends.
package triage

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/MegaGrindStone/telehealth-web/internal/models"
)

// Backend represents a large language model that streams a completion. It returns an iterator that
// yields response chunks and potential errors; the context cancels the underlying request.
type Backend interface {
	Stream(ctx context.Context, c models.Completion) iter.Seq2[string, error]
}

// Request is one send from the chat: the turns before the new message, the new message itself, and the
// language the reply should be written in.
type Request struct {
	History  []models.Turn
	Message  string
	Language i18n.Language
}

// Client wraps a Backend with the triage prompt and the failure policy.
type Client struct {
	backend     Backend
	catalog     i18n.Catalog
	temperature float64

	logger *slog.Logger
}

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature = 0.7

const errLoggerKey = "err"

// NewClient creates a Client. A nil backend is allowed and stands for "no credential configured"; such
// a client answers every request with the fallback message.
func NewClient(backend Backend, catalog i18n.Catalog, temperature float64, logger *slog.Logger) Client {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return Client{
		backend:     backend,
		catalog:     catalog,
		temperature: temperature,
		logger:      logger.With(slog.String("module", "triage")),
	}
}

// Fallback returns the apology yielded in place of a failed reply.
func (c Client) Fallback(lang i18n.Language) string {
	return c.catalog.T(lang, "ai.error", nil)
}

// Stream yields the reply to req as non-empty fragments in arrival order. The sequence is single-use.
//
// On failure exactly one fallback fragment is yielded and the sequence ends; fragments yielded before
// the failure stay yielded. When ctx is cancelled the sequence just ends.
func (c Client) Stream(ctx context.Context, req Request) iter.Seq[string] {
	return func(yield func(string) bool) {
		if c.backend == nil {
			c.logger.Warn("No language model configured, answering with fallback")
			yield(c.Fallback(req.Language))
			return
		}

		completion := models.Completion{
			System:      SystemPrompt(req.Language),
			History:     req.History,
			Message:     strings.TrimSpace(req.Message),
			Temperature: c.temperature,
		}

		for chunk, err := range c.backend.Stream(ctx, completion) {
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Debug("Triage stream cancelled", slog.String(errLoggerKey, err.Error()))
					return
				}
				c.logger.Error("Error from language model", slog.String(errLoggerKey, err.Error()))
				yield(c.Fallback(req.Language))
				return
			}
			if chunk == "" {
				continue
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
