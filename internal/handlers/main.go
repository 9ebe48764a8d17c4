package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	telehealthweb "github.com/MegaGrindStone/telehealth-web"
	"github.com/MegaGrindStone/telehealth-web/internal/chat"
	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/tmaxmax/go-sse"
	"golang.org/x/time/rate"
)

// Store defines the interface for keeping visitors between requests. Visitors are addressed by the id
// the store hands out, which is also the value of the visitor cookie.
type Store interface {
	Add(ctx context.Context, v *Visitor) (string, error)
	Get(ctx context.Context, id string) (*Visitor, error)
	Remove(ctx context.Context, id string) error
}

// Options tunes Main. Zero values select the defaults.
type Options struct {
	// SendInterval and SendBurst limit how fast one visitor may send chat messages.
	SendInterval time.Duration
	SendBurst    int

	// Now and Location are handed to every visitor's router.
	Now      func() time.Time
	Location *time.Location

	Logger *slog.Logger
}

// Main handles the core functionality of the web application, managing server-sent events, HTML
// templates, and the interactions between visitors, their chat sessions and the triage streamer.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	streamer chat.Streamer
	catalog  i18n.Catalog
	store    Store

	sendLimit rate.Limit
	sendBurst int
	now       func() time.Time
	location  *time.Location

	// ctx bounds every reply stream; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	defaultSendInterval = 2 * time.Second
	defaultSendBurst    = 3
)

// SSE event types for real-time updates.
var (
	messagesSSEType     = sse.Type("messages")
	suggestionSSEType   = sse.Type("suggestion")
	closeMessageSSEType = sse.Type("closeMessage")
)

// NewMain creates a new Main instance. It initializes the SSE server and parses the HTML templates
// from the embedded filesystem. Clients subscribe to the running text of a reply by passing its id
// as the message_id query parameter.
func NewMain(streamer chat.Streamer, catalog i18n.Catalog, store Store, opts Options) (Main, error) {
	tmpl, err := template.New("").Funcs(templateFuncs(catalog)).ParseFS(
		telehealthweb.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	interval := opts.SendInterval
	if interval <= 0 {
		interval = defaultSendInterval
	}
	burst := opts.SendBurst
	if burst <= 0 {
		burst = defaultSendBurst
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				messageID := s.Req.URL.Query().Get("message_id")
				if messageID != "" {
					topics = append(topics, messageIDTopic(messageID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		streamer:  streamer,
		catalog:   catalog,
		store:     store,
		sendLimit: rate.Every(interval),
		sendBurst: burst,
		now:       opts.Now,
		location:  opts.Location,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "handlers")),
	}, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

// Shutdown stops every running reply and gracefully terminates the SSE server. It broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections to terminate. After the
// timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.cancel()

	e := &sse.Message{Type: closeMessageSSEType}
	// SSE requires data on every event.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
