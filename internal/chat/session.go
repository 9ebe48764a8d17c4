// Package chat owns a triage conversation and merges streamed replies into it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/triage"
)

var (
	// ErrEmptyMessage is returned when the submitted text is empty or only whitespace.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInFlight is returned when a message is submitted while a reply is still streaming.
	ErrInFlight = errors.New("a reply is still streaming")
	// ErrStaleExchange is returned when Stream is called for an exchange that is not the in-flight one.
	ErrStaleExchange = errors.New("exchange is not in flight")
)

// Streamer produces reply fragments for a triage request. triage.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, req triage.Request) iter.Seq[string]
}

// Options configures a Session.
type Options struct {
	Language i18n.Language
	Catalog  i18n.Catalog
	Streamer Streamer
	Logger   *slog.Logger

	// Now is used for message timestamps. It defaults to time.Now.
	Now func() time.Time
}

// Session is one visitor's triage conversation. It is safe for concurrent use; every fragment merge
// happens atomically under the session lock.
type Session struct {
	mu sync.Mutex

	messages []models.Message
	language i18n.Language
	inFlight bool
	replyID  string
	stop     context.CancelFunc

	catalog  i18n.Catalog
	streamer Streamer
	now      func() time.Time

	logger *slog.Logger
}

// Exchange is what Begin hands to Stream: the user message just appended and the empty assistant
// message that will receive the reply.
type Exchange struct {
	User  models.Message
	Reply models.Message

	request triage.Request
	stopped context.Context
}

const errLoggerKey = "err"

// NewSession creates a session whose conversation starts with the localized greeting.
func NewSession(opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	lang := opts.Language
	if lang == "" {
		lang = i18n.English
	}

	s := &Session{
		language: lang,
		catalog:  opts.Catalog,
		streamer: opts.Streamer,
		now:      now,
		logger:   opts.Logger.With(slog.String("module", "chat")),
	}
	s.messages = []models.Message{
		{
			ID:        models.NewID(),
			Role:      models.RoleAssistant,
			Text:      s.catalog.T(lang, "ai.initial", nil),
			Timestamp: now(),
			Greeting:  true,
		},
	}
	return s
}

// Messages returns a copy of the conversation in insertion order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Message returns the message with the given id.
func (s *Session) Message(id string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Message{}, false
	}
	return s.messages[idx], true
}

// Language returns the language replies are requested in.
func (s *Session) Language() i18n.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage changes the language of later replies. The existing conversation, including the
// greeting, is left untouched.
func (s *Session) SetLanguage(lang i18n.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// InFlight reports whether a reply is currently streaming.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Begin appends the user message and an empty assistant placeholder, and marks the session in flight.
// The returned Exchange must be passed to Stream, which clears the in-flight state when it returns.
func (s *Session) Begin(text string) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return Exchange{}, ErrInFlight
	}

	history := models.Turns(s.messages)

	userMsg := models.Message{
		ID:        models.NewID(),
		Role:      models.RoleUser,
		Text:      text,
		Timestamp: s.now(),
	}
	reply := models.Message{
		ID:        models.NewID(),
		Role:      models.RoleAssistant,
		Timestamp: s.now(),
	}
	s.messages = append(s.messages, userMsg, reply)

	stopped, stop := context.WithCancel(context.Background())
	s.inFlight = true
	s.replyID = reply.ID
	s.stop = stop

	return Exchange{
		User:  userMsg,
		Reply: reply,
		request: triage.Request{
			History:  history,
			Message:  text,
			Language: s.language,
		},
		stopped: stopped,
	}, nil
}

// Stream consumes the reply for ex and appends every fragment to the placeholder text. observe, when
// not nil, receives a snapshot of the placeholder after each merge; the snapshots' texts are the
// running concatenation of the fragments. Stream returns once the reply has ended, failed over to the
// fallback text, or been stopped through ctx or Cancel. The placeholder is final afterwards.
func (s *Session) Stream(ctx context.Context, ex Exchange, observe func(models.Message)) error {
	s.mu.Lock()
	if !s.inFlight || s.replyID != ex.Reply.ID {
		s.mu.Unlock()
		return ErrStaleExchange
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(ex.stopped, cancel)
	defer stopWatch()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.replyID = ""
		if s.stop != nil {
			s.stop()
			s.stop = nil
		}
		s.mu.Unlock()
	}()

	fragments := 0
	for fragment := range s.streamer.Stream(ctx, ex.request) {
		snapshot, err := s.merge(ex.Reply.ID, fragment)
		if err != nil {
			s.logger.Error("Failed to merge fragment", slog.String(errLoggerKey, err.Error()))
			return err
		}
		fragments++
		if observe != nil {
			observe(snapshot)
		}
	}

	s.logger.Debug("Reply ended",
		slog.String("messageID", ex.Reply.ID),
		slog.Int("fragments", fragments))
	return nil
}

func (s *Session) merge(id, fragment string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Message{}, fmt.Errorf("placeholder %s not found", id)
	}
	s.messages[idx].Text += fragment
	return s.messages[idx], nil
}

// Send runs Begin and Stream back to back and returns the final reply.
func (s *Session) Send(ctx context.Context, text string, observe func(models.Message)) (models.Message, error) {
	ex, err := s.Begin(text)
	if err != nil {
		return models.Message{}, err
	}
	if err := s.Stream(ctx, ex, observe); err != nil {
		return models.Message{}, err
	}
	reply, _ := s.Message(ex.Reply.ID)
	return reply, nil
}

// Cancel stops the in-flight reply, if any. Text merged so far is kept.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
}

// Suggestion returns the specialty mentioned in the last reply, so the visitor can jump to doctors of
// that specialty. There is no suggestion while a reply is streaming, or when the last message is the
// greeting or a user message.
func (s *Session) Suggestion() (models.Specialty, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight || len(s.messages) == 0 {
		return "", false
	}
	last := s.messages[len(s.messages)-1]
	if last.Role != models.RoleAssistant || last.Greeting {
		return "", false
	}
	return models.DetectSpecialty(last.Text)
}

func (s *Session) indexOf(id string) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}
