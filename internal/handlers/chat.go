package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/telehealth-web/internal/chat"
	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/shell"
	"github.com/tmaxmax/go-sse"
)

// HandleChat sends the "message" form field to the visitor's triage session. It responds with the
// user message and an empty assistant message, and streams the reply into the latter through
// Server-Sent Events on the message's topic.
//
// Wrong methods get 405, empty messages 400, sends faster than the visitor's rate limit 429, and
// sends while a reply is still streaming 409.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, session, ok := m.member(w, r)
	if !ok {
		return
	}
	if !shell.Allowed(router.User().Role, shell.ViewTriage) {
		http.Error(w, shell.ErrViewNotAllowed.Error(), http.StatusForbidden)
		return
	}

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}
	if !v.allowSend() {
		http.Error(w, "Too many messages", http.StatusTooManyRequests)
		return
	}

	ex, err := session.Begin(msg)
	if err != nil {
		m.fail(w, "Failed to send message", err)
		return
	}

	go m.streamReply(m.ctx, session, ex)

	lang := v.Preferences().Language
	userView, err := newMessageView(lang, ex.User, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", userView); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	replyView, err := newMessageView(lang, ex.Reply, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", replyView); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// streamReply publishes the rendered running text of the reply after every fragment. Once the reply
// has ended it publishes the final text, the specialty suggestion if any, and a close event.
func (m Main) streamReply(ctx context.Context, session *chat.Session, ex chat.Exchange) {
	topic := messageIDTopic(ex.Reply.ID)

	defer func() {
		e := &sse.Message{Type: closeMessageSSEType}
		e.AppendData("bye")
		_ = m.sseSrv.Publish(e, topic)
	}()

	err := session.Stream(ctx, ex, func(reply models.Message) {
		m.publishContent(topic, reply)
	})
	if err != nil {
		m.logger.Error("Reply stream failed",
			slog.String("messageID", ex.Reply.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	if reply, ok := session.Message(ex.Reply.ID); ok {
		m.publishContent(topic, reply)
	}

	spec, ok := session.Suggestion()
	if !ok {
		return
	}
	var sb strings.Builder
	err = m.templates.ExecuteTemplate(&sb, "suggestion", suggestionView{
		Lang:      session.Language(),
		Specialty: spec,
	})
	if err != nil {
		m.logger.Error("Failed to execute suggestion template", slog.String(errLoggerKey, err.Error()))
		return
	}
	e := &sse.Message{Type: suggestionSSEType}
	e.AppendData(sb.String())
	if err := m.sseSrv.Publish(e, topic); err != nil {
		m.logger.Error("Failed to publish suggestion", slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) publishContent(topic string, reply models.Message) {
	content, err := models.RenderMarkdown(reply.Text)
	if err != nil {
		m.logger.Error("Failed to render reply",
			slog.String("messageID", reply.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}
	if content == "" {
		return
	}

	e := &sse.Message{Type: messagesSSEType}
	e.AppendData(content)
	if err := m.sseSrv.Publish(e, topic); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", reply.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// HandleCancelChat stops the visitor's streaming reply. Text received so far is kept.
func (m Main) HandleCancelChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, _, session, ok := m.member(w, r)
	if !ok {
		return
	}

	session.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// HandleFindDoctor opens the doctor directory filtered to the "specialty" form field, as suggested at
// the end of a reply.
func (m Main) HandleFindDoctor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	if err := router.FindDoctor(r.FormValue("specialty")); err != nil {
		m.fail(w, "Failed to open doctor directory", err)
		return
	}
	m.renderApp(w, r, v)
}

// HandleSSE serves the event stream of one of the visitor's messages.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	_, _, session, ok := m.member(w, r)
	if !ok {
		return
	}
	messageID := r.URL.Query().Get("message_id")
	if _, ok := session.Message(messageID); !ok {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	m.sseSrv.ServeHTTP(w, r)
}
