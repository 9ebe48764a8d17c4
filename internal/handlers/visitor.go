package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MegaGrindStone/telehealth-web/internal/chat"
	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/shell"
	"golang.org/x/time/rate"
)

// Preferences are the display settings of a visitor. They survive signing out.
type Preferences struct {
	Language     i18n.Language
	FontSize     int
	HighContrast bool
}

// Visitor is the server-side state behind one browser. An anonymous visitor only has preferences;
// signing in attaches a router and a triage chat session.
type Visitor struct {
	mu sync.Mutex

	prefs   Preferences
	router  *shell.Router
	session *chat.Session
	limiter *rate.Limiter
}

var errSignedOut = errors.New("not signed in")

const visitorCookie = "telehealth_visitor"

func newVisitor(lang i18n.Language, limit rate.Limit, burst int) *Visitor {
	return &Visitor{
		prefs:   Preferences{Language: lang},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Preferences returns the visitor's display settings.
func (v *Visitor) Preferences() Preferences {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.prefs
}

func (v *Visitor) setLanguage(lang i18n.Language) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prefs.Language = lang
	if v.session != nil {
		v.session.SetLanguage(lang)
	}
}

func (v *Visitor) setDisplay(fontSize int, highContrast bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prefs.FontSize = fontSize
	v.prefs.HighContrast = highContrast
}

func (v *Visitor) signIn(router *shell.Router, session *chat.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.Cancel()
	}
	v.router = router
	v.session = session
}

func (v *Visitor) signedIn() (*shell.Router, *chat.Session, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.router == nil {
		return nil, nil, errSignedOut
	}
	return v.router, v.session, nil
}

// Close stops the visitor's running reply, if any, and signs the visitor out.
func (v *Visitor) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.session != nil {
		v.session.Cancel()
	}
	v.router = nil
	v.session = nil
}

func (v *Visitor) allowSend() bool {
	return v.limiter.Allow()
}

// visitor returns the visitor behind the request cookie, registering a new one when the cookie is
// missing or stale.
func (m Main) visitor(w http.ResponseWriter, r *http.Request) (*Visitor, error) {
	if c, err := r.Cookie(visitorCookie); err == nil {
		v, err := m.store.Get(r.Context(), c.Value)
		if err == nil {
			return v, nil
		}
		m.logger.Debug("Unknown visitor", slog.String("visitorID", c.Value))
	}

	v := newVisitor(i18n.Match(r.Header.Get("Accept-Language")), m.sendLimit, m.sendBurst)
	id, err := m.store.Add(r.Context(), v)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return v, nil
}

// member returns the signed-in visitor behind the request. It writes the error response itself and
// reports false when there is none.
func (m Main) member(w http.ResponseWriter, r *http.Request) (*Visitor, *shell.Router, *chat.Session, bool) {
	c, err := r.Cookie(visitorCookie)
	if err != nil {
		http.Error(w, errSignedOut.Error(), http.StatusUnauthorized)
		return nil, nil, nil, false
	}
	v, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		http.Error(w, errSignedOut.Error(), http.StatusUnauthorized)
		return nil, nil, nil, false
	}
	router, session, err := v.signedIn()
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil, nil, nil, false
	}
	return v, router, session, true
}

func (m Main) newMember(v *Visitor, user models.User) (*shell.Router, *chat.Session) {
	router := shell.New(user, shell.Options{
		Logger:   m.logger,
		Now:      m.now,
		Location: m.location,
	})
	session := chat.NewSession(chat.Options{
		Language: v.Preferences().Language,
		Catalog:  m.catalog,
		Streamer: m.streamer,
		Logger:   m.logger.With(slog.String("userID", user.ID)),
		Now:      m.now,
	})
	return router, session
}
