package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/chat"
	"github.com/MegaGrindStone/telehealth-web/internal/i18n"
	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/shell"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type pageData struct {
	Lang      i18n.Language
	Prefs     Preferences
	Languages []i18n.Language
	Roles     []roleOption

	SignedIn bool
	App      appData
}

type appData struct {
	Lang i18n.Language

	User         models.User
	View         shell.View
	Nav          []shell.NavItem
	Notice       string
	WIP          bool
	Next         models.Appointment
	HasNext      bool
	Appointments []models.Appointment

	Doctors     doctorListData
	Specialty   models.Specialty
	Specialties []models.Specialty
	Selected    models.Doctor
	Booking     bool
	TimeSlots   []string
	MinDate     string

	Call    shell.Call
	InCall  bool
	Triage  triageData
	NowUnix int64
}

type doctorListData struct {
	Lang    i18n.Language
	Doctors []models.Doctor
}

type triageData struct {
	Lang       i18n.Language
	Messages   []messageView
	InFlight   bool
	Suggestion suggestionView
}

type messageView struct {
	Lang      i18n.Language
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time
	Streaming bool
	Greeting  bool
}

type suggestionView struct {
	Lang      i18n.Language
	Specialty models.Specialty
}

type roleOption struct {
	Role     models.UserRole
	LabelKey string
	DescKey  string
}

var roleOptions = []roleOption{
	{Role: models.RolePatient, LabelKey: "login.patient", DescKey: "login.patient_desc"},
	{Role: models.RoleDoctor, LabelKey: "login.doctor", DescKey: "login.doctor_desc"},
	{Role: models.RoleAdmin, LabelKey: "login.admin", DescKey: "login.admin_desc"},
	{Role: models.RoleFacilityManager, LabelKey: "login.facility", DescKey: "login.facility_desc"},
}

type displayForm struct {
	FontSize int `validate:"min=0,max=2"`
}

var validate = validator.New()

func templateFuncs(catalog i18n.Catalog) template.FuncMap {
	return template.FuncMap{
		"t": func(lang i18n.Language, key string, kv ...string) string {
			var params map[string]string
			if len(kv) > 0 {
				params = lo.SliceToMap(lo.Chunk(kv, 2), func(pair []string) (string, string) {
					if len(pair) < 2 {
						return pair[0], ""
					}
					return pair[0], pair[1]
				})
			}
			return catalog.T(lang, key, params)
		},
		"date": func(t time.Time) string {
			return t.Format("Mon, Jan 2 2006")
		},
		"clock": func(t time.Time) string {
			return t.Format("15:04")
		},
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func (m Main) pageData(v *Visitor) (pageData, error) {
	prefs := v.Preferences()
	data := pageData{
		Lang:      prefs.Language,
		Prefs:     prefs,
		Languages: i18n.Languages,
		Roles:     roleOptions,
	}

	router, session, err := v.signedIn()
	if err != nil {
		return data, nil
	}
	app, err := m.appData(prefs.Language, router, session)
	if err != nil {
		return pageData{}, err
	}
	data.SignedIn = true
	data.App = app
	return data, nil
}

func (m Main) appData(lang i18n.Language, router *shell.Router, session *chat.Session) (appData, error) {
	user := router.User()
	now := time.Now()
	if m.now != nil {
		now = m.now()
	}

	data := appData{
		Lang:         lang,
		User:         user,
		View:         router.View(),
		Nav:          shell.NavItems(user.Role),
		Appointments: router.Appointments(),
		Specialty:    router.SpecialtyFilter(),
		Specialties:  models.Specialties,
		TimeSlots:    shell.TimeSlots,
		MinDate:      now.Format("2006-01-02"),
		NowUnix:      now.Unix(),
	}
	data.WIP = shell.UnderDevelopment(data.View)
	data.Next, data.HasNext = router.NextAppointment()
	data.Selected, data.Booking = router.SelectedDoctor()
	data.Call, data.InCall = router.ActiveCall()
	if n, ok := router.TakeNotification(); ok {
		data.Notice = m.catalog.T(lang, n.Key, n.Params)
	}
	data.Doctors = doctorListData{
		Lang:    lang,
		Doctors: shell.FilterDoctors(models.Doctors, "", data.Specialty),
	}

	triage, err := m.triageData(lang, session)
	if err != nil {
		return appData{}, err
	}
	data.Triage = triage
	return data, nil
}

func (m Main) triageData(lang i18n.Language, session *chat.Session) (triageData, error) {
	inFlight := session.InFlight()
	messages := session.Messages()

	views := make([]messageView, 0, len(messages))
	for i, msg := range messages {
		streaming := inFlight && i == len(messages)-1 && msg.Role == models.RoleAssistant
		mv, err := newMessageView(lang, msg, streaming)
		if err != nil {
			return triageData{}, err
		}
		views = append(views, mv)
	}

	data := triageData{
		Lang:     lang,
		Messages: views,
		InFlight: inFlight,
	}
	if spec, ok := session.Suggestion(); ok {
		data.Suggestion = suggestionView{Lang: lang, Specialty: spec}
	}
	return data, nil
}

func newMessageView(lang i18n.Language, msg models.Message, streaming bool) (messageView, error) {
	mv := messageView{
		Lang:      lang,
		ID:        msg.ID,
		Role:      string(msg.Role),
		Timestamp: msg.Timestamp,
		Streaming: streaming,
		Greeting:  msg.Greeting,
	}
	if msg.Role == models.RoleUser {
		mv.Content = template.HTML(template.HTMLEscapeString(msg.Text))
		return mv, nil
	}
	content, err := models.RenderMarkdown(msg.Text)
	if err != nil {
		return messageView{}, err
	}
	mv.Content = template.HTML(content)
	return mv, nil
}

// renderApp answers a state-changing request. htmx requests get the app partial, plain form posts
// are redirected to the home page.
func (m Main) renderApp(w http.ResponseWriter, r *http.Request, v *Visitor) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data, err := m.pageData(v)
	if err != nil {
		m.logger.Error("Failed to build page data", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "app", data); err != nil {
		m.logger.Error("Failed to execute app template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleHome renders the landing page for anonymous visitors and the application shell, on the
// current view, for signed-in ones.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, err := m.visitor(w, r)
	if err != nil {
		m.logger.Error("Failed to register visitor", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, err := m.pageData(v)
	if err != nil {
		m.logger.Error("Failed to build page data", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleLogin renders the role picker on GET and signs the visitor in as the demo user of the
// submitted role on POST.
func (m Main) HandleLogin(w http.ResponseWriter, r *http.Request) {
	v, err := m.visitor(w, r)
	if err != nil {
		m.logger.Error("Failed to register visitor", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		data, err := m.pageData(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := m.templates.ExecuteTemplate(w, "login.html", data); err != nil {
			m.logger.Error("Failed to execute login template", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	case http.MethodPost:
		role := models.UserRole(r.FormValue("role"))
		user, ok := models.UserByRole(role)
		if !ok {
			m.logger.Error("Unknown role", slog.String("role", string(role)))
			http.Error(w, "Unknown role", http.StatusBadRequest)
			return
		}
		v.signIn(m.newMember(v, user))
		m.logger.Info("Signed in", slog.String("userID", user.ID), slog.String("role", string(role)))
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleLogout signs the visitor out. A streaming reply is stopped; preferences are kept.
func (m Main) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, _, _, ok := m.member(w, r)
	if !ok {
		return
	}
	v.Close()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleNavigate switches the signed-in visitor to the view named by the "view" form field.
func (m Main) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	if err := router.Navigate(shell.View(r.FormValue("view"))); err != nil {
		m.fail(w, "Failed to navigate", err)
		return
	}
	m.renderApp(w, r, v)
}

// HandleLanguage switches the interface and reply language.
func (m Main) HandleLanguage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	lang, ok := i18n.ParseLanguage(r.FormValue("lang"))
	if !ok {
		http.Error(w, "Unknown language", http.StatusBadRequest)
		return
	}
	v, err := m.visitor(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v.setLanguage(lang)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleAccessibility stores the text size (0 to 2) and the high-contrast switch.
func (m Main) HandleAccessibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	size, err := strconv.Atoi(r.FormValue("font_size"))
	if err != nil {
		http.Error(w, "Invalid font size", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(displayForm{FontSize: size}); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := m.visitor(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	v.setDisplay(size, r.FormValue("high_contrast") == "on")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail logs err and answers with the status that matches it.
func (m Main) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		m.logger.Error(msg, slog.String(errLoggerKey, err.Error()))
	} else {
		m.logger.Warn(msg, slog.String(errLoggerKey, err.Error()))
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, shell.ErrDateInPast):
		return http.StatusBadRequest
	case errors.Is(err, shell.ErrViewNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, shell.ErrDoctorNotFound),
		errors.Is(err, shell.ErrAppointmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrInFlight),
		errors.Is(err, shell.ErrCallActive),
		errors.Is(err, shell.ErrNoActiveCall),
		errors.Is(err, shell.ErrDoctorUnavailable),
		errors.Is(err, shell.ErrNoDoctorSelected),
		errors.Is(err, shell.ErrAppointmentNotUpcoming):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
