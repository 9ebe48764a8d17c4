// Package shell tracks which screen a signed-in visitor sees and owns their appointment list.
package shell

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var (
	ErrViewNotAllowed         = errors.New("view is not available for this role")
	ErrDoctorNotFound         = errors.New("doctor not found")
	ErrDoctorUnavailable      = errors.New("doctor is not available")
	ErrNoDoctorSelected       = errors.New("no doctor selected for booking")
	ErrDateInPast             = errors.New("appointment date is in the past")
	ErrAppointmentNotFound    = errors.New("appointment not found")
	ErrAppointmentNotUpcoming = errors.New("only upcoming appointments can be joined")
	ErrCallActive             = errors.New("a call is already active")
	ErrNoActiveCall           = errors.New("no active call")
)

var validate = validator.New()

// BookingRequest is the booking form. Date is "YYYY-MM-DD", Time is "HH:MM".
type BookingRequest struct {
	Date  string `validate:"required,datetime=2006-01-02"`
	Time  string `validate:"required,datetime=15:04"`
	Notes string `validate:"max=1000"`
}

// TimeSlots are the times offered by the booking form.
var TimeSlots = []string{
	"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

// Call is a running (simulated) video consultation.
type Call struct {
	Appointment models.Appointment
	Started     time.Time

	previous View
}

// Duration is how long the call has been running at now.
func (c Call) Duration(now time.Time) time.Duration {
	return now.Sub(c.Started).Truncate(time.Second)
}

// Notification is a one-shot message for the visitor, stored as a translation key and its parameters.
type Notification struct {
	Key    string
	Params map[string]string
}

// Options configures a Router.
type Options struct {
	Logger *slog.Logger

	// Now defaults to time.Now. Location, used to interpret booking dates, defaults to time.Local.
	Now      func() time.Time
	Location *time.Location
}

// Router holds one visitor's screen state and appointments. It is safe for concurrent use.
type Router struct {
	mu sync.Mutex

	user         models.User
	current      View
	appointments []models.Appointment
	selected     *models.Doctor
	filter       models.Specialty
	call         *Call
	notification *Notification

	now      func() time.Time
	location *time.Location

	logger *slog.Logger
}

// New creates the router for a signed-in user, starting on the dashboard with the seed appointments.
func New(user models.User, opts Options) *Router {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Router{
		user:         user,
		current:      ViewDashboard,
		appointments: models.SeedAppointments(now()),
		now:          now,
		location:     loc,
		logger:       opts.Logger.With(slog.String("module", "shell"), slog.String("userID", user.ID)),
	}
}

// User returns the signed-in user.
func (r *Router) User() models.User {
	return r.user
}

// View returns the screen currently shown.
func (r *Router) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate switches to v. Views outside the user's navigation are rejected, as is any navigation
// during a call.
func (r *Router) Navigate(v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.call != nil {
		return ErrCallActive
	}
	if !Allowed(r.user.Role, v) {
		return fmt.Errorf("%w: %s", ErrViewNotAllowed, v)
	}
	if v == ViewDoctors {
		r.filter = ""
	}
	r.current = v
	return nil
}

// FindDoctor opens the doctor directory, pre-filtered to the specialty named by label. An empty or
// unknown label opens the unfiltered directory.
func (r *Router) FindDoctor(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.call != nil {
		return ErrCallActive
	}
	if !Allowed(r.user.Role, ViewDoctors) {
		return fmt.Errorf("%w: %s", ErrViewNotAllowed, ViewDoctors)
	}
	spec, _ := models.ParseSpecialty(label)
	r.filter = spec
	r.current = ViewDoctors
	return nil
}

// SpecialtyFilter returns the specialty the directory was opened with, if any.
func (r *Router) SpecialtyFilter() models.Specialty {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// FilterDoctors keeps doctors whose name or specialty contains search (ignoring case) and, when
// specialty is set, whose specialty equals it.
func FilterDoctors(doctors []models.Doctor, search string, specialty models.Specialty) []models.Doctor {
	search = strings.ToLower(strings.TrimSpace(search))
	return lo.Filter(doctors, func(d models.Doctor, _ int) bool {
		matchesSearch := search == "" ||
			strings.Contains(strings.ToLower(d.Name), search) ||
			strings.Contains(strings.ToLower(string(d.Specialty)), search)
		matchesSpecialty := specialty == "" || d.Specialty == specialty
		return matchesSearch && matchesSpecialty
	})
}

// SelectDoctor opens the booking form for a doctor of the directory.
func (r *Router) SelectDoctor(doctorID string) error {
	d, ok := models.DoctorByID(doctorID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDoctorNotFound, doctorID)
	}
	if !d.Available {
		return fmt.Errorf("%w: %s", ErrDoctorUnavailable, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = &d
	return nil
}

// SelectedDoctor returns the doctor whose booking form is open.
func (r *Router) SelectedDoctor() (models.Doctor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return models.Doctor{}, false
	}
	return *r.selected, true
}

// CancelBooking closes the booking form.
func (r *Router) CancelBooking() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = nil
}

// ConfirmBooking books the selected doctor. The new appointment gets a fresh id and the upcoming
// status, is appended to the list without touching existing entries, and the visitor is taken to the
// appointments screen.
func (r *Router) ConfirmBooking(req BookingRequest) (models.Appointment, error) {
	if err := validate.Struct(req); err != nil {
		return models.Appointment{}, fmt.Errorf("invalid booking: %w", err)
	}
	date, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, r.location)
	if err != nil {
		return models.Appointment{}, fmt.Errorf("invalid booking date: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selected == nil {
		return models.Appointment{}, ErrNoDoctorSelected
	}
	now := r.now().In(r.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.location)
	if date.Before(today) {
		return models.Appointment{}, ErrDateInPast
	}

	d := *r.selected
	appt := models.Appointment{
		ID:          r.freshID(),
		DoctorID:    d.ID,
		DoctorName:  d.Name,
		DoctorImage: d.ImageURL,
		Specialty:   d.Specialty,
		Date:        date,
		Status:      models.StatusUpcoming,
		Notes:       strings.TrimSpace(req.Notes),
	}
	r.appointments = append(slices.Clip(r.appointments), appt)
	r.selected = nil
	r.current = ViewAppointments
	r.notification = &Notification{
		Key:    "booking.booked",
		Params: map[string]string{"doctor": d.Name},
	}

	r.logger.Info("Appointment booked",
		slog.String("appointmentID", appt.ID),
		slog.String("doctorID", d.ID),
		slog.Time("date", date))

	return appt, nil
}

func (r *Router) freshID() string {
	for {
		id := models.NewID()
		if !slices.ContainsFunc(r.appointments, func(a models.Appointment) bool { return a.ID == id }) {
			return id
		}
	}
}

// Appointments returns a copy of the appointment list, newest first.
func (r *Router) Appointments() []models.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := slices.Clone(r.appointments)
	slices.SortStableFunc(sorted, func(a, b models.Appointment) int {
		return b.Date.Compare(a.Date)
	})
	return sorted
}

// NextAppointment returns the earliest upcoming appointment.
func (r *Router) NextAppointment() (models.Appointment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	upcoming := lo.Filter(r.appointments, func(a models.Appointment, _ int) bool {
		return a.Status == models.StatusUpcoming
	})
	if len(upcoming) == 0 {
		return models.Appointment{}, false
	}
	return lo.MinBy(upcoming, func(a, b models.Appointment) bool {
		return a.Date.Before(b.Date)
	}), true
}

// StartCall enters the full-screen call for an upcoming appointment. Only one call may run at a time.
func (r *Router) StartCall(appointmentID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.call != nil {
		return Call{}, ErrCallActive
	}
	appt, ok := lo.Find(r.appointments, func(a models.Appointment) bool { return a.ID == appointmentID })
	if !ok {
		return Call{}, fmt.Errorf("%w: %s", ErrAppointmentNotFound, appointmentID)
	}
	if appt.Status != models.StatusUpcoming {
		return Call{}, ErrAppointmentNotUpcoming
	}

	r.call = &Call{
		Appointment: appt,
		Started:     r.now(),
		previous:    r.current,
	}
	r.current = ViewConsultation

	r.logger.Info("Call started", slog.String("appointmentID", appt.ID))
	return *r.call, nil
}

// EndCall leaves the call and returns to the screen shown before it.
func (r *Router) EndCall() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.call == nil {
		return ErrNoActiveCall
	}
	r.current = r.call.previous
	r.logger.Info("Call ended",
		slog.String("appointmentID", r.call.Appointment.ID),
		slog.Duration("duration", r.call.Duration(r.now())))
	r.call = nil
	return nil
}

// ActiveCall returns the running call.
func (r *Router) ActiveCall() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.call == nil {
		return Call{}, false
	}
	return *r.call, true
}

// TakeNotification returns the pending notification and clears it.
func (r *Router) TakeNotification() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notification == nil {
		return Notification{}, false
	}
	n := *r.notification
	r.notification = nil
	return n, true
}
