package handlers

import (
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/shell"
)

// HandleDoctors renders the doctor list filtered by the "search" and "specialty" query parameters.
func (m Main) HandleDoctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, _, _, ok := m.member(w, r)
	if !ok {
		return
	}

	var specialty models.Specialty
	if label := r.URL.Query().Get("specialty"); label != "" {
		spec, ok := models.ParseSpecialty(label)
		if !ok {
			http.Error(w, "Unknown specialty", http.StatusBadRequest)
			return
		}
		specialty = spec
	}

	data := doctorListData{
		Lang:    v.Preferences().Language,
		Doctors: shell.FilterDoctors(models.Doctors, r.URL.Query().Get("search"), specialty),
	}
	if err := m.templates.ExecuteTemplate(w, "doctor_list", data); err != nil {
		m.logger.Error("Failed to execute doctor_list template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSelectDoctor opens the booking form for the doctor named by "doctor_id".
func (m Main) HandleSelectDoctor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	if err := router.SelectDoctor(r.FormValue("doctor_id")); err != nil {
		m.fail(w, "Failed to select doctor", err)
		return
	}
	m.renderApp(w, r, v)
}

// HandleBookings confirms the open booking form.
func (m Main) HandleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	_, err := router.ConfirmBooking(shell.BookingRequest{
		Date:  r.FormValue("date"),
		Time:  r.FormValue("time"),
		Notes: r.FormValue("notes"),
	})
	if err != nil {
		m.fail(w, "Failed to book appointment", err)
		return
	}
	m.renderApp(w, r, v)
}

// HandleCancelBooking closes the booking form without booking.
func (m Main) HandleCancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	router.CancelBooking()
	m.renderApp(w, r, v)
}

// HandleCalls joins the video call of the appointment named by "appointment_id".
func (m Main) HandleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	if _, err := router.StartCall(r.FormValue("appointment_id")); err != nil {
		m.fail(w, "Failed to start call", err)
		return
	}
	m.renderApp(w, r, v)
}

// HandleEndCall leaves the running call.
func (m Main) HandleEndCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, router, _, ok := m.member(w, r)
	if !ok {
		return
	}

	if err := router.EndCall(); err != nil {
		m.fail(w, "Failed to end call", err)
		return
	}
	m.renderApp(w, r, v)
}
