package shell_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
	"github.com/MegaGrindStone/telehealth-web/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

func newRouter(t *testing.T, role models.UserRole) *shell.Router {
	t.Helper()
	user, ok := models.UserByRole(role)
	require.True(t, ok)
	return shell.New(user, shell.Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	})
}

func TestNavigateByRole(t *testing.T) {
	tests := []struct {
		name    string
		role    models.UserRole
		view    shell.View
		wantErr error
	}{
		{name: "Patient to triage", role: models.RolePatient, view: shell.ViewTriage},
		{name: "Patient to users", role: models.RolePatient, view: shell.ViewUsers, wantErr: shell.ErrViewNotAllowed},
		{name: "Doctor to schedule", role: models.RoleDoctor, view: shell.ViewSchedule},
		{name: "Doctor to doctors", role: models.RoleDoctor, view: shell.ViewDoctors, wantErr: shell.ErrViewNotAllowed},
		{name: "Admin to analytics", role: models.RoleAdmin, view: shell.ViewAnalytics},
		{name: "Facility manager to resources", role: models.RoleFacilityManager, view: shell.ViewResources},
		{name: "Consultation is never navigable", role: models.RolePatient, view: shell.ViewConsultation, wantErr: shell.ErrViewNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, tt.role)
			err := r.Navigate(tt.view)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, shell.ViewDashboard, r.View())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.view, r.View())
		})
	}
}

func TestFindDoctor(t *testing.T) {
	r := newRouter(t, models.RolePatient)

	require.NoError(t, r.FindDoctor("cardiologist"))
	assert.Equal(t, shell.ViewDoctors, r.View())
	assert.Equal(t, models.SpecialtyCardiologist, r.SpecialtyFilter())

	require.NoError(t, r.FindDoctor(""))
	assert.Empty(t, r.SpecialtyFilter())

	require.NoError(t, r.FindDoctor("Cardiologist"))
	require.NoError(t, r.Navigate(shell.ViewDoctors))
	assert.Empty(t, r.SpecialtyFilter(), "plain navigation clears the filter")
}

func TestFilterDoctors(t *testing.T) {
	got := shell.FilterDoctors(models.Doctors, "chen", "")
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].ID)

	got = shell.FilterDoctors(models.Doctors, "", models.SpecialtyOrthopedic)
	require.Len(t, got, 1)
	assert.Equal(t, "d6", got[0].ID)

	got = shell.FilterDoctors(models.Doctors, "derma", models.SpecialtyCardiologist)
	assert.Empty(t, got)

	assert.Len(t, shell.FilterDoctors(models.Doctors, "", ""), len(models.Doctors))
}

func TestConfirmBooking(t *testing.T) {
	r := newRouter(t, models.RolePatient)
	before := r.Appointments()

	require.NoError(t, r.SelectDoctor("d1"))
	appt, err := r.ConfirmBooking(shell.BookingRequest{Date: "2026-03-12", Time: "09:30", Notes: " chest pain "})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUpcoming, appt.Status)
	assert.Equal(t, "d1", appt.DoctorID)
	assert.Equal(t, models.SpecialtyCardiologist, appt.Specialty)
	assert.Equal(t, "chest pain", appt.Notes)
	assert.Equal(t, time.Date(2026, time.March, 12, 9, 30, 0, 0, time.UTC), appt.Date)
	for _, a := range before {
		assert.NotEqual(t, a.ID, appt.ID)
	}

	after := r.Appointments()
	require.Len(t, after, len(before)+1)
	for _, old := range before {
		assert.Contains(t, after, old)
	}

	assert.Equal(t, shell.ViewAppointments, r.View())
	_, selected := r.SelectedDoctor()
	assert.False(t, selected)

	n, ok := r.TakeNotification()
	require.True(t, ok)
	assert.Equal(t, "booking.booked", n.Key)
	assert.Equal(t, "Dr. Sarah Chen", n.Params["doctor"])
	_, ok = r.TakeNotification()
	assert.False(t, ok)
}

func TestConfirmBookingErrors(t *testing.T) {
	r := newRouter(t, models.RolePatient)

	_, err := r.ConfirmBooking(shell.BookingRequest{Date: "2026-03-12", Time: "09:30"})
	require.ErrorIs(t, err, shell.ErrNoDoctorSelected)

	require.ErrorIs(t, r.SelectDoctor("d3"), shell.ErrDoctorUnavailable)
	require.ErrorIs(t, r.SelectDoctor("nope"), shell.ErrDoctorNotFound)

	require.NoError(t, r.SelectDoctor("d2"))
	_, err = r.ConfirmBooking(shell.BookingRequest{Date: "12/03/2026", Time: "09:30"})
	require.Error(t, err)
	_, err = r.ConfirmBooking(shell.BookingRequest{Date: "2026-03-12"})
	require.Error(t, err)
	_, err = r.ConfirmBooking(shell.BookingRequest{Date: "2026-03-01", Time: "09:30"})
	require.ErrorIs(t, err, shell.ErrDateInPast)

	assert.Len(t, r.Appointments(), 2)
	_, selected := r.SelectedDoctor()
	assert.True(t, selected, "failed confirmation keeps the form open")

	r.CancelBooking()
	_, selected = r.SelectedDoctor()
	assert.False(t, selected)
}

func TestCalls(t *testing.T) {
	r := newRouter(t, models.RolePatient)
	require.NoError(t, r.Navigate(shell.ViewAppointments))

	_, err := r.StartCall("a2")
	require.ErrorIs(t, err, shell.ErrAppointmentNotUpcoming)
	_, err = r.StartCall("missing")
	require.ErrorIs(t, err, shell.ErrAppointmentNotFound)

	call, err := r.StartCall("a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", call.Appointment.ID)
	assert.Equal(t, shell.ViewConsultation, r.View())
	assert.Equal(t, 90*time.Second, call.Duration(fixedNow.Add(90*time.Second+300*time.Millisecond)))

	_, err = r.StartCall("a1")
	require.ErrorIs(t, err, shell.ErrCallActive)
	require.ErrorIs(t, r.Navigate(shell.ViewDashboard), shell.ErrCallActive)

	require.NoError(t, r.EndCall())
	assert.Equal(t, shell.ViewAppointments, r.View())
	_, active := r.ActiveCall()
	assert.False(t, active)
	require.ErrorIs(t, r.EndCall(), shell.ErrNoActiveCall)
}

func TestNextAppointment(t *testing.T) {
	r := newRouter(t, models.RolePatient)

	next, ok := r.NextAppointment()
	require.True(t, ok)
	assert.Equal(t, "a1", next.ID)

	require.NoError(t, r.SelectDoctor("d4"))
	_, err := r.ConfirmBooking(shell.BookingRequest{Date: "2026-03-10", Time: "16:30"})
	require.NoError(t, err)

	next, ok = r.NextAppointment()
	require.True(t, ok)
	assert.Equal(t, "d4", next.DoctorID)

	appts := r.Appointments()
	for i := 1; i < len(appts); i++ {
		assert.False(t, appts[i].Date.After(appts[i-1].Date), "appointments sorted newest first")
	}
}

func TestNavItems(t *testing.T) {
	items := shell.NavItems(models.RolePatient)
	require.Len(t, items, 4)
	assert.Equal(t, shell.ViewDashboard, items[0].View)
	assert.Equal(t, shell.ViewTriage, items[3].View)

	assert.True(t, shell.UnderDevelopment(shell.ViewAnalytics))
	assert.False(t, shell.UnderDevelopment(shell.ViewSchedule))
}
