package shell

import (
	"slices"

	"github.com/MegaGrindStone/telehealth-web/internal/models"
)

// View is a top-level screen of the application.
type View string

const (
	ViewDashboard    View = "dashboard"
	ViewDoctors      View = "doctors"
	ViewAppointments View = "appointments"
	ViewTriage       View = "ai-triage"
	ViewConsultation View = "consultation"
	ViewUsers        View = "users"
	ViewAnalytics    View = "analytics"
	ViewSchedule     View = "schedule"
	ViewResources    View = "resources"
)

// NavItem is an entry of the side navigation. LabelKey is a translation key.
type NavItem struct {
	View     View
	LabelKey string
}

var navByRole = map[models.UserRole][]NavItem{
	models.RolePatient: {
		{View: ViewDoctors, LabelKey: "nav.doctors"},
		{View: ViewAppointments, LabelKey: "nav.appointments"},
		{View: ViewTriage, LabelKey: "nav.ai_triage"},
	},
	models.RoleDoctor: {
		{View: ViewSchedule, LabelKey: "nav.schedule"},
		{View: ViewAppointments, LabelKey: "nav.patients"},
	},
	models.RoleAdmin: {
		{View: ViewUsers, LabelKey: "nav.users"},
		{View: ViewAnalytics, LabelKey: "nav.analytics"},
	},
	models.RoleFacilityManager: {
		{View: ViewResources, LabelKey: "nav.resources"},
		{View: ViewSchedule, LabelKey: "nav.schedule"},
	},
}

// NavItems returns the navigation offered to role. Every role gets the dashboard first.
func NavItems(role models.UserRole) []NavItem {
	items := []NavItem{{View: ViewDashboard, LabelKey: "nav.dashboard"}}
	return append(items, navByRole[role]...)
}

// Allowed reports whether role may navigate to v.
func Allowed(role models.UserRole, v View) bool {
	return slices.ContainsFunc(NavItems(role), func(item NavItem) bool {
		return item.View == v
	})
}

// UnderDevelopment reports whether v is a placeholder screen without content yet.
func UnderDevelopment(v View) bool {
	return v == ViewUsers || v == ViewAnalytics || v == ViewResources
}
