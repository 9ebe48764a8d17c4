package models

import "time"

// Doctor is an entry of the mock doctor directory.
type Doctor struct {
	ID        string
	Name      string
	Specialty Specialty
	Rating    float64
	Reviews   int
	ImageURL  string
	Available bool
	Price     int
	Bio       string
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusUpcoming  AppointmentStatus = "upcoming"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a booked consultation. Entries are appended and never edited in place.
type Appointment struct {
	ID          string
	DoctorID    string
	DoctorName  string
	DoctorImage string
	Specialty   Specialty
	Date        time.Time
	Status      AppointmentStatus
	Notes       string
}

// UserRole selects which dashboard and navigation a user gets.
type UserRole string

const (
	RolePatient         UserRole = "patient"
	RoleDoctor          UserRole = "doctor"
	RoleAdmin           UserRole = "admin"
	RoleFacilityManager UserRole = "facility_manager"
)

// User is a demo account. There is no credential check; picking a role signs in as its user.
type User struct {
	ID      string
	Name    string
	Role    UserRole
	Avatar  string
	Details string
}

// Doctors is the mock directory, one doctor per specialty.
var Doctors = []Doctor{
	{
		ID:        "d1",
		Name:      "Dr. Sarah Chen",
		Specialty: SpecialtyCardiologist,
		Rating:    4.9,
		Reviews:   124,
		ImageURL:  "https://picsum.photos/200/200?random=1",
		Available: true,
		Price:     150,
		Bio:       "Board-certified cardiologist with 15 years of experience in preventative care and heart health.",
	},
	{
		ID:        "d2",
		Name:      "Dr. James Wilson",
		Specialty: SpecialtyGeneralPractitioner,
		Rating:    4.7,
		Reviews:   89,
		ImageURL:  "https://picsum.photos/200/200?random=2",
		Available: true,
		Price:     80,
		Bio:       "Dedicated family physician focused on holistic medicine and long-term patient wellness.",
	},
	{
		ID:        "d3",
		Name:      "Dr. Emily Rodriguez",
		Specialty: SpecialtyDermatologist,
		Rating:    4.8,
		Reviews:   210,
		ImageURL:  "https://picsum.photos/200/200?random=3",
		Available: false,
		Price:     120,
		Bio:       "Specialist in clinical and cosmetic dermatology, helping patients achieve healthy, radiant skin.",
	},
	{
		ID:        "d4",
		Name:      "Dr. Michael Chang",
		Specialty: SpecialtyPediatrician,
		Rating:    4.9,
		Reviews:   156,
		ImageURL:  "https://picsum.photos/200/200?random=4",
		Available: true,
		Price:     100,
		Bio:       "Compassionate pediatrician who loves working with children and supporting families through development.",
	},
	{
		ID:        "d5",
		Name:      "Dr. Lisa Patel",
		Specialty: SpecialtyPsychiatrist,
		Rating:    5.0,
		Reviews:   95,
		ImageURL:  "https://picsum.photos/200/200?random=5",
		Available: true,
		Price:     180,
		Bio:       "Experienced psychiatrist specializing in anxiety, depression, and cognitive behavioral therapy.",
	},
	{
		ID:        "d6",
		Name:      "Dr. Robert Stone",
		Specialty: SpecialtyOrthopedic,
		Rating:    4.6,
		Reviews:   78,
		ImageURL:  "https://picsum.photos/200/200?random=6",
		Available: true,
		Price:     200,
		Bio:       "Expert in sports medicine and joint replacement surgeries.",
	},
}

// Users holds one demo account per role.
var Users = []User{
	{
		ID:      "u1",
		Name:    "Alex Morgan",
		Role:    RolePatient,
		Avatar:  "https://picsum.photos/100/100?random=99",
		Details: "Patient ID: #8832",
	},
	{
		ID:      "d1",
		Name:    "Dr. Sarah Chen",
		Role:    RoleDoctor,
		Avatar:  "https://picsum.photos/200/200?random=1",
		Details: "Cardiologist",
	},
	{
		ID:      "a1",
		Name:    "System Admin",
		Role:    RoleAdmin,
		Avatar:  "https://ui-avatars.com/api/?name=System+Admin&background=0D8ABC&color=fff",
		Details: "Super Admin",
	},
	{
		ID:      "f1",
		Name:    "Facility Mgr.",
		Role:    RoleFacilityManager,
		Avatar:  "https://ui-avatars.com/api/?name=Facility+Manager&background=E67E22&color=fff",
		Details: "General Hospital",
	},
}

// DoctorByID looks a doctor up in the directory.
func DoctorByID(id string) (Doctor, bool) {
	for _, d := range Doctors {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

// UserByRole returns the demo account for a role.
func UserByRole(role UserRole) (User, bool) {
	for _, u := range Users {
		if u.Role == role {
			return u, true
		}
	}
	return User{}, false
}

// SeedAppointments returns the appointments every new visitor starts with: one tomorrow and one
// completed five days ago, relative to now.
func SeedAppointments(now time.Time) []Appointment {
	return []Appointment{
		{
			ID:          "a1",
			DoctorID:    "d2",
			DoctorName:  "Dr. James Wilson",
			DoctorImage: "https://picsum.photos/200/200?random=2",
			Specialty:   SpecialtyGeneralPractitioner,
			Date:        now.AddDate(0, 0, 1),
			Status:      StatusUpcoming,
		},
		{
			ID:          "a2",
			DoctorID:    "d1",
			DoctorName:  "Dr. Sarah Chen",
			DoctorImage: "https://picsum.photos/200/200?random=1",
			Specialty:   SpecialtyCardiologist,
			Date:        now.AddDate(0, 0, -5),
			Status:      StatusCompleted,
			Notes:       "Blood pressure normal. Follow up in 6 months.",
		},
	}
}
