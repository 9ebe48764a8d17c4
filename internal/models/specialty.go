package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// Specialty is one of the fixed medical-practice categories used both for doctor filtering and for the
// specialist suggested by the triage assistant.
type Specialty string

const (
	SpecialtyGeneralPractitioner Specialty = "General Practitioner"
	SpecialtyCardiologist        Specialty = "Cardiologist"
	SpecialtyDermatologist       Specialty = "Dermatologist"
	SpecialtyPediatrician        Specialty = "Pediatrician"
	SpecialtyPsychiatrist        Specialty = "Psychiatrist"
	SpecialtyOrthopedic          Specialty = "Orthopedic"
)

// Specialties lists the catalog in its enumeration order. Detection and filters iterate in this order.
var Specialties = []Specialty{
	SpecialtyGeneralPractitioner,
	SpecialtyCardiologist,
	SpecialtyDermatologist,
	SpecialtyPediatrician,
	SpecialtyPsychiatrist,
	SpecialtyOrthopedic,
}

// fold builds a fresh Caser on every call since a Caser must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// ParseSpecialty resolves a free-form label to a catalog entry, ignoring case.
func ParseSpecialty(label string) (Specialty, bool) {
	label = fold(strings.TrimSpace(label))
	for _, s := range Specialties {
		if fold(string(s)) == label {
			return s, true
		}
	}
	return "", false
}

// DetectSpecialty returns the first catalog specialty whose label appears in text, ignoring case.
//
// The match is a plain substring test: a reply that mentions a specialty while advising against it
// still counts as a match.
func DetectSpecialty(text string) (Specialty, bool) {
	if text == "" {
		return "", false
	}
	folded := fold(text)
	for _, s := range Specialties {
		if strings.Contains(folded, fold(string(s))) {
			return s, true
		}
	}
	return "", false
}
